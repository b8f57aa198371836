package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptComplexityCountsControlTokens(t *testing.T) {
	code := `
if True:
    for i in range(10):
        if i > 5:
            continue
        else:
            break
`
	assert.Greater(t, scriptComplexity(code, "python"), 1)
}

func TestScriptComplexityJavascript(t *testing.T) {
	code := `
if (true) {
    for (let i = 0; i < 10; i++) {
        if (i > 5) {
            continue;
        }
    }
}
`
	assert.Greater(t, scriptComplexity(code, "javascript"), 1)
}

func TestScriptComplexityTrivialCode(t *testing.T) {
	assert.Equal(t, 1, scriptComplexity("x = 5", "python"))
}

func TestEstimateTimeComplexity(t *testing.T) {
	assert.Contains(t, estimateTimeComplexity("print('hello')"), "O(1)")
	assert.Contains(t, estimateTimeComplexity("for i in range(10): print(i)"), "O(n)")

	nested := "for i in range(10):\n    for j in range(10): print(i, j)"
	assert.Contains(t, estimateTimeComplexity(nested), "O(n²)")

	triple := "for i in x:\n  for j in y:\n    for k in z: pass"
	assert.Contains(t, estimateTimeComplexity(triple), "O(n³)")
}

func TestEstimateSpaceComplexity(t *testing.T) {
	assert.Contains(t, estimateSpaceComplexity("x = 5"), "O(1)")
	assert.Contains(t, estimateSpaceComplexity("arr = [1, 2, 3]"), "O(n)")
	assert.Contains(t, estimateSpaceComplexity("a = []\nb = {}\nc = dict()"), "multiple")
}

func TestOverallScoreRanges(t *testing.T) {
	assert.GreaterOrEqual(t, overallScore(2.0, 3, 2, 20, "O(1)"), 80)
	assert.LessOrEqual(t, overallScore(15.0, 20, 5, 300, "O(n³) or higher"), 50)
}

func TestOverallScoreClamped(t *testing.T) {
	extremes := []struct {
		avg       float64
		max, fn   int
		loc       int
		timeCplx  string
	}{
		{100.0, 100, 1, 1000, "O(n³) or higher"},
		{0.0, 0, 0, 0, "O(1)"},
		{1.0, 1, 5, 10, "O(1)"},
	}
	for _, e := range extremes {
		score := overallScore(e.avg, e.max, e.fn, e.loc, e.timeCplx)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}

func TestAnalyzeComplexityHelloWorld(t *testing.T) {
	m := AnalyzeComplexity("python", "print('Hello, World!')")

	assert.Equal(t, 1, m.LinesOfCode)
	assert.Contains(t, m.CyclomaticComplexity, "Script Complexity")
	assert.Contains(t, m.TimeComplexity, "O(1)")
	assert.GreaterOrEqual(t, m.OverallScore, 90)
	assert.LessOrEqual(t, m.OverallScore, 100)
}

func TestAnalyzeComplexityNestedLoops(t *testing.T) {
	code := "for i in range(10):\n    for j in range(10):\n        print(i, j)"
	m := AnalyzeComplexity("python", code)

	assert.Contains(t, m.TimeComplexity, "O(n²)")
	assert.Equal(t, 3, m.LinesOfCode)
}

func TestCountLinesIgnoresBlanks(t *testing.T) {
	assert.Equal(t, 2, countLines("a = 1\n\n\nb = 2\n"))
	assert.Equal(t, 0, countLines("\n   \n"))
}

func TestLongScriptLowersScore(t *testing.T) {
	long := strings.Repeat("x = 1\n", 250)
	m := AnalyzeComplexity("python", long)
	assert.Less(t, m.OverallScore, 100)
}
