package analysis

import (
	"fmt"
	"strings"

	"codesense/pkg/models"
)

// Keyword tokens that each add 1 to script-level cyclomatic complexity.
// Counting is case-insensitive substring matching. Deliberately coarse:
// identifiers containing these substrings inflate the count, and that is
// accepted behavior.
var complexityTokens = map[string][]string{
	"python":     {"if ", "elif ", "for ", "while ", "except ", "and ", "or ", "break", "continue"},
	"javascript": {"if(", "if (", "else if", "elseif", "for(", "for (", "while(", "while (", "switch", "case ", "catch", "&&", "||", "break", "continue"},
	"java":       {"if(", "if (", "else if", "for(", "for (", "while(", "while (", "switch", "case ", "catch", "&&", "||", "break", "continue"},
	"cpp":        {"if(", "if (", "else if", "for(", "for (", "while(", "while (", "switch", "case ", "catch", "&&", "||", "break", "continue"},
	"c":          {"if(", "if (", "else if", "for(", "for (", "while(", "while (", "switch", "case ", "catch", "&&", "||", "break", "continue"},
	"go":         {"if ", "for ", "switch", "case ", "select", "&&", "||", "break", "continue"},
}

// scriptComplexity is the keyword-counting fallback: 1 plus one per control
// token occurrence.
func scriptComplexity(source, language string) int {
	tokens, ok := complexityTokens[language]
	if !ok {
		tokens = complexityTokens["python"]
	}
	lowered := strings.ToLower(source)
	total := 1
	for _, tok := range tokens {
		total += strings.Count(lowered, tok)
	}
	return total
}

func countLines(source string) int {
	loc := 0
	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) != "" {
			loc++
		}
	}
	return loc
}

func estimateTimeComplexity(source string) string {
	lowered := strings.ToLower(source)
	loops := strings.Count(lowered, "for") + strings.Count(lowered, "while")
	switch {
	case loops >= 3:
		return "O(n³) or higher"
	case loops == 2:
		return "O(n²)"
	case loops == 1:
		return "O(n)"
	case strings.Count(lowered, "return") > 1:
		return "O(log n) to O(n) - recursive"
	default:
		return "O(1)"
	}
}

func estimateSpaceComplexity(source string) string {
	lowered := strings.ToLower(source)
	structures := 0
	for _, tok := range []string{"array", "list", "[]", "object", "dict", "{}"} {
		structures += strings.Count(lowered, tok)
	}
	switch {
	case structures > 2:
		return "O(n) - multiple data structures"
	case structures > 0:
		return "O(n)"
	case strings.Count(lowered, "return") > 1:
		return "O(log n) to O(n) - recursive stack"
	default:
		return "O(1)"
	}
}

func overallScore(avgComplexity float64, maxComplexity, functions, loc int, timeComplexity string) int {
	score := 100

	switch {
	case avgComplexity > 10:
		score -= 30
	case avgComplexity > 5:
		score -= 15
	case avgComplexity > 3:
		score -= 5
	}

	switch {
	case maxComplexity > 15:
		score -= 25
	case maxComplexity > 10:
		score -= 15
	case maxComplexity > 5:
		score -= 5
	}

	switch {
	case loc > 200:
		score -= 15
	case loc > 100:
		score -= 10
	case loc > 50:
		score -= 5
	}

	switch {
	case strings.Contains(timeComplexity, "O(n³)"):
		score -= 20
	case strings.Contains(timeComplexity, "O(n²)"):
		score -= 10
	case strings.Contains(timeComplexity, "O(n)"):
		score -= 5
	}

	if functions > 0 && avgComplexity <= 3 {
		score += 5
	}
	if loc > 0 && loc <= 50 {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// AnalyzeComplexity runs the static complexity pass over source. It never
// fails: the script-level estimator handles every supported language.
func AnalyzeComplexity(language, source string) models.QualityMetrics {
	total := scriptComplexity(source, language)
	loc := countLines(source)
	timeComplexity := estimateTimeComplexity(source)
	spaceComplexity := estimateSpaceComplexity(source)

	// Script-level analysis has no function boundaries; the whole script
	// counts as one unit.
	avg := float64(total)
	max := total
	functions := 0

	score := overallScore(avg, max, functions, loc, timeComplexity)

	metrics := models.QualityMetrics{
		CyclomaticComplexity: fmt.Sprintf("Script Complexity: %d (estimated)", total),
		TimeComplexity:       timeComplexity,
		SpaceComplexity:      spaceComplexity,
		OverallScore:         score,
		LinesOfCode:          loc,
		ComplexityIssues:     complexityIssues(total, loc, timeComplexity),
		Recommendations:      complexityRecommendations(total, loc),
	}
	metrics.Summary = scoreSummary(score)
	return metrics
}

func complexityIssues(total, loc int, timeComplexity string) []string {
	var issues []string
	if total > 10 {
		issues = append(issues, fmt.Sprintf("High cyclomatic complexity (%d); consider splitting logic into smaller functions", total))
	}
	if loc > 100 {
		issues = append(issues, fmt.Sprintf("Long script (%d lines); consider breaking it into modules", loc))
	}
	if strings.Contains(timeComplexity, "O(n³)") || strings.Contains(timeComplexity, "O(n²)") {
		issues = append(issues, "Nested loops detected; estimated time complexity is "+timeComplexity)
	}
	if issues == nil {
		issues = []string{}
	}
	return issues
}

func complexityRecommendations(total, loc int) []string {
	var recs []string
	if total > 5 {
		recs = append(recs, "Reduce branching by extracting helper functions")
	}
	if loc > 50 {
		recs = append(recs, "Keep functions short and focused")
	}
	if recs == nil {
		recs = []string{}
	}
	return recs
}

func scoreSummary(score int) string {
	switch {
	case score >= 90:
		return "Excellent code quality"
	case score >= 75:
		return "Good code quality"
	case score >= 50:
		return "Fair code quality; improvements recommended"
	default:
		return "Poor code quality; significant refactoring recommended"
	}
}
