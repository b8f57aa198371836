package analysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"codesense/internal/sandbox"
	"codesense/internal/store"
	"codesense/pkg/models"
)

type fakeRunner struct {
	result *sandbox.RunResult
}

func (f *fakeRunner) Execute(ctx context.Context, language, source string, timeout time.Duration) *sandbox.RunResult {
	return f.result
}

type fakeAI struct {
	report *models.AnalysisReport
}

func (f *fakeAI) Analyze(ctx context.Context, language, code string) *models.AnalysisReport {
	if f.report != nil {
		return f.report
	}
	return &models.AnalysisReport{
		Errors:        []models.ErrorItem{},
		Suggestions:   []string{"No suggestions available"},
		Optimizations: []string{"No optimizations suggested"},
		Output:        "No output detected",
	}
}

func newOrchestratorFixture(t *testing.T, run *sandbox.RunResult, ai *models.AnalysisReport) (*Orchestrator, *store.Store, *models.User) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st, err := store.New(db)
	require.NoError(t, err)

	blobs, err := store.NewBlobStore(t.TempDir())
	require.NoError(t, err)

	user := &models.User{Username: "alice", HashedPassword: "h", IsActive: true}
	require.NoError(t, st.CreateUser(user))

	orch := NewOrchestrator(&fakeRunner{result: run}, &fakeAI{report: ai}, st, blobs)
	return orch, st, user
}

func successRun(stdout string) *sandbox.RunResult {
	return &sandbox.RunResult{Stdout: stdout, ExitCode: 0, Duration: 100 * time.Millisecond}
}

func TestAnalyzeRejectsMissingFields(t *testing.T) {
	orch, _, user := newOrchestratorFixture(t, successRun(""), nil)

	_, err := orch.Analyze(context.Background(), user, Request{Language: "python"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = orch.Analyze(context.Background(), user, Request{Code: "x = 1"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestAnalyzeRejectsUnknownLanguage(t *testing.T) {
	orch, _, user := newOrchestratorFixture(t, successRun(""), nil)

	_, err := orch.Analyze(context.Background(), user, Request{Code: "x", Language: "cobol"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestAnalyzeMergesAllSources(t *testing.T) {
	run := successRun("Hello, World!")
	ai := &models.AnalysisReport{
		Errors:        []models.ErrorItem{},
		Suggestions:   []string{"use f-strings"},
		Optimizations: []string{"No optimizations suggested"},
		Output:        "Hello, World!",
		QualityMetrics: models.QualityMetrics{
			Summary: "Good code quality",
			// The model's complexity guesses get overwritten by the
			// static analyzer.
			OverallScore: 12,
			LinesOfCode:  999,
		},
	}
	orch, _, user := newOrchestratorFixture(t, run, ai)

	report, err := orch.Analyze(context.Background(), user, Request{
		Code: "print('Hello, World!')", Language: "python",
	})
	require.NoError(t, err)

	assert.True(t, report.ExecutionSuccess)
	assert.Equal(t, "Hello, World!", report.CodeOutput)
	assert.Equal(t, []string{"use f-strings"}, report.Suggestions)
	assert.Equal(t, "Good code quality", report.QualityMetrics.Summary)

	assert.Equal(t, 1, report.QualityMetrics.LinesOfCode)
	assert.GreaterOrEqual(t, report.QualityMetrics.OverallScore, 90)
	assert.Contains(t, report.QualityMetrics.CyclomaticComplexity, "Script Complexity")
}

func TestAnalyzeFailedRunPrependsError(t *testing.T) {
	run := &sandbox.RunResult{
		Stderr:    "SyntaxError: unterminated string literal",
		ExitCode:  1,
		Duration:  80 * time.Millisecond,
		ErrorKind: sandbox.KindContainerError,
	}
	ai := &models.AnalysisReport{
		Errors:        []models.ErrorItem{{Line: 1, Message: "missing quote", Severity: "error"}},
		Suggestions:   []string{"close the string"},
		Optimizations: []string{"No optimizations suggested"},
		Output:        "No output detected",
	}
	orch, _, user := newOrchestratorFixture(t, run, ai)

	report, err := orch.Analyze(context.Background(), user, Request{
		Code: "print('Hello", Language: "python",
	})
	require.NoError(t, err)

	assert.False(t, report.ExecutionSuccess)
	assert.Contains(t, report.CodeOutput, "SyntaxError")
	require.GreaterOrEqual(t, len(report.Errors), 2)
	assert.Contains(t, report.Errors[0].Message, "Execution failed")
	assert.Equal(t, "missing quote", report.Errors[1].Message)
}

func TestAnalyzeTimeoutReportsTimeout(t *testing.T) {
	run := &sandbox.RunResult{
		Stderr:    "Execution timeout (2s)",
		ExitCode:  124,
		Duration:  2 * time.Second,
		ErrorKind: sandbox.KindTimeout,
	}
	orch, _, user := newOrchestratorFixture(t, run, nil)

	report, err := orch.Analyze(context.Background(), user, Request{
		Code: "while True: pass", Language: "python",
	})
	require.NoError(t, err)

	assert.False(t, report.ExecutionSuccess)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0].Message, "timed out")
}

func TestAnalyzePersistsSubmission(t *testing.T) {
	orch, st, user := newOrchestratorFixture(t, successRun("ok"), nil)

	report, err := orch.Analyze(context.Background(), user, Request{
		Code: "print('ok')", Language: "python",
	})
	require.NoError(t, err)

	subs, err := st.SubmissionsByUser(user.ID, 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "python", subs[0].Language)

	var persisted models.AnalysisReport
	require.NoError(t, json.Unmarshal([]byte(subs[0].AnalysisResult), &persisted))
	assert.Equal(t, report.CodeOutput, persisted.CodeOutput)
}

func TestAnalyzeSucceedsWithoutPersistence(t *testing.T) {
	run := successRun("ok")
	orch := NewOrchestrator(&fakeRunner{result: run}, &fakeAI{}, nil, nil)
	user := &models.User{ID: 1, Username: "alice"}

	report, err := orch.Analyze(context.Background(), user, Request{
		Code: "print('ok')", Language: "python",
	})
	require.NoError(t, err)
	assert.True(t, report.ExecutionSuccess)
}
