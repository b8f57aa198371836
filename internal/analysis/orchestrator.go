package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"codesense/internal/logging"
	"codesense/internal/metrics"
	"codesense/internal/sandbox"
	"codesense/internal/store"
	"codesense/pkg/models"
)

// ErrBadRequest marks a rejected analyze payload (missing field, unknown
// language). The HTTP layer maps it to 400.
var ErrBadRequest = errors.New("bad request")

// Runner is the sandbox surface the orchestrator depends on.
type Runner interface {
	Execute(ctx context.Context, language, source string, timeout time.Duration) *sandbox.RunResult
}

// Request is one analyze payload.
type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	FileName string `json:"file_name,omitempty"`
}

// Orchestrator drives one analyze request: sandbox run, AI assessment, and
// static complexity pass in parallel, then a merged report persisted as a
// submission.
type Orchestrator struct {
	runner Runner
	ai     AIClient
	store  *store.Store
	blobs  *store.BlobStore
	log    *zap.SugaredLogger
}

// NewOrchestrator wires the three analysis sources and the persistence layer.
func NewOrchestrator(runner Runner, ai AIClient, st *store.Store, blobs *store.BlobStore) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		ai:     ai,
		store:  st,
		blobs:  blobs,
		log:    logging.S(),
	}
}

// Analyze produces the unified report for one submission. The three analysis
// sources run concurrently and fail independently; only a malformed payload
// returns an error. The report itself is always complete.
func (o *Orchestrator) Analyze(ctx context.Context, user *models.User, req Request) (*models.AnalysisReport, error) {
	if req.Code == "" || req.Language == "" {
		metrics.AnalyzeRequest("bad_request")
		return nil, fmt.Errorf("%w: code and language are required", ErrBadRequest)
	}
	if !sandbox.Supported(req.Language) {
		metrics.AnalyzeRequest("bad_request")
		return nil, fmt.Errorf("%w: unsupported language: %s", ErrBadRequest, req.Language)
	}

	var (
		wg        sync.WaitGroup
		runResult *sandbox.RunResult
		aiReport  *models.AnalysisReport
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		runResult = o.runner.Execute(ctx, req.Language, req.Code, 0)
	}()
	go func() {
		defer wg.Done()
		aiReport = o.ai.Analyze(ctx, req.Language, req.Code)
	}()
	quality := AnalyzeComplexity(req.Language, req.Code)
	wg.Wait()

	metrics.SandboxDurationSeconds(runResult.Duration.Seconds())

	report := merge(aiReport, quality, runResult)
	o.persist(user, req, report)

	metrics.AnalyzeRequest("ok")
	return report, nil
}

// merge folds the static metrics and the sandbox outcome into the AI report.
// The local complexity numbers always win over whatever the model claimed.
func merge(report *models.AnalysisReport, quality models.QualityMetrics, run *sandbox.RunResult) *models.AnalysisReport {
	report.QualityMetrics.CyclomaticComplexity = quality.CyclomaticComplexity
	report.QualityMetrics.TimeComplexity = quality.TimeComplexity
	report.QualityMetrics.SpaceComplexity = quality.SpaceComplexity
	report.QualityMetrics.OverallScore = quality.OverallScore
	report.QualityMetrics.LinesOfCode = quality.LinesOfCode
	report.QualityMetrics.ComplexityIssues = quality.ComplexityIssues
	if report.QualityMetrics.Summary == "" {
		report.QualityMetrics.Summary = quality.Summary
	}
	if len(report.QualityMetrics.Recommendations) == 0 {
		report.QualityMetrics.Recommendations = quality.Recommendations
	}
	if report.QualityMetrics.SecurityIssues == nil {
		report.QualityMetrics.SecurityIssues = []string{}
	}

	report.ExecutionSuccess = run.Success()
	if run.Success() {
		report.CodeOutput = run.Stdout
	} else {
		report.CodeOutput = run.Stderr
		item := models.ErrorItem{
			Line:     1,
			Message:  executionFailureMessage(run),
			Severity: "error",
		}
		report.Errors = append([]models.ErrorItem{item}, report.Errors...)
	}
	return report
}

func executionFailureMessage(run *sandbox.RunResult) string {
	switch run.ErrorKind {
	case sandbox.KindTimeout:
		return fmt.Sprintf("Execution timed out after %s", run.Duration)
	case sandbox.KindDockerUnavailable:
		return "Execution environment unavailable"
	case sandbox.KindImageUnavailable:
		return "Runtime image unavailable"
	default:
		if run.Stderr != "" {
			return fmt.Sprintf("Execution failed with exit code %d: %s", run.ExitCode, firstLine(run.Stderr))
		}
		return fmt.Sprintf("Execution failed with exit code %d", run.ExitCode)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// persist writes the code blob and the submission row. Failures are logged
// and swallowed: the caller already has the report, and losing a history row
// is preferable to failing the analysis.
func (o *Orchestrator) persist(user *models.User, req Request, report *models.AnalysisReport) {
	if o.store == nil || o.blobs == nil {
		return
	}

	path, err := o.blobs.Save(sandbox.Extension(req.Language), req.Code)
	if err != nil {
		o.log.Errorw("failed to store code blob", "user_id", user.ID, "error", err)
		return
	}

	resultJSON, err := json.Marshal(report)
	if err != nil {
		o.log.Errorw("failed to encode analysis result", "user_id", user.ID, "error", err)
		resultJSON = []byte("{}")
	}

	sub := &models.CodeSubmission{
		UserID:         user.ID,
		Language:       req.Language,
		FilePath:       path,
		AnalysisResult: string(resultJSON),
	}
	if req.FileName != "" {
		sub.FileName = &req.FileName
	}

	if err := o.store.CreateSubmission(sub); err != nil {
		o.log.Errorw("failed to persist submission", "user_id", user.ID, "error", err)
		if rmErr := o.blobs.Remove(path); rmErr != nil {
			o.log.Debugw("orphan blob cleanup failed", "path", path, "error", rmErr)
		}
	}
}
