// Package sandbox runs untrusted user code inside ephemeral, resource-capped,
// network-isolated containers.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codesense/internal/logging"
	"codesense/internal/metrics"
)

// ErrorKind classifies an execution failure. None are retried.
type ErrorKind string

const (
	KindDockerUnavailable ErrorKind = "docker_unavailable"
	KindImageUnavailable  ErrorKind = "image_unavailable"
	KindTimeout           ErrorKind = "timeout"
	KindContainerError    ErrorKind = "container_error"
	KindInternal          ErrorKind = "internal"
)

// ContainerNamePrefix marks every container this service launches. The
// sweeper removes stray exited containers carrying it.
const ContainerNamePrefix = "codesense-run-"

const (
	memoryLimitBytes = 128 * 1024 * 1024 // 128 MiB
	cpuPeriodMicros  = 100_000           // 100 ms
	cpuQuotaMicros   = 50_000            // 50% of one core
	sandboxUser      = "nobody"
	sweepInterval    = 5 * time.Minute
	timeoutExitCode  = 124
)

// DefaultTimeout is the wall-clock cap on one execution when the caller does
// not override it.
const DefaultTimeout = 15 * time.Second

// RunResult is the outcome of one sandboxed execution. Operational failures
// are reported through ErrorKind, never as a Go error: a failed run is a
// valid result.
type RunResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	ErrorKind ErrorKind
}

// Success reports whether the run completed with exit code 0.
func (r *RunResult) Success() bool {
	return r.ErrorKind == "" && r.ExitCode == 0
}

// Executor launches one container per execution. A container started by
// Execute always exits, by completion or forced kill, before Execute returns.
type Executor struct {
	engine         Engine
	defaultTimeout time.Duration
	log            *zap.SugaredLogger
}

// NewExecutor wraps a container engine. A nil engine yields an executor whose
// runs all fail with docker_unavailable; the rest of the pipeline still works.
func NewExecutor(engine Engine, defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Executor{
		engine:         engine,
		defaultTimeout: defaultTimeout,
		log:            logging.S(),
	}
}

// Execute runs source for the given language with a hard wall-clock timeout.
// The submitted source is written to a private temp directory mounted at
// /workspace; it is never passed on the command line and never rewritten.
func (x *Executor) Execute(ctx context.Context, language, source string, timeout time.Duration) *RunResult {
	if timeout <= 0 {
		timeout = x.defaultTimeout
	}

	result := x.execute(ctx, language, source, timeout)
	metrics.SandboxExecution(string(statusOf(result)))
	return result
}

func statusOf(r *RunResult) ErrorKind {
	if r.ErrorKind != "" {
		return r.ErrorKind
	}
	if r.ExitCode == 0 {
		return "success"
	}
	return KindContainerError
}

func (x *Executor) execute(ctx context.Context, language, source string, timeout time.Duration) *RunResult {
	if x.engine == nil {
		return &RunResult{
			Stderr:    "Docker is not available",
			ExitCode:  1,
			ErrorKind: KindDockerUnavailable,
		}
	}

	recipe, ok := RecipeFor(language)
	if !ok {
		return &RunResult{
			Stderr:    fmt.Sprintf("unsupported language: %s", language),
			ExitCode:  1,
			ErrorKind: KindInternal,
		}
	}

	tempDir, err := os.MkdirTemp("", "codesense-exec-")
	if err != nil {
		return &RunResult{
			Stderr:    fmt.Sprintf("failed to create workspace: %v", err),
			ExitCode:  1,
			ErrorKind: KindInternal,
		}
	}
	defer os.RemoveAll(tempDir)

	if err := os.WriteFile(filepath.Join(tempDir, recipe.FileName), []byte(source), 0o644); err != nil {
		return &RunResult{
			Stderr:    fmt.Sprintf("failed to write code: %v", err),
			ExitCode:  1,
			ErrorKind: KindInternal,
		}
	}

	if kind, err := x.ensureImage(ctx, recipe.Image); err != nil {
		return &RunResult{
			Stderr:    err.Error(),
			ExitCode:  1,
			ErrorKind: kind,
		}
	}

	name := ContainerNamePrefix + uuid.New().String()[:12]
	spec := ContainerSpec{
		Image:           recipe.Image,
		Name:            name,
		Cmd:             recipe.Command,
		WorkspaceDir:    tempDir,
		User:            sandboxUser,
		MemoryBytes:     memoryLimitBytes,
		CPUPeriod:       cpuPeriodMicros,
		CPUQuota:        cpuQuotaMicros,
		NetworkDisabled: !recipe.NetworkEnabled,
	}

	x.log.Infow("executing code in sandbox", "language", language, "image", recipe.Image, "container", name)
	start := time.Now()

	containerID, err := x.engine.RunDetached(ctx, spec)
	if err != nil {
		return &RunResult{
			Stderr:    fmt.Sprintf("container launch failed: %v", err),
			ExitCode:  1,
			ErrorKind: KindInternal,
		}
	}
	defer func() {
		if err := x.engine.Remove(containerID); err != nil {
			x.log.Debugw("container remove failed", "container", name, "error", err)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exitCode, waitErr := x.engine.Wait(waitCtx, containerID)
	if waitErr != nil {
		// The container must exit before we return, success or not.
		if killErr := x.engine.Kill(containerID); killErr != nil {
			x.log.Warnw("container kill failed", "container", name, "error", killErr)
		}
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			x.log.Warnw("sandbox execution timed out", "language", language, "timeout", timeout)
			return &RunResult{
				Stderr:    fmt.Sprintf("Execution timeout (%s)", timeout),
				ExitCode:  timeoutExitCode,
				Duration:  timeout,
				ErrorKind: KindTimeout,
			}
		}
		return &RunResult{
			Stderr:    fmt.Sprintf("container wait failed: %v", waitErr),
			ExitCode:  1,
			Duration:  time.Since(start),
			ErrorKind: KindInternal,
		}
	}

	logs, logErr := x.engine.Logs(context.Background(), containerID)
	if logErr != nil {
		x.log.Warnw("log collection failed", "container", name, "error", logErr)
	}
	logs = strings.TrimSpace(logs)

	result := &RunResult{
		ExitCode: int(exitCode),
		Duration: time.Since(start),
	}
	// Docker interleaves streams; attribute everything to one side by outcome.
	if exitCode == 0 {
		result.Stdout = logs
	} else {
		result.Stderr = logs
		result.ErrorKind = KindContainerError
	}

	x.log.Infow("sandbox execution finished",
		"language", language, "exit_code", exitCode, "duration", result.Duration)
	return result
}

func (x *Executor) ensureImage(ctx context.Context, img string) (ErrorKind, error) {
	exists, err := x.engine.ImageExists(ctx, img)
	if err != nil {
		return KindDockerUnavailable, fmt.Errorf("image inspect failed: %w", err)
	}
	if exists {
		return "", nil
	}
	x.log.Infow("pulling image", "image", img)
	if err := x.engine.PullImage(ctx, img); err != nil {
		return KindImageUnavailable, fmt.Errorf("image not available: %s: %w", img, err)
	}
	return "", nil
}

// StartSweeper launches the background cleanup loop. It removes stray exited
// containers carrying the service prefix until ctx is canceled. Engines that
// cannot enumerate containers are skipped.
func (x *Executor) StartSweeper(ctx context.Context) {
	sweeper, ok := x.engine.(staleSweeper)
	if !ok {
		return
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweeper.RemoveStale(ctx, ContainerNamePrefix)
			}
		}
	}()
}
