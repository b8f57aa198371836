package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine scripts engine behavior for one run.
type fakeEngine struct {
	mu sync.Mutex

	imageExists bool
	inspectErr  error
	pullErr     error
	runErr      error

	exitCode int64
	waitErr  error
	hangWait bool

	logs    string
	logsErr error

	removed      []string
	killed       []string
	workspaceDir string
	lastSpec     ContainerSpec
}

func (f *fakeEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	return f.imageExists, f.inspectErr
}

func (f *fakeEngine) PullImage(ctx context.Context, image string) error {
	return f.pullErr
}

func (f *fakeEngine) RunDetached(ctx context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	f.lastSpec = spec
	f.workspaceDir = spec.WorkspaceDir
	f.mu.Unlock()
	if f.runErr != nil {
		return "", f.runErr
	}
	return "container-1", nil
}

func (f *fakeEngine) Wait(ctx context.Context, containerID string) (int64, error) {
	if f.hangWait {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.exitCode, f.waitErr
}

func (f *fakeEngine) Kill(containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, containerID)
	return nil
}

func (f *fakeEngine) Logs(ctx context.Context, containerID string) (string, error) {
	return f.logs, f.logsErr
}

func (f *fakeEngine) Remove(containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return nil
}

func TestExecuteSuccess(t *testing.T) {
	eng := &fakeEngine{imageExists: true, logs: "Hello, World!\n"}
	x := NewExecutor(eng, 15*time.Second)

	result := x.Execute(context.Background(), "python", "print('Hello, World!')", 0)

	assert.True(t, result.Success())
	assert.Equal(t, "Hello, World!", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)
	assert.Empty(t, string(result.ErrorKind))
	assert.Equal(t, []string{"container-1"}, eng.removed)
}

func TestExecuteAppliesResourceCaps(t *testing.T) {
	eng := &fakeEngine{imageExists: true}
	x := NewExecutor(eng, 15*time.Second)

	x.Execute(context.Background(), "python", "pass", 0)

	spec := eng.lastSpec
	assert.Equal(t, int64(128*1024*1024), spec.MemoryBytes)
	assert.Equal(t, int64(100_000), spec.CPUPeriod)
	assert.Equal(t, int64(50_000), spec.CPUQuota)
	assert.Equal(t, "nobody", spec.User)
	assert.True(t, spec.NetworkDisabled)
	assert.Contains(t, spec.Name, ContainerNamePrefix)
}

func TestExecuteGoKeepsNetwork(t *testing.T) {
	eng := &fakeEngine{imageExists: true}
	x := NewExecutor(eng, 15*time.Second)

	x.Execute(context.Background(), "go", "package main\nfunc main() {}", 0)

	assert.False(t, eng.lastSpec.NetworkDisabled)
}

func TestExecuteNonZeroExit(t *testing.T) {
	eng := &fakeEngine{imageExists: true, exitCode: 1, logs: "SyntaxError: unterminated string\n"}
	x := NewExecutor(eng, 15*time.Second)

	result := x.Execute(context.Background(), "python", "print('Hello", 0)

	assert.False(t, result.Success())
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, result.Stderr, "SyntaxError")
	assert.Equal(t, KindContainerError, result.ErrorKind)
}

func TestExecuteTimeout(t *testing.T) {
	eng := &fakeEngine{imageExists: true, hangWait: true}
	x := NewExecutor(eng, 15*time.Second)

	timeout := 50 * time.Millisecond
	result := x.Execute(context.Background(), "python", "while True: pass", timeout)

	assert.Equal(t, KindTimeout, result.ErrorKind)
	assert.Equal(t, 124, result.ExitCode)
	assert.Equal(t, timeout, result.Duration)
	assert.Contains(t, result.Stderr, "timeout")
	assert.NotEmpty(t, eng.killed)
	assert.Equal(t, []string{"container-1"}, eng.removed)
}

func TestExecutePullsMissingImage(t *testing.T) {
	eng := &fakeEngine{imageExists: false, logs: "ok"}
	x := NewExecutor(eng, 15*time.Second)

	result := x.Execute(context.Background(), "python", "print('ok')", 0)

	assert.True(t, result.Success())
}

func TestExecutePullFailure(t *testing.T) {
	eng := &fakeEngine{imageExists: false, pullErr: errors.New("registry unreachable")}
	x := NewExecutor(eng, 15*time.Second)

	result := x.Execute(context.Background(), "python", "print('ok')", 0)

	assert.Equal(t, KindImageUnavailable, result.ErrorKind)
	assert.Equal(t, 1, result.ExitCode)
}

func TestExecuteInspectFailure(t *testing.T) {
	eng := &fakeEngine{inspectErr: errors.New("daemon gone")}
	x := NewExecutor(eng, 15*time.Second)

	result := x.Execute(context.Background(), "python", "print('ok')", 0)

	assert.Equal(t, KindDockerUnavailable, result.ErrorKind)
}

func TestExecuteNilEngine(t *testing.T) {
	x := NewExecutor(nil, 15*time.Second)

	result := x.Execute(context.Background(), "python", "print('ok')", 0)

	assert.Equal(t, KindDockerUnavailable, result.ErrorKind)
	assert.Contains(t, result.Stderr, "Docker")
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	eng := &fakeEngine{imageExists: true}
	x := NewExecutor(eng, 15*time.Second)

	result := x.Execute(context.Background(), "cobol", "DISPLAY 'HI'", 0)

	assert.Equal(t, KindInternal, result.ErrorKind)
	assert.Contains(t, result.Stderr, "unsupported language")
}

func TestExecuteCleansWorkspace(t *testing.T) {
	eng := &fakeEngine{imageExists: true, logs: "ok"}
	x := NewExecutor(eng, 15*time.Second)

	x.Execute(context.Background(), "python", "print('ok')", 0)

	require.NotEmpty(t, eng.workspaceDir)
	_, err := os.Stat(eng.workspaceDir)
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteWritesSourceFile(t *testing.T) {
	// The workspace is removed after the run, so capture during Wait.
	captured := make(chan string, 1)
	eng := &captureEngine{
		fakeEngine: &fakeEngine{imageExists: true, logs: "ok"},
		captured:   captured,
	}
	x := NewExecutor(eng, 15*time.Second)

	x.Execute(context.Background(), "python", "print('captured')", 0)
	assert.Equal(t, "print('captured')", <-captured)
}

type captureEngine struct {
	*fakeEngine
	captured chan string
}

func (c *captureEngine) Wait(ctx context.Context, containerID string) (int64, error) {
	c.mu.Lock()
	dir := c.workspaceDir
	c.mu.Unlock()
	data, _ := os.ReadFile(filepath.Join(dir, "code.py"))
	c.captured <- string(data)
	return c.exitCode, c.waitErr
}
