package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"codesense/internal/logging"
)

// ContainerSpec is everything the engine needs to launch one sandboxed run.
type ContainerSpec struct {
	Image           string
	Name            string
	Cmd             []string
	WorkspaceDir    string // host directory bound read-write at /workspace
	User            string
	MemoryBytes     int64
	CPUPeriod       int64
	CPUQuota        int64
	NetworkDisabled bool
}

// Engine is the minimal container-engine surface the executor depends on.
// Any engine satisfying it (local daemon, rootless runtime, remote builder)
// can back the sandbox; tests use a fake.
type Engine interface {
	ImageExists(ctx context.Context, image string) (bool, error)
	PullImage(ctx context.Context, image string) error
	RunDetached(ctx context.Context, spec ContainerSpec) (string, error)
	Wait(ctx context.Context, containerID string) (int64, error)
	Kill(containerID string) error
	Logs(ctx context.Context, containerID string) (string, error)
	Remove(containerID string) error
}

// staleSweeper is an optional Engine extension for defensive cleanup of
// exited containers left behind by crashed requests.
type staleSweeper interface {
	RemoveStale(ctx context.Context, namePrefix string)
}

const workspaceMount = "/workspace"

// dockerEngine backs Engine with the Docker SDK.
type dockerEngine struct {
	cli *client.Client
}

// NewDockerEngine connects to the local daemon and verifies it is reachable.
func NewDockerEngine(ctx context.Context) (Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client init: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return &dockerEngine{cli: cli}, nil
}

func (e *dockerEngine) ImageExists(ctx context.Context, img string) (bool, error) {
	_, _, err := e.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, err
}

func (e *dockerEngine) PullImage(ctx context.Context, img string) error {
	rc, err := e.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}

func (e *dockerEngine) RunDetached(ctx context.Context, spec ContainerSpec) (string, error) {
	created, err := e.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           spec.Image,
			Cmd:             spec.Cmd,
			WorkingDir:      workspaceMount,
			User:            spec.User,
			NetworkDisabled: spec.NetworkDisabled,
			Tty:             false,
		},
		&container.HostConfig{
			// The container is removed explicitly after logs are collected;
			// the executor's deferred Remove plus the sweeper keep the
			// no-leaked-containers invariant.
			AutoRemove: false,
			Mounts: []mount.Mount{{
				Type:   mount.TypeBind,
				Source: spec.WorkspaceDir,
				Target: workspaceMount,
			}},
			Resources: container.Resources{
				Memory:    spec.MemoryBytes,
				CPUPeriod: spec.CPUPeriod,
				CPUQuota:  spec.CPUQuota,
			},
		},
		&network.NetworkingConfig{}, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := e.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = e.Remove(created.ID)
		return "", fmt.Errorf("container start: %w", err)
	}
	return created.ID, nil
}

func (e *dockerEngine) Wait(ctx context.Context, containerID string) (int64, error) {
	waitCh, errCh := e.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case resp := <-waitCh:
		return resp.StatusCode, nil
	case err := <-errCh:
		return 0, err
	}
}

func (e *dockerEngine) Kill(containerID string) error {
	return e.cli.ContainerKill(context.Background(), containerID, "SIGKILL")
}

func (e *dockerEngine) Logs(ctx context.Context, containerID string) (string, error) {
	rc, err := e.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, rc); err != nil {
		return combined.String(), err
	}
	return combined.String(), nil
}

func (e *dockerEngine) Remove(containerID string) error {
	return e.cli.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
}

// RemoveStale removes exited or created containers whose names carry the
// service prefix. Defensive cleanup only; the per-run Remove is the primary
// teardown path.
func (e *dockerEngine) RemoveStale(ctx context.Context, namePrefix string) {
	args := filters.NewArgs(filters.Arg("name", namePrefix))
	list, err := e.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		logging.S().Warnw("stale container list failed", "error", err)
		return
	}
	for _, c := range list {
		if c.State != "exited" && c.State != "created" {
			continue
		}
		if !hasPrefixedName(c.Names, namePrefix) {
			continue
		}
		if err := e.Remove(c.ID); err != nil {
			logging.S().Warnw("stale container remove failed", "container", c.ID, "error", err)
		}
	}
}

func hasPrefixedName(names []string, prefix string) bool {
	for _, name := range names {
		if strings.HasPrefix(strings.TrimPrefix(name, "/"), prefix) {
			return true
		}
	}
	return false
}
