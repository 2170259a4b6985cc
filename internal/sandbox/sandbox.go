package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/YumaSeno/AIDeveloper/internal/config"
)

const labelPrefix = "aidev"

var ErrTimedOut = errors.New("command timed out")

// Result is the outcome of one command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Sandbox is a long-lived container with the project directory mounted,
// used to run agent shell commands.
type Sandbox struct {
	docker  *client.Client
	image   string
	name    string
	project string
	hostDir string

	mu sync.Mutex
	id string
}

func New(cfg config.SandboxConfig, project, hostDir string) (*Sandbox, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Sandbox{
		docker:  docker,
		image:   cfg.Image,
		name:    ContainerName(project),
		project: project,
		hostDir: hostDir,
	}, nil
}

func ContainerName(project string) string {
	return fmt.Sprintf("%s-sandbox-%s", labelPrefix, project)
}

// Workdir is where the project directory appears inside the container.
func (s *Sandbox) Workdir() string {
	return "/workspace/" + s.project
}

func (s *Sandbox) bind() string {
	return fmt.Sprintf("%s:%s", s.hostDir, s.Workdir())
}

// Start creates the container on first use and reuses a running one.
func (s *Sandbox) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		return nil
	}

	if existing, err := s.docker.ContainerInspect(ctx, s.name); err == nil {
		if existing.State != nil && existing.State.Running {
			s.id = existing.ID
			slog.Info("reusing sandbox container", "container", shortID(s.id))
			return nil
		}
		_ = s.docker.ContainerRemove(ctx, existing.ID, dockercontainer.RemoveOptions{Force: true})
	}

	if err := ensureImage(ctx, s.docker, s.image); err != nil {
		return fmt.Errorf("pull sandbox image: %w", err)
	}

	resp, err := s.docker.ContainerCreate(ctx,
		&dockercontainer.Config{
			Image:      s.image,
			Cmd:        []string{"sleep", "infinity"},
			WorkingDir: s.Workdir(),
			Labels: map[string]string{
				labelPrefix + ".managed": "true",
				labelPrefix + ".project": s.project,
			},
		},
		&dockercontainer.HostConfig{Binds: []string{s.bind()}},
		nil, nil, s.name,
	)
	if err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}
	if err := s.docker.ContainerStart(ctx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		return fmt.Errorf("start sandbox: %w", err)
	}
	s.id = resp.ID
	slog.Info("sandbox container started", "project", s.project, "container", shortID(resp.ID))
	return nil
}

// Run executes command with sh -c in the project directory. A context
// deadline also bounds the process inside the container.
func (s *Sandbox) Run(ctx context.Context, command string) (Result, error) {
	if err := s.Start(ctx); err != nil {
		return Result{}, err
	}

	exec, err := s.docker.ContainerExecCreate(ctx, s.id, dockercontainer.ExecOptions{
		Cmd:          execCommand(ctx, command),
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   s.Workdir(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("create exec: %w", err)
	}
	att, err := s.docker.ContainerExecAttach(ctx, exec.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("attach exec: %w", err)
	}
	defer att.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, att.Reader)
		done <- err
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, ErrTimedOut
		}
		return Result{}, ctx.Err()
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return Result{}, fmt.Errorf("read exec output: %w", err)
		}
	}

	inspect, err := s.docker.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return Result{}, fmt.Errorf("inspect exec: %w", err)
	}
	if inspect.ExitCode == 137 && deadlinePassed(ctx) {
		return Result{}, ErrTimedOut
	}
	return Result{ExitCode: inspect.ExitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// execCommand wraps the command in coreutils timeout when ctx carries a
// deadline so the process does not outlive the call.
func execCommand(ctx context.Context, command string) []string {
	deadline, ok := ctx.Deadline()
	if !ok {
		return []string{"sh", "-c", command}
	}
	secs := int(math.Ceil(time.Until(deadline).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return []string{"timeout", "-s", "KILL", strconv.Itoa(secs), "sh", "-c", command}
}

func deadlinePassed(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline.Add(-time.Second))
}

// Close stops and removes the container.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		return s.docker.Close()
	}

	timeout := 5
	if err := s.docker.ContainerStop(ctx, s.id, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
		slog.Warn("failed to stop sandbox gracefully", "container", shortID(s.id), "error", err)
	}
	if err := s.docker.ContainerRemove(ctx, s.id, dockercontainer.RemoveOptions{Force: true}); err != nil {
		slog.Warn("failed to remove sandbox", "container", shortID(s.id), "error", err)
	}
	slog.Info("sandbox container stopped", "project", s.project)
	s.id = ""
	return s.docker.Close()
}

func ensureImage(ctx context.Context, docker *client.Client, image string) error {
	if _, err := docker.ImageInspect(ctx, image); err == nil {
		return nil
	}

	slog.Info("pulling sandbox image", "image", image)
	reader, err := docker.ImagePull(ctx, image, dockerimage.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
