// Package docker implements sandbox.Client on local Docker containers.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"mlforge/pkg/logx"
	"mlforge/pkg/sandbox"
)

const (
	// LabelManager marks containers owned by this service.
	LabelManager      = "manager"
	LabelManagerValue = "mlforge"
	// LabelSandboxID carries the sandbox id a container serves.
	LabelSandboxID = "sandbox-id"

	containerNamePrefix = "mlforge-sandbox-"
	reapInterval        = time.Minute
)

// containerLister is the slice of the Docker API that sandbox rediscovery
// needs.
type containerLister interface {
	ContainerList(ctx context.Context, options types.ContainerListOptions) ([]types.Container, error)
}

// Client runs each sandbox as one container kept alive with `sleep infinity`.
// Commands execute via docker exec, files move via tar copy. A background
// reaper force-removes containers idle past the timeout.
type Client struct {
	docker      *client.Client
	lister      containerLister
	workDir     string
	previewPort int
	idleTimeout time.Duration
	logger      *logx.Logger

	mu        sync.Mutex
	lastUsed  map[string]time.Time // sandboxID -> last activity
	container map[string]string    // sandboxID -> container id
	stopReap  chan struct{}
}

// New creates a Docker-backed sandbox client and starts its idle reaper.
func New(workDir string, previewPort int, idleTimeout time.Duration) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	c := &Client{
		docker:      cli,
		lister:      cli,
		workDir:     workDir,
		previewPort: previewPort,
		idleTimeout: idleTimeout,
		logger:      logx.NewLogger("sandbox"),
		lastUsed:    make(map[string]time.Time),
		container:   make(map[string]string),
		stopReap:    make(chan struct{}),
	}
	go c.reapLoop()
	return c, nil
}

// Create implements sandbox.Client.
func (c *Client) Create(ctx context.Context, template string) (string, error) {
	if _, _, err := c.docker.ImageInspectWithRaw(ctx, template); err != nil {
		return "", &sandbox.ProvisionError{Template: template, Err: fmt.Errorf("image not found: %w", err)}
	}

	sandboxID := uuid.New().String()[:12]
	previewPort := nat.Port(fmt.Sprintf("%d/tcp", c.previewPort))

	cfg := &container.Config{
		Image:      template,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: c.workDir,
		Labels: map[string]string{
			LabelManager:   LabelManagerValue,
			LabelSandboxID: sandboxID,
		},
		ExposedPorts: nat.PortSet{previewPort: {}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			previewPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "0"}},
		},
	}

	resp, err := c.docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, containerNamePrefix+sandboxID)
	if err != nil {
		return "", &sandbox.ProvisionError{Template: template, Err: fmt.Errorf("creating container: %w", err)}
	}
	if err := c.docker.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", &sandbox.ProvisionError{Template: template, Err: fmt.Errorf("starting container: %w", err)}
	}

	c.mu.Lock()
	c.container[sandboxID] = resp.ID
	c.lastUsed[sandboxID] = time.Now()
	c.mu.Unlock()

	c.logger.Info("sandbox %s created from %s", sandboxID, template)
	return sandboxID, nil
}

// Run implements sandbox.Client. The command runs through sh -c inside the
// container; a non-zero exit is reported in the result, not as an error.
func (c *Client) Run(ctx context.Context, sandboxID, command string, sinks *sandbox.OutputSinks) (sandbox.CommandResult, error) {
	containerID, err := c.lookup(ctx, sandboxID)
	if err != nil {
		return sandbox.CommandResult{}, err
	}
	c.touch(sandboxID)

	execResp, err := c.docker.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   c.workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return sandbox.CommandResult{}, fmt.Errorf("creating exec: %w", err)
	}

	attach, err := c.docker.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return sandbox.CommandResult{}, fmt.Errorf("attaching exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	outW := io.Writer(&stdout)
	errW := io.Writer(&stderr)
	if sinks != nil {
		if sinks.OnStdout != nil {
			outW = io.MultiWriter(&stdout, sinkWriter(sinks.OnStdout))
		}
		if sinks.OnStderr != nil {
			errW = io.MultiWriter(&stderr, sinkWriter(sinks.OnStderr))
		}
	}
	if _, err := stdcopy.StdCopy(outW, errW, attach.Reader); err != nil {
		return sandbox.CommandResult{}, fmt.Errorf("reading exec output: %w", err)
	}

	inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return sandbox.CommandResult{}, fmt.Errorf("inspecting exec: %w", err)
	}

	return sandbox.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// WriteFile implements sandbox.Client using a tar copy into the work dir.
func (c *Client) WriteFile(ctx context.Context, sandboxID, filePath, content string) error {
	containerID, err := c.lookup(ctx, sandboxID)
	if err != nil {
		return err
	}
	c.touch(sandboxID)

	dir := path.Dir(path.Join(c.workDir, filePath))
	if _, err := c.Run(ctx, sandboxID, "mkdir -p "+shellQuote(dir), nil); err != nil {
		return fmt.Errorf("creating parent dir: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: filePath,
		Mode: 0o644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing tar header: %w", err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		return fmt.Errorf("writing tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar: %w", err)
	}

	if err := c.docker.CopyToContainer(ctx, containerID, c.workDir, &buf, types.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("copying %s into sandbox: %w", filePath, err)
	}
	return nil
}

// ReadFile implements sandbox.Client.
func (c *Client) ReadFile(ctx context.Context, sandboxID, filePath string) (string, error) {
	containerID, err := c.lookup(ctx, sandboxID)
	if err != nil {
		return "", err
	}
	c.touch(sandboxID)

	reader, _, err := c.docker.CopyFromContainer(ctx, containerID, path.Join(c.workDir, filePath))
	if err != nil {
		return "", fmt.Errorf("copying %s from sandbox: %w", filePath, err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				return "", fmt.Errorf("reading %s: %w", filePath, err)
			}
			return string(data), nil
		}
	}
	return "", fmt.Errorf("file %s not found in sandbox %s", filePath, sandboxID)
}

// PublicURL implements sandbox.Client by resolving the dynamically bound
// host port for the requested container port.
func (c *Client) PublicURL(ctx context.Context, sandboxID string, port int) (string, error) {
	containerID, err := c.lookup(ctx, sandboxID)
	if err != nil {
		return "", err
	}

	inspect, err := c.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspecting container: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports[nat.Port(fmt.Sprintf("%d/tcp", port))]
	if len(bindings) == 0 {
		return "", fmt.Errorf("port %d not published for sandbox %s", port, sandboxID)
	}
	return fmt.Sprintf("http://127.0.0.1:%s", bindings[0].HostPort), nil
}

// Close stops the reaper and releases the Docker client. Live sandboxes are
// left to the reaper's next owner or manual cleanup.
func (c *Client) Close() error {
	close(c.stopReap)
	return c.docker.Close()
}

// lookup resolves a sandbox id to its container. The in-memory map only
// survives one process; after a restart, replayed runs still hold sandbox
// ids whose containers are alive, so a miss falls back to a label search.
func (c *Client) lookup(ctx context.Context, sandboxID string) (string, error) {
	c.mu.Lock()
	containerID, ok := c.container[sandboxID]
	c.mu.Unlock()
	if ok {
		return containerID, nil
	}

	list, err := c.lister.ContainerList(ctx, types.ContainerListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManager+"="+LabelManagerValue),
			filters.Arg("label", LabelSandboxID+"="+sandboxID),
		),
	})
	if err != nil {
		return "", fmt.Errorf("listing containers for sandbox %s: %w", sandboxID, err)
	}
	if len(list) == 0 {
		return "", fmt.Errorf("unknown sandbox %s (expired or never created)", sandboxID)
	}

	containerID = list[0].ID
	c.mu.Lock()
	c.container[sandboxID] = containerID
	c.lastUsed[sandboxID] = time.Now()
	c.mu.Unlock()
	c.logger.Info("sandbox %s rediscovered in container %s", sandboxID, containerID)
	return containerID, nil
}

func (c *Client) touch(sandboxID string) {
	c.mu.Lock()
	c.lastUsed[sandboxID] = time.Now()
	c.mu.Unlock()
}

func (c *Client) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopReap:
			return
		case <-ticker.C:
			c.reapIdle()
		}
	}
}

func (c *Client) reapIdle() {
	cutoff := time.Now().Add(-c.idleTimeout)

	c.mu.Lock()
	var expired []string
	for id, last := range c.lastUsed {
		if last.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	containers := make(map[string]string, len(expired))
	for _, id := range expired {
		containers[id] = c.container[id]
		delete(c.container, id)
		delete(c.lastUsed, id)
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for sandboxID, containerID := range containers {
		if err := c.docker.ContainerRemove(ctx, containerID, types.ContainerRemoveOptions{Force: true}); err != nil {
			c.logger.Warn("failed to remove idle sandbox %s: %v", sandboxID, err)
			continue
		}
		c.logger.Info("reaped idle sandbox %s", sandboxID)
	}
}

type sinkWriter func(string)

func (w sinkWriter) Write(p []byte) (int, error) {
	w(string(p))
	return len(p), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
