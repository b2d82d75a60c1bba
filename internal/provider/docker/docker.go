// Package docker implements provider.Provider on top of the Docker Engine
// API, running each sandbox as a container whose only job is to stay
// alive (tail -f /dev/null) so that work can be exec'd into it on demand.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"github.com/codeboxed/execd/internal/provider"
)

const (
	// ManagedLabel marks every container this process created, so a
	// restart can garbage-collect anything left over from a crash.
	ManagedLabel = "sh.execd.managed"

	// resetCmd wipes the tenant-visible writable areas of a sandbox. It
	// uses find -delete rather than a glob-based rm -rf so an
	// already-empty directory doesn't make the reset look like it
	// failed.
	resetCmd = "find /tmp /home/user -mindepth 1 -delete"
)

// Provider implements provider.Provider against a local or remote Docker
// daemon.
type Provider struct {
	cli      *client.Client
	image    string
	memoryMB int64
	cpuCores float64

	kernels *kernelRegistry
}

// Config controls how the Docker-backed provider creates sandboxes.
type Config struct {
	// Image is the container image used for every sandbox. It must have
	// python3, node, bash and a C compiler installed.
	Image string

	// MemoryMB and CPUCores bound each sandbox's resources.
	MemoryMB int64
	CPUCores float64
}

// New connects to the Docker daemon using the standard environment
// variables (DOCKER_HOST, DOCKER_TLS_VERIFY, ...) and performs a
// best-effort cleanup of containers orphaned by a previous crash.
func New(cfg Config) (*Provider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}

	if cfg.Image == "" {
		cfg.Image = "execd-sandbox:latest"
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = 512
	}
	if cfg.CPUCores <= 0 {
		cfg.CPUCores = 1.0
	}

	p := &Provider{
		cli:      cli,
		image:    cfg.Image,
		memoryMB: cfg.MemoryMB,
		cpuCores: cfg.CPUCores,
		kernels:  newKernelRegistry(),
	}

	go p.cleanupOrphans()

	return p, nil
}

func (p *Provider) cleanupOrphans() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := p.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ManagedLabel+"=true")),
	})
	if err != nil {
		log.Warn().Err(err).Msg("docker: failed to list orphaned sandboxes")
		return
	}

	for _, c := range list {
		if err := p.cli.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			log.Warn().Str("container_id", c.ID).Err(err).Msg("docker: failed to remove orphaned sandbox")
		}
	}
	if len(list) > 0 {
		log.Info().Int("count", len(list)).Msg("docker: removed orphaned sandboxes on startup")
	}
}

// Healthy pings the Docker daemon.
func (p *Provider) Healthy(ctx context.Context) error {
	_, err := p.cli.Ping(ctx)
	return err
}

// Create starts a new generic sandbox container.
func (p *Provider) Create(ctx context.Context) (provider.Handle, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, provider.CreateTimeout)
		defer cancel()
	}

	nanoCPUs := int64(p.nanoCPUs())
	memoryBytes := p.memoryBytes()

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs: nanoCPUs,
			Memory:   memoryBytes,
		},
		Mounts: []mount.Mount{
			{Type: mount.TypeTmpfs, Target: "/tmp"},
		},
	}

	resp, err := p.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      p.image,
			Cmd:        []string{"tail", "-f", "/dev/null"},
			Labels:     map[string]string{ManagedLabel: "true"},
			WorkingDir: "/home/user",
		},
		hostConfig,
		nil, nil, "",
	)
	if err != nil {
		return provider.Handle{}, fmt.Errorf("docker: create container: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		_ = p.cli.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true})
		return provider.Handle{}, fmt.Errorf("docker: start container: %w", err)
	}

	return provider.Handle{ID: resp.ID}, nil
}

func (p *Provider) nanoCPUs() int64 {
	return int64(p.cpuCores * 1e9)
}

func (p *Provider) memoryBytes() int64 {
	return p.memoryMB * 1024 * 1024
}

// WriteFile stages content at path inside the sandbox via a tar upload,
// the same CopyToContainer mechanism the wider Docker ecosystem uses for
// file injection.
func (p *Provider) WriteFile(ctx context.Context, h provider.Handle, path string, content io.Reader) error {
	return uploadFile(ctx, p.cli, h.ID, path, content)
}

// RunShell execs cmd inside the sandbox and waits for it to exit.
func (p *Provider) RunShell(ctx context.Context, h provider.Handle, cmd string) (provider.ExecResult, error) {
	return runExec(ctx, p.cli, h.ID, []string{"bash", "-c", cmd})
}

// RunNativeInterp dispatches to the native entrypoint for lang. Only
// Python has one today; other languages don't reach this method because
// their handlers route through RunShell directly.
func (p *Provider) RunNativeInterp(ctx context.Context, h provider.Handle, lang string, code string) (provider.ExecResult, error) {
	switch lang {
	case "python":
		return p.kernels.run(ctx, p.cli, h.ID, code)
	default:
		return provider.ExecResult{}, fmt.Errorf("docker: no native interpreter for %q", lang)
	}
}

// Reset wipes the sandbox's writable filesystem areas and discards its
// native kernel, if one was ever started. A reused container without a
// kernel discard would hand the next tenant a python3 -u -i process
// still holding the previous tenant's globals() — the filesystem wipe
// alone does not touch that in-memory state.
func (p *Provider) Reset(ctx context.Context, h provider.Handle) (provider.ExecResult, error) {
	p.kernels.discard(h.ID)
	return runExec(ctx, p.cli, h.ID, []string{"bash", "-c", resetCmd})
}

// Close kills the kernel process (if any) and force-removes the
// container. Close is idempotent: removing an already-gone container is
// treated as success.
func (p *Provider) Close(ctx context.Context, h provider.Handle) error {
	p.kernels.discard(h.ID)

	err := p.cli.ContainerRemove(ctx, h.ID, types.ContainerRemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("docker: remove container: %w", err)
	}
	return nil
}
