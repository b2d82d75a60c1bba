package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/codeboxed/execd/internal/provider"
)

// killGracePeriod bounds how long runExec and the native kernel wait for
// a process to actually exit after being signalled on cancellation (§5).
// If it hasn't exited by then, the sandbox is reported unresponsive so
// the caller discards it instead of resetting and reusing it.
const killGracePeriod = 3 * time.Second

// signalExecProcess sends signal to the process an earlier exec started,
// by looking up its PID and issuing a follow-up `kill` exec in the same
// container — exec'd processes join the container's existing pid
// namespace, so a PID from one exec is valid to signal from another.
func signalExecProcess(ctx context.Context, cli *client.Client, containerID, execID, signal string) error {
	inspect, err := cli.ContainerExecInspect(ctx, execID)
	if err != nil {
		return fmt.Errorf("docker: inspect exec for signal: %w", err)
	}
	if inspect.Pid == 0 {
		return fmt.Errorf("docker: exec has no pid to signal")
	}

	killResp, err := cli.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd: []string{"kill", "-" + signal, strconv.Itoa(inspect.Pid)},
	})
	if err != nil {
		return fmt.Errorf("docker: create signal exec: %w", err)
	}
	return cli.ContainerExecStart(ctx, killResp.ID, types.ExecStartCheck{})
}

// runExec execs cmd inside containerID, waits for it to finish, and
// returns its demultiplexed stdout/stderr plus exit code. This is the
// building block both RunShell and the C handler's compile-then-run
// sequence are built from.
func runExec(ctx context.Context, cli *client.Client, containerID string, cmd []string) (provider.ExecResult, error) {
	info, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return provider.ExecResult{}, provider.ErrSandboxNotFound
		}
		return provider.ExecResult{}, err
	}
	if !info.State.Running {
		return provider.ExecResult{}, provider.ErrSandboxNotRunning
	}

	execResp, err := cli.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	})
	if err != nil {
		return provider.ExecResult{}, fmt.Errorf("docker: exec create: %w", err)
	}

	attach, err := cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return provider.ExecResult{}, fmt.Errorf("docker: exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- err
	}()

	select {
	case <-ctx.Done():
		killCtx, killCancel := context.WithTimeout(context.Background(), killGracePeriod)
		killErr := signalExecProcess(killCtx, cli, containerID, execResp.ID, "9")
		select {
		case <-copyDone:
			killCancel()
		case <-killCtx.Done():
			killCancel()
			if killErr != nil {
				return provider.ExecResult{}, fmt.Errorf("docker: %w: %v", provider.ErrSandboxUnresponsive, killErr)
			}
			return provider.ExecResult{}, fmt.Errorf("docker: %w: process did not exit after kill", provider.ErrSandboxUnresponsive)
		}
		return provider.ExecResult{}, ctx.Err()
	case err := <-copyDone:
		if err != nil && err != io.EOF {
			return provider.ExecResult{}, fmt.Errorf("docker: exec stream: %w", err)
		}
	}

	inspect, err := cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return provider.ExecResult{}, fmt.Errorf("docker: exec inspect: %w", err)
	}

	return provider.ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// uploadFile stages content at path inside the container using a
// single-entry tar stream, the same mechanism CopyToContainer expects.
func uploadFile(ctx context.Context, cli *client.Client, containerID, path string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("docker: read upload content: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    int64(len(data)),
		Mode:    0644,
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("docker: tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("docker: tar write: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("docker: tar close: %w", err)
	}

	dir := filepath.Dir(path)
	if err := cli.CopyToContainer(ctx, containerID, dir, &buf, types.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("docker: copy to container: %w", err)
	}
	return nil
}
