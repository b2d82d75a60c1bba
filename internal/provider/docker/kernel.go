package docker

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/codeboxed/execd/internal/provider"
)

// bootstrapSource defines a single helper, _execd_run, inside the
// kernel's __main__ module. Every later call to the kernel is a single
// flat line invoking this function — by keeping the *function body* as
// the only multi-line construct ever sent to the interactive
// interpreter, each subsequent line fed to stdin is unambiguous to
// Python's incremental parser (no compound statement ever straddles two
// separate writes).
//
// Assignments made by the exec'd user code land in globals(), which for
// a function defined directly at the REPL is the __main__ module's own
// namespace — the same namespace later calls see, which is what makes
// variables set in one `execute` call visible in the next call on the
// same session.
const bootstrapSource = `def _execd_run(_execd_b64, _execd_token):
    import base64, io, sys, traceback
    _execd_buf = io.StringIO()
    _execd_old_stderr = sys.stderr
    sys.stderr = _execd_buf
    _execd_ok = True
    try:
        exec(compile(base64.b64decode(_execd_b64).decode("utf-8"), "<execd>", "exec"), globals())
    except SystemExit:
        pass
    except BaseException:
        traceback.print_exc()
        _execd_ok = False
    finally:
        sys.stderr = _execd_old_stderr
    _execd_err = base64.b64encode(_execd_buf.getvalue().encode("utf-8")).decode("ascii")
    return _execd_token + ":" + ("0" if _execd_ok else "1") + ":" + _execd_err

`

// pythonKernel is a persistent "python3 -u -i" process exec'd into a
// single sandbox, used to give session executions a shared global
// namespace across separate execute() calls (§4.1's "native kernel").
type pythonKernel struct {
	mu     sync.Mutex
	conn   types.HijackedResponse
	stdout *bufio.Reader

	cli         *client.Client
	containerID string
	execID      string
}

type kernelRegistry struct {
	mu      sync.Mutex
	kernels map[string]*pythonKernel
}

func newKernelRegistry() *kernelRegistry {
	return &kernelRegistry{kernels: make(map[string]*pythonKernel)}
}

func (r *kernelRegistry) run(ctx context.Context, cli *client.Client, containerID, code string) (provider.ExecResult, error) {
	k, err := r.getOrCreate(ctx, cli, containerID)
	if err != nil {
		return provider.ExecResult{}, err
	}
	res, err := k.run(ctx, code)
	if errors.Is(err, provider.ErrSandboxUnresponsive) {
		// The kernel couldn't be brought back to a known-good state
		// within the grace window; drop it so a later call on the same
		// container starts a fresh interpreter rather than reusing one
		// that might still be running the interrupted statement.
		r.discard(containerID)
	}
	return res, err
}

func (r *kernelRegistry) getOrCreate(ctx context.Context, cli *client.Client, containerID string) (*pythonKernel, error) {
	r.mu.Lock()
	if k, ok := r.kernels[containerID]; ok {
		r.mu.Unlock()
		return k, nil
	}
	r.mu.Unlock()

	k, err := startKernel(ctx, cli, containerID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.kernels[containerID]; ok {
		r.mu.Unlock()
		k.conn.Close()
		return existing, nil
	}
	r.kernels[containerID] = k
	r.mu.Unlock()
	return k, nil
}

// discard closes the kernel exec session for a sandbox being torn down,
// if one was ever started. Safe to call on a sandbox with no kernel.
func (r *kernelRegistry) discard(containerID string) {
	r.mu.Lock()
	k, ok := r.kernels[containerID]
	if ok {
		delete(r.kernels, containerID)
	}
	r.mu.Unlock()
	if ok {
		k.conn.Close()
	}
}

func startKernel(ctx context.Context, cli *client.Client, containerID string) (*pythonKernel, error) {
	execResp, err := cli.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		Cmd:          []string{"python3", "-u", "-i"},
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: kernel exec create: %w", err)
	}

	attach, err := cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("docker: kernel exec attach: %w", err)
	}

	stdoutR, stdoutW := io.Pipe()
	go func() {
		// stderr from the interpreter itself (startup banner suppressed
		// by -i on non-ttys, stray tracebacks from the bootstrap) is
		// discarded: per-call stderr is captured inside Python instead.
		_, _ = stdcopy.StdCopy(stdoutW, io.Discard, attach.Reader)
		stdoutW.Close()
	}()

	k := &pythonKernel{
		conn:        attach,
		stdout:      bufio.NewReader(stdoutR),
		cli:         cli,
		containerID: containerID,
		execID:      execResp.ID,
	}

	if _, err := io.WriteString(attach.Conn, bootstrapSource); err != nil {
		attach.Close()
		return nil, fmt.Errorf("docker: kernel bootstrap: %w", err)
	}

	return k, nil
}

func (k *pythonKernel) run(ctx context.Context, code string) (provider.ExecResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	token := "execd-" + uuid.New().String()
	b64 := base64.StdEncoding.EncodeToString([]byte(code))
	line := fmt.Sprintf("print(_execd_run(%q, %q))\n", b64, token)

	if _, err := io.WriteString(k.conn.Conn, line); err != nil {
		return provider.ExecResult{}, fmt.Errorf("docker: kernel write: %w", err)
	}

	type readResult struct {
		stdout string
		tail   string
		err    error
	}
	done := make(chan readResult, 1)
	go func() {
		var out strings.Builder
		prefix := token + ":"
		for {
			line, err := k.stdout.ReadString('\n')
			if strings.HasPrefix(line, prefix) {
				done <- readResult{stdout: out.String(), tail: strings.TrimSuffix(line, "\n")}
				return
			}
			if line != "" {
				out.WriteString(line)
			}
			if err != nil {
				done <- readResult{err: fmt.Errorf("docker: kernel read: %w", err)}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		// Send the kernel SIGINT rather than killing it outright: the
		// bootstrap's except BaseException already catches
		// KeyboardInterrupt and still returns the sentinel tail line, so
		// an interruptible statement lets the kernel (and its globals())
		// survive for the next call. Only a kernel that ignores the
		// interrupt gets discarded.
		killCtx, killCancel := context.WithTimeout(context.Background(), killGracePeriod)
		defer killCancel()
		killErr := signalExecProcess(killCtx, k.cli, k.containerID, k.execID, "INT")
		select {
		case res := <-done:
			if res.err != nil {
				return provider.ExecResult{}, fmt.Errorf("docker: %w: %v", provider.ErrSandboxUnresponsive, res.err)
			}
			return provider.ExecResult{}, ctx.Err()
		case <-killCtx.Done():
			if killErr != nil {
				return provider.ExecResult{}, fmt.Errorf("docker: %w: %v", provider.ErrSandboxUnresponsive, killErr)
			}
			return provider.ExecResult{}, fmt.Errorf("docker: %w: kernel did not respond to interrupt", provider.ErrSandboxUnresponsive)
		}
	case res := <-done:
		if res.err != nil {
			return provider.ExecResult{}, res.err
		}
		return parseKernelTail(res.stdout, res.tail, token)
	}
}

func parseKernelTail(stdout, tail, token string) (provider.ExecResult, error) {
	rest := strings.TrimPrefix(tail, token+":")
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return provider.ExecResult{}, fmt.Errorf("docker: malformed kernel response %q", tail)
	}
	ok, err := strconv.Atoi(parts[0])
	if err != nil {
		return provider.ExecResult{}, fmt.Errorf("docker: malformed kernel status %q", parts[0])
	}
	stderrBytes, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return provider.ExecResult{}, fmt.Errorf("docker: malformed kernel stderr payload: %w", err)
	}

	exitCode := 0
	if ok != 0 {
		exitCode = 1
	}
	return provider.ExecResult{
		Stdout:   stdout,
		Stderr:   string(stderrBytes),
		ExitCode: exitCode,
	}, nil
}
