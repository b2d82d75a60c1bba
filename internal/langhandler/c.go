package langhandler

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codeboxed/execd/internal/provider"
)

// cHandler stages a source file, compiles it, and only runs the result
// if compilation succeeded — mirroring original_source's c_handler.py,
// which reports a compile failure as its own distinct error shape
// rather than running a stale or missing binary.
type cHandler struct{}

func (cHandler) Run(ctx context.Context, p provider.Provider, h provider.Handle, code string) (provider.ExecResult, error) {
	fileID := uuid.NewString()[:8]
	src := fmt.Sprintf("/tmp/program-%s.c", fileID)
	exe := fmt.Sprintf("/tmp/program-%s", fileID)

	if err := p.WriteFile(ctx, h, src, strings.NewReader(code)); err != nil {
		return provider.ExecResult{}, err
	}

	compile, err := p.RunShell(ctx, h, fmt.Sprintf("cc -o %s %s", exe, src))
	if err != nil {
		return provider.ExecResult{}, err
	}
	if compile.ExitCode != 0 {
		return provider.ExecResult{
			Stdout:   "",
			Stderr:   "Compilation error:\n" + compile.Stderr,
			ExitCode: compile.ExitCode,
		}, nil
	}

	return p.RunShell(ctx, h, exe)
}
