package langhandler

import (
	"context"

	"github.com/codeboxed/execd/internal/provider"
)

// bashHandler runs code directly as a shell command, matching
// original_source's bash_handler.py (no staging).
type bashHandler struct{}

func (bashHandler) Run(ctx context.Context, p provider.Provider, h provider.Handle, code string) (provider.ExecResult, error) {
	return p.RunShell(ctx, h, code)
}
