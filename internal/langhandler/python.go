package langhandler

import (
	"context"

	"github.com/codeboxed/execd/internal/provider"
)

// pythonHandler runs code through the sandbox's persistent native
// kernel rather than writing a temp file, so that a variable assigned
// in one execute() call is visible in the next call on the same
// session (§4.1's native kernel requirement).
type pythonHandler struct{}

func (pythonHandler) Run(ctx context.Context, p provider.Provider, h provider.Handle, code string) (provider.ExecResult, error) {
	return p.RunNativeInterp(ctx, h, "python", code)
}
