package langhandler

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codeboxed/execd/internal/provider"
)

// nodeHandler stages code to a temp file and runs it with node, the
// same two-step shape original_source's node_handler.py uses.
type nodeHandler struct{}

func (nodeHandler) Run(ctx context.Context, p provider.Provider, h provider.Handle, code string) (provider.ExecResult, error) {
	path := fmt.Sprintf("/tmp/exec-%s.js", uuid.NewString())
	if err := p.WriteFile(ctx, h, path, strings.NewReader(code)); err != nil {
		return provider.ExecResult{}, err
	}
	return p.RunShell(ctx, h, fmt.Sprintf("node %s", path))
}
