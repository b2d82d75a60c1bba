// Package providertest implements an in-memory provider.Provider double
// for unit tests that exercise the pool, session registry and
// coordinator without a real Docker daemon.
package providertest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/codeboxed/execd/internal/provider"
)

type sandboxState struct {
	files  map[string]string
	closed bool
}

// Fake is a configurable provider.Provider. Every behavior beyond
// bookkeeping handle identity is overridable via its function fields so
// each test can script exactly the outcome it needs (a hang to trigger
// a timeout, an error to trigger FileStagingError, and so on).
type Fake struct {
	mu      sync.Mutex
	nextID  int
	sandboxes map[string]*sandboxState

	CreateErr error

	RunShellFn  func(ctx context.Context, h provider.Handle, cmd string) (provider.ExecResult, error)
	RunNativeFn func(ctx context.Context, h provider.Handle, lang, code string) (provider.ExecResult, error)
	ResetFn     func(ctx context.Context, h provider.Handle) (provider.ExecResult, error)
	WriteFileErr error

	// CloseCount and CreateCount let tests assert the resource-leak
	// invariant: every checkout has exactly one matching return, discard
	// or close.
	CloseCount  int
	CreateCount int
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{sandboxes: make(map[string]*sandboxState)}
}

func (f *Fake) Create(ctx context.Context) (provider.Handle, error) {
	if f.CreateErr != nil {
		return provider.Handle{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.CreateCount++
	id := fmt.Sprintf("fake-%d", f.nextID)
	f.sandboxes[id] = &sandboxState{files: make(map[string]string)}
	return provider.Handle{ID: id}, nil
}

func (f *Fake) WriteFile(ctx context.Context, h provider.Handle, path string, content io.Reader) error {
	if f.WriteFileErr != nil {
		return f.WriteFileErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sb, ok := f.sandboxes[h.ID]
	if !ok {
		return provider.ErrSandboxNotFound
	}
	sb.files[path] = string(data)
	return nil
}

func (f *Fake) RunShell(ctx context.Context, h provider.Handle, cmd string) (provider.ExecResult, error) {
	if f.RunShellFn != nil {
		return f.RunShellFn(ctx, h, cmd)
	}
	return provider.ExecResult{ExitCode: 0}, nil
}

func (f *Fake) RunNativeInterp(ctx context.Context, h provider.Handle, lang, code string) (provider.ExecResult, error) {
	if f.RunNativeFn != nil {
		return f.RunNativeFn(ctx, h, lang, code)
	}
	return provider.ExecResult{Stdout: code, ExitCode: 0}, nil
}

// Reset defaults to succeeding with no observable effect: tests that care
// about reset failure/discard behavior set ResetFn explicitly.
func (f *Fake) Reset(ctx context.Context, h provider.Handle) (provider.ExecResult, error) {
	if f.ResetFn != nil {
		return f.ResetFn(ctx, h)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sandboxes[h.ID]; !ok {
		return provider.ExecResult{}, provider.ErrSandboxNotFound
	}
	return provider.ExecResult{ExitCode: 0}, nil
}

func (f *Fake) Close(ctx context.Context, h provider.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sb, ok := f.sandboxes[h.ID]
	if !ok {
		return nil
	}
	if sb.closed {
		return fmt.Errorf("providertest: sandbox %q closed twice", h.ID)
	}
	sb.closed = true
	f.CloseCount++
	return nil
}

func (f *Fake) Healthy(ctx context.Context) error {
	return nil
}

// FileAt returns the staged content at path inside sandbox h, for test
// assertions.
func (f *Fake) FileAt(h provider.Handle, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sb, ok := f.sandboxes[h.ID]
	if !ok {
		return "", false
	}
	content, ok := sb.files[path]
	return content, ok
}

// IsClosed reports whether h has been closed.
func (f *Fake) IsClosed(h provider.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	sb, ok := f.sandboxes[h.ID]
	if !ok {
		return true
	}
	return sb.closed
}
