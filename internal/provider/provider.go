// Package provider defines the thin abstraction over the external sandbox
// API that the rest of the service is built on.
//
// A Provider knows nothing about languages, pools, or sessions — it only
// creates sandboxes, moves bytes in and out of them, and runs commands.
// Everything above this layer treats a provider-fault as opaque: the
// caller never inspects provider-internal error types, only the sentinel
// errors declared below.
package provider

import (
	"context"
	"errors"
	"io"
	"time"
)

// Errors returned by Provider implementations. Callers treat any other
// error as an opaque provider-fault.
var (
	// ErrSandboxNotFound indicates the handle no longer refers to a live sandbox.
	ErrSandboxNotFound = errors.New("provider: sandbox not found")

	// ErrSandboxNotRunning indicates an operation against a sandbox that
	// never started or has already been closed.
	ErrSandboxNotRunning = errors.New("provider: sandbox not running")

	// ErrSandboxUnresponsive indicates a cancelled execution whose
	// process could not be confirmed killed within the provider's grace
	// window (§5). The caller must discard the sandbox outright rather
	// than reset and return it to the pool — its internal state after an
	// unconfirmed kill can no longer be trusted.
	ErrSandboxUnresponsive = errors.New("provider: sandbox unresponsive after cancellation")
)

// Handle is the opaque identifier for a provider-owned sandbox. The core
// never mutates provider state through it directly; it is only ever
// passed back to the Provider that issued it.
type Handle struct {
	ID string
}

// ExecResult is the raw outcome of running something inside a sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Provider is the adapter over the external sandbox API. All operations
// are potentially long-running and must respect ctx cancellation —
// callers rely on this to enforce execution deadlines.
type Provider interface {
	// Create provisions a brand new sandbox and returns its handle.
	// The sandbox is generic at creation time; its first assigned
	// language is recorded by the caller, not the provider (§4.3).
	Create(ctx context.Context) (Handle, error)

	// WriteFile stages a file inside the sandbox at path, overwriting
	// any existing content.
	WriteFile(ctx context.Context, h Handle, path string, content io.Reader) error

	// RunShell runs cmd as a shell command string and waits for it to
	// finish, returning its captured stdout/stderr/exit code.
	RunShell(ctx context.Context, h Handle, cmd string) (ExecResult, error)

	// RunNativeInterp runs code through the sandbox's native interpreter
	// for lang (currently only "python" has a native entrypoint; other
	// languages route through RunShell from their handler instead).
	RunNativeInterp(ctx context.Context, h Handle, lang string, code string) (ExecResult, error)

	// Reset wipes a sandbox's tenant-visible state so it's safe to hand
	// to a different tenant: the writable filesystem areas and any
	// per-handle native-interpreter process (whose globals() would
	// otherwise survive across reuse). Unlike Close, the sandbox itself
	// (the container) stays alive and reusable.
	Reset(ctx context.Context, h Handle) (ExecResult, error)

	// Close tears down the sandbox and releases any provider-side
	// resources (the native kernel process, the container, etc). Close
	// is idempotent — closing an already-closed handle is a no-op.
	Close(ctx context.Context, h Handle) error

	// Healthy reports whether the provider backend is reachable.
	Healthy(ctx context.Context) error
}

// CreateTimeout bounds how long a single Create call is allowed to take
// when the caller supplies a context without its own deadline.
const CreateTimeout = 30 * time.Second
