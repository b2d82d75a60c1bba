// Package coordinator implements the Execution Coordinator: the single
// orchestration point that resolves a sandbox, stages files, dispatches
// to a language handler under a deadline, and releases the sandbox
// according to how the execution turned out (§4.5).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeboxed/execd/internal/activeset"
	"github.com/codeboxed/execd/internal/langhandler"
	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/provider"
	"github.com/codeboxed/execd/internal/session"
)

// FileEntry is one staged file, in the order it must be written.
type FileEntry struct {
	Path    string
	Content string
}

// ExecutionRequest is the Coordinator's single input. Timeout is
// clamped to [1, maxTimeout] before use; SessionID empty means an
// ephemeral execution.
type ExecutionRequest struct {
	ExecutionID string
	UserID      string
	Language    string
	Code        string
	Timeout     int
	SessionID   string
	Files       []FileEntry
}

// ExecutionResult is the Coordinator's single output, already shaped
// for the internal HTTP response. Error is empty on a clean run.
type ExecutionResult struct {
	Output       string
	Error        string
	ExitCode     int
	SessionID    string
	SessionEnded bool
}

// Coordinator wires together the Pool, Session Registry, Active
// Ephemeral Set and Provider to run one request end to end.
type Coordinator struct {
	provider   provider.Provider
	pool       *pool.Pool
	sessions   *session.Registry
	active     *activeset.Set
	languages  *langhandler.Registry
	maxTimeout int
}

// New constructs a Coordinator. maxTimeout bounds the clamp applied to
// every request's timeout, in seconds.
func New(p provider.Provider, pl *pool.Pool, sessions *session.Registry, active *activeset.Set, languages *langhandler.Registry, maxTimeout int) *Coordinator {
	return &Coordinator{provider: p, pool: pl, sessions: sessions, active: active, languages: languages, maxTimeout: maxTimeout}
}

func clampTimeout(seconds, max int) int {
	if seconds < 1 {
		return 1
	}
	if seconds > max {
		return max
	}
	return seconds
}

type execOutcome struct {
	result provider.ExecResult
	err    error
}

// Execute runs req to completion. A non-nil error means
// UnsupportedLanguage, SessionNotFound, NoCapacity, or a provider
// failure while the pool was creating a sandbox — the caller maps the
// first three straight to their HTTP status (§7). Every other failure mode
// (file staging, timeout, handler error) comes back as a populated
// ExecutionResult.Error with a nil error, since those are first-class
// execution outcomes, not transport failures.
func (c *Coordinator) Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	canonical, err := c.languages.Canonicalize(req.Language)
	if err != nil {
		return ExecutionResult{}, err
	}
	timeout := clampTimeout(req.Timeout, c.maxTimeout)

	var sess *session.Session
	var sb *pool.Sandbox
	ephemeralID := ""

	if req.SessionID != "" {
		sess, err = c.sessions.Lookup(req.SessionID)
		if err != nil {
			return ExecutionResult{}, err
		}
		sess.Lock()
		sb = sess.Sandbox
	} else {
		sb, err = c.pool.Checkout(ctx, canonical)
		if err != nil {
			return ExecutionResult{}, err
		}
		ephemeralID = uuid.NewString()
		c.active.Add(ephemeralID, sb)
	}

	for _, f := range req.Files {
		if werr := c.provider.WriteFile(ctx, sb.Handle, f.Path, strings.NewReader(f.Content)); werr != nil {
			c.releaseSandbox(sess, ephemeralID, sb, false, false)
			return ExecutionResult{
				Error:     fmt.Sprintf("File staging error: %v", werr),
				ExitCode:  -1,
				SessionID: req.SessionID,
			}, nil
		}
	}

	handler, err := c.languages.Lookup(canonical)
	if err != nil {
		c.releaseSandbox(sess, ephemeralID, sb, false, false)
		return ExecutionResult{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	outcome := make(chan execOutcome, 1)
	go func() {
		res, runErr := handler.Run(execCtx, c.provider, sb.Handle, req.Code)
		outcome <- execOutcome{result: res, err: runErr}
	}()

	select {
	case <-execCtx.Done():
		// The handler's own Run call races its work against execCtx and
		// attempts to kill it in-sandbox before returning (§5); wait for
		// that to finish so we know whether the kill was ever confirmed
		// before deciding how to dispose of the sandbox.
		out := <-outcome
		unresponsive := out.err != nil && errors.Is(out.err, provider.ErrSandboxUnresponsive)
		ended := c.releaseSandbox(sess, ephemeralID, sb, true, unresponsive)
		return ExecutionResult{
			Error:        "Execution timed out",
			ExitCode:     -1,
			SessionID:    req.SessionID,
			SessionEnded: ended,
		}, nil

	case out := <-outcome:
		if out.err != nil {
			unresponsive := errors.Is(out.err, provider.ErrSandboxUnresponsive)
			ended := c.releaseSandbox(sess, ephemeralID, sb, true, unresponsive)
			return ExecutionResult{
				Error:        out.err.Error(),
				ExitCode:     -1,
				SessionID:    req.SessionID,
				SessionEnded: ended,
			}, nil
		}

		c.releaseSandbox(sess, ephemeralID, sb, false, false)
		result := ExecutionResult{
			Output:    out.result.Stdout,
			Error:     out.result.Stderr,
			ExitCode:  out.result.ExitCode,
			SessionID: req.SessionID,
		}
		return result, nil
	}
}

// releaseSandbox disposes of sb according to whether the sandbox is
// still trusted. Ephemeral sandboxes normally go back through reset —
// reset neutralises a dirty ephemeral sandbox just as well as a clean
// one, since nothing about it needs to survive for a future caller.
// A session-bound sandbox that ran untrusted code is different: the
// same tenant would otherwise keep using it, so it's discarded and the
// session is torn down transparently instead of being returned to
// service. forceDiscard overrides both of those paths: it means the
// provider could not confirm the sandbox's in-flight process was
// actually killed after cancellation (§5's "closed outright" escalation),
// so its state can no longer be trusted even for reuse by the same
// tenant or reset-and-return to the pool. releaseSandbox reports whether
// a session was torn down.
func (c *Coordinator) releaseSandbox(sess *session.Session, ephemeralID string, sb *pool.Sandbox, untrusted, forceDiscard bool) bool {
	if sess != nil {
		if untrusted || forceDiscard {
			_, _ = c.sessions.Remove(sess.ID)
			_ = c.pool.Discard(context.Background(), sb)
			return true
		}
		sess.Unlock()
		return false
	}

	c.active.Remove(ephemeralID)
	if forceDiscard {
		_ = c.pool.Discard(context.Background(), sb)
		return false
	}
	c.pool.ReturnAndResetAsync(context.Background(), sb)
	return false
}
