// Package session implements the long-lived session_id -> sandbox
// binding, with a reverse user_id -> {session_id} index.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeboxed/execd/internal/pool"
)

// Session is a long-lived binding of a sandbox to a client identity.
// The per-session lock lives on the record itself rather than in a
// secondary table (§9's "per-session locking" note) — the Coordinator
// holds it for the duration of file staging plus execution, which is
// what keeps concurrent execute calls on the same session_id from
// racing each other.
type Session struct {
	mu sync.Mutex

	ID        string
	UserID    string
	Sandbox   *pool.Sandbox
	CreatedAt time.Time
}

// Lock serialises execute calls targeting this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's execution lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Registry owns the session_id -> Session map and its user_id reverse
// index. Its own mutex is distinct from any individual session's lock.
type Registry struct {
	pool *pool.Pool

	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}
}

// New constructs an empty registry backed by p.
func New(p *pool.Pool) *Registry {
	return &Registry{
		pool:     p,
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Create checks out a sandbox from the pool for language, binds it to a
// fresh session_id under userID, and returns the new session.
func (r *Registry) Create(ctx context.Context, userID, language string) (*Session, error) {
	sb, err := r.pool.Checkout(ctx, language)
	if err != nil {
		return nil, err
	}
	sb.OwningUserID = userID

	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Sandbox:   sb,
		CreatedAt: time.Now(),
	}
	sb.OwningSessionID = sess.ID

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][sess.ID] = struct{}{}
	r.mu.Unlock()

	return sess, nil
}

// Lookup returns the session for sessionID, or ErrNotFound.
func (r *Registry) Lookup(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, sessionID)
	}
	return sess, nil
}

// remove drops sessionID from both maps and returns the session that
// was there, without touching the pool. Used by End (which then resets
// the sandbox back to the pool) and by the Coordinator's timeout path
// (which discards the sandbox outright instead).
func (r *Registry) remove(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, sessionID)
	}
	delete(r.sessions, sessionID)
	if set, ok := r.byUser[sess.UserID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byUser, sess.UserID)
		}
	}
	return sess, nil
}

// Remove drops sessionID from the registry without disposing of its
// sandbox, handing ownership to the caller. Used when the Coordinator
// has already decided the sandbox is possibly dirty and must discard it
// itself rather than reset-and-return it (§4.5 step 7).
func (r *Registry) Remove(sessionID string) (*Session, error) {
	return r.remove(sessionID)
}

// End removes sessionID from the registry and returns its sandbox to
// the pool via reset. Returns ErrNotFound if sessionID is unknown,
// leaving all state unchanged.
func (r *Registry) End(ctx context.Context, sessionID string) error {
	sess, err := r.remove(sessionID)
	if err != nil {
		return err
	}
	return r.pool.ReturnAndReset(ctx, sess.Sandbox)
}

// EndForUser ends every session owned by userID. Errors from individual
// sessions are collected but don't stop the sweep.
func (r *Registry) EndForUser(ctx context.Context, userID string) []error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.End(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// DrainAll removes every session and returns their sandboxes, for the
// Lifecycle Controller to close on shutdown.
func (r *Registry) DrainAll() []*pool.Sandbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*pool.Sandbox, 0, len(r.sessions))
	for id, sess := range r.sessions {
		out = append(out, sess.Sandbox)
		delete(r.sessions, id)
	}
	r.byUser = make(map[string]map[string]struct{})
	return out
}
