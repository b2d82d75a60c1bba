// Package activeset tracks ephemeral executions currently in flight
// without a session, keyed by a fresh ephemeral_id per execution.
// Membership is disjoint from the Pool and the Session Registry (§3).
package activeset

import (
	"sync"

	"github.com/codeboxed/execd/internal/pool"
)

// Set is a mutex-guarded map of in-flight ephemeral sandboxes.
type Set struct {
	mu      sync.Mutex
	entries map[string]*pool.Sandbox
}

// New constructs an empty Active Ephemeral Set.
func New() *Set {
	return &Set{entries: make(map[string]*pool.Sandbox)}
}

// Add records sb under ephemeralID.
func (s *Set) Add(ephemeralID string, sb *pool.Sandbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ephemeralID] = sb
}

// Remove drops ephemeralID from the set. It's a no-op if absent.
func (s *Set) Remove(ephemeralID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ephemeralID)
}

// Len reports how many ephemeral executions are currently in flight.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// DrainAll removes and returns every tracked sandbox, for the Lifecycle
// Controller to close on shutdown.
func (s *Set) DrainAll() []*pool.Sandbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*pool.Sandbox, 0, len(s.entries))
	for id, sb := range s.entries {
		out = append(out, sb)
		delete(s.entries, id)
	}
	return out
}
