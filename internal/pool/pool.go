// Package pool implements the per-language FIFO of idle, pre-warmed
// sandboxes plus the global live-count cap that bounds them.
package pool

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codeboxed/execd/internal/provider"
)

// Sandbox is the core-owned metadata record attached to a provider
// handle. The provider never sees this struct; it exists so the core
// doesn't depend on any field the provider may or may not expose on its
// own opaque object (§9's "metadata on opaque handles" note).
type Sandbox struct {
	Handle    provider.Handle
	Language  string
	CreatedAt time.Time

	// OwningSessionID and OwningUserID are set once a sandbox is bound
	// to a session; both are empty for pool-idle and ephemeral use.
	OwningSessionID string
	OwningUserID    string
}

// Pool owns the idle queues and the live-count cap. A single mutex
// guards both; it is never held across a Provider call.
type Pool struct {
	provider provider.Provider
	maxSize  int

	mu        sync.Mutex
	liveCount int
	queues    map[string]*list.List

	wg sync.WaitGroup
}

// New constructs an empty pool backed by p, capped at maxSize live
// sandboxes.
func New(p provider.Provider, maxSize int) *Pool {
	return &Pool{
		provider: p,
		maxSize:  maxSize,
		queues:   make(map[string]*list.List),
	}
}

func (pl *Pool) queueFor(language string) *list.List {
	q, ok := pl.queues[language]
	if !ok {
		q = list.New()
		pl.queues[language] = q
	}
	return q
}

// Checkout returns an idle sandbox for language if one is queued, else
// creates one provided the global live count is under the cap, else
// fails NoCapacity. The mutex is released before the provider Create
// call and never re-acquired while it's outstanding; liveCount is
// reserved optimistically first so two concurrent checkouts can't both
// observe spare capacity and overshoot the cap.
func (pl *Pool) Checkout(ctx context.Context, language string) (*Sandbox, error) {
	pl.mu.Lock()
	q := pl.queueFor(language)
	if front := q.Front(); front != nil {
		sb := front.Value.(*Sandbox)
		q.Remove(front)
		pl.mu.Unlock()
		return sb, nil
	}
	if pl.liveCount >= pl.maxSize {
		pl.mu.Unlock()
		return nil, ErrNoCapacity
	}
	pl.liveCount++
	pl.mu.Unlock()

	h, err := pl.provider.Create(ctx)
	if err != nil {
		pl.mu.Lock()
		pl.liveCount--
		pl.mu.Unlock()
		return nil, fmt.Errorf("pool: create sandbox: %w", err)
	}

	return &Sandbox{Handle: h, Language: language, CreatedAt: time.Now()}, nil
}

// ReturnAndReset runs the provider's reset protocol — wiping the
// filesystem and discarding any per-handle native-interpreter state, so
// a sandbox that ran one tenant's code can't leak anything to the
// next — and, on success, enqueues the sandbox at the tail of its
// language's idle queue. A reset failure (provider error or non-zero
// exit) discards the sandbox instead.
func (pl *Pool) ReturnAndReset(ctx context.Context, sb *Sandbox) error {
	res, err := pl.provider.Reset(ctx, sb.Handle)
	if err != nil || res.ExitCode != 0 {
		log.Warn().Str("sandbox_id", sb.Handle.ID).Err(err).Int("exit_code", res.ExitCode).
			Msg("pool: reset failed, discarding sandbox")
		return pl.Discard(ctx, sb)
	}

	sb.OwningSessionID = ""
	sb.OwningUserID = ""

	pl.mu.Lock()
	pl.queueFor(sb.Language).PushBack(sb)
	pl.mu.Unlock()
	return nil
}

// ReturnAndResetAsync runs ReturnAndReset in the background so the
// caller's response isn't delayed by reset latency (§9's fire-and-forget
// note). Wait blocks until every such goroutine has finished, so the
// Lifecycle Controller can drain them before shutdown closes what's
// left.
func (pl *Pool) ReturnAndResetAsync(ctx context.Context, sb *Sandbox) {
	pl.wg.Add(1)
	go func() {
		defer pl.wg.Done()
		if err := pl.ReturnAndReset(ctx, sb); err != nil {
			log.Warn().Str("sandbox_id", sb.Handle.ID).Err(err).Msg("pool: background return failed")
		}
	}()
}

// ReturnWithoutReset enqueues sb directly, for callers that can
// guarantee it's already clean. Reserved; no current caller uses it
// (§4.3).
func (pl *Pool) ReturnWithoutReset(sb *Sandbox) {
	sb.OwningSessionID = ""
	sb.OwningUserID = ""

	pl.mu.Lock()
	pl.queueFor(sb.Language).PushBack(sb)
	pl.mu.Unlock()
}

// Discard closes sb and drops it from the pool's accounting.
func (pl *Pool) Discard(ctx context.Context, sb *Sandbox) error {
	err := pl.provider.Close(ctx, sb.Handle)

	pl.mu.Lock()
	pl.liveCount--
	pl.mu.Unlock()

	if err != nil {
		return fmt.Errorf("pool: close sandbox: %w", err)
	}
	return nil
}

// Prewarm creates up to count sandboxes for language directly into its
// idle queue, for the Lifecycle Controller's startup pre-warm. It stops
// early (without error) if the live-count cap is hit, and logs-and-skips
// individual Create failures rather than aborting the whole batch.
// Returns how many sandboxes were actually created.
func (pl *Pool) Prewarm(ctx context.Context, language string, count int) int {
	created := 0
	for i := 0; i < count; i++ {
		pl.mu.Lock()
		if pl.liveCount >= pl.maxSize {
			pl.mu.Unlock()
			break
		}
		pl.liveCount++
		pl.mu.Unlock()

		h, err := pl.provider.Create(ctx)
		if err != nil {
			pl.mu.Lock()
			pl.liveCount--
			pl.mu.Unlock()
			log.Warn().Str("language", language).Err(err).Msg("pool: prewarm create failed, skipping")
			continue
		}

		sb := &Sandbox{Handle: h, Language: language, CreatedAt: time.Now()}
		pl.mu.Lock()
		pl.queueFor(language).PushBack(sb)
		pl.mu.Unlock()
		created++
	}
	return created
}

// Wait blocks until every in-flight ReturnAndResetAsync call has
// finished.
func (pl *Pool) Wait() {
	pl.wg.Wait()
}

// LiveCount reports the current global live-sandbox count.
func (pl *Pool) LiveCount() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.liveCount
}

// QueueLen reports how many idle sandboxes are queued for language.
func (pl *Pool) QueueLen(language string) int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.queueFor(language).Len()
}

// DrainAll closes every idle sandbox across all language queues, for
// use by the Lifecycle Controller during shutdown. It does not touch
// sandboxes checked out to the Active Ephemeral Set or the Session
// Registry — those are the caller's responsibility.
func (pl *Pool) DrainAll(ctx context.Context) {
	pl.mu.Lock()
	var all []*Sandbox
	for _, q := range pl.queues {
		for e := q.Front(); e != nil; e = e.Next() {
			all = append(all, e.Value.(*Sandbox))
		}
		q.Init()
	}
	pl.mu.Unlock()

	for _, sb := range all {
		if err := pl.provider.Close(ctx, sb.Handle); err != nil {
			log.Warn().Str("sandbox_id", sb.Handle.ID).Err(err).Msg("pool: shutdown close failed")
		}
		pl.mu.Lock()
		pl.liveCount--
		pl.mu.Unlock()
	}
}
