// Package lifecycle implements the Lifecycle Controller: startup
// pre-warming and idempotent, total shutdown (§4.6).
package lifecycle

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codeboxed/execd/internal/activeset"
	"github.com/codeboxed/execd/internal/langhandler"
	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/session"
)

// Controller owns the startup and shutdown sequencing around the Pool,
// Session Registry and Active Ephemeral Set.
type Controller struct {
	pool      *pool.Pool
	sessions  *session.Registry
	active    *activeset.Set
	languages *langhandler.Registry

	initialPoolSize int

	shutdownOnce sync.Once
}

// New constructs a Controller that pre-warms up to initialPoolSize
// sandboxes in total, spread across the configured allow-listed
// languages.
func New(pl *pool.Pool, sessions *session.Registry, active *activeset.Set, languages *langhandler.Registry, initialPoolSize int) *Controller {
	return &Controller{pool: pl, sessions: sessions, active: active, languages: languages, initialPoolSize: initialPoolSize}
}

// Prewarm creates INITIAL_POOL_SIZE sandboxes, divided by integer
// division across the supported canonical languages — any remainder is
// discarded, matching original_source's INITIAL_POOL_SIZE // len(langs)
// (§9's open question: preserved as specified). Individual creation
// failures are logged and skipped; the service is healthy regardless.
func (c *Controller) Prewarm(ctx context.Context) {
	langs := c.languages.Supported()
	if len(langs) == 0 {
		return
	}
	per := c.initialPoolSize / len(langs)
	if per == 0 {
		log.Warn().Int("initial_pool_size", c.initialPoolSize).Int("languages", len(langs)).
			Msg("lifecycle: initial pool size too small to prewarm any language")
		return
	}

	total := 0
	for _, lang := range langs {
		total += c.pool.Prewarm(ctx, lang, per)
	}
	log.Info().Int("created", total).Int("requested", per*len(langs)).Msg("lifecycle: prewarm complete")
}

// Shutdown closes every sandbox in the Pool, the Active Ephemeral Set,
// and the Session Registry, exactly once each, and is safe to call more
// than once — only the first call does anything.
func (c *Controller) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		c.pool.Wait()

		for _, sb := range c.active.DrainAll() {
			if err := c.pool.Discard(ctx, sb); err != nil {
				log.Warn().Str("sandbox_id", sb.Handle.ID).Err(err).Msg("lifecycle: failed to close ephemeral sandbox")
			}
		}
		for _, sb := range c.sessions.DrainAll() {
			if err := c.pool.Discard(ctx, sb); err != nil {
				log.Warn().Str("sandbox_id", sb.Handle.ID).Err(err).Msg("lifecycle: failed to close session sandbox")
			}
		}
		c.pool.DrainAll(ctx)

		log.Info().Msg("lifecycle: shutdown complete")
	})
}
