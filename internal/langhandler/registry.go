// Package langhandler maps a canonical language tag to the sequence of
// provider calls that run a piece of code in a sandbox.
package langhandler

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeboxed/execd/internal/provider"
)

// ErrUnsupportedLanguage is returned by Canonicalize for any tag outside
// the configured allow-list. Callers map it to a 400 at the API
// boundary (§7).
var ErrUnsupportedLanguage = errors.New("langhandler: unsupported language")

// Handler runs code inside an already-provisioned sandbox and returns
// the raw execution outcome. Handlers never create or dispose of
// sandboxes — that's the pool and coordinator's job.
type Handler interface {
	Run(ctx context.Context, p provider.Provider, h provider.Handle, code string) (provider.ExecResult, error)
}

// canonicalAliases are every tag this binary knows how to canonicalize,
// matching original_source's language_handlers registry (javascript ->
// node, shell -> bash). Being known here only means a handler exists for
// it; whether a deployment actually accepts it is gated separately by
// Registry, built from SUPPORTED_LANGUAGES (§3, §6).
var canonicalAliases = map[string]string{
	"python":     "python",
	"node":       "node",
	"javascript": "node",
	"bash":       "bash",
	"shell":      "bash",
	"c":          "c",
}

var handlers = map[string]Handler{
	"python": pythonHandler{},
	"node":   nodeHandler{},
	"bash":   bashHandler{},
	"c":      cHandler{},
}

// Registry is the runtime view of which canonical languages a deployment
// actually accepts. A tag this binary has a handler for (canonicalAliases
// and handlers above) is still rejected unless it's also present in the
// configured SUPPORTED_LANGUAGES allow-list.
type Registry struct {
	allowed map[string]struct{}
	order   []string
}

// NewRegistry builds a Registry from the SUPPORTED_LANGUAGES config
// value. Every entry must canonicalize to a language this binary has a
// handler for; an unrecognised tag is a startup-time configuration
// error rather than a silent no-op.
func NewRegistry(supportedLanguages []string) (*Registry, error) {
	reg := &Registry{allowed: make(map[string]struct{})}
	for _, tag := range supportedLanguages {
		canonical, ok := canonicalAliases[tag]
		if !ok {
			return nil, fmt.Errorf("langhandler: supported_languages: %w: %q", ErrUnsupportedLanguage, tag)
		}
		if _, ok := handlers[canonical]; !ok {
			return nil, fmt.Errorf("langhandler: supported_languages: no handler for %q", canonical)
		}
		if _, seen := reg.allowed[canonical]; seen {
			continue
		}
		reg.allowed[canonical] = struct{}{}
		reg.order = append(reg.order, canonical)
	}
	return reg, nil
}

// Canonicalize resolves a user-supplied language tag (including
// aliases) to its canonical form, rejecting anything outside the
// allow-list this Registry was built with.
func (r *Registry) Canonicalize(lang string) (string, error) {
	canonical, ok := canonicalAliases[lang]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	if _, ok := r.allowed[canonical]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return canonical, nil
}

// Lookup returns the handler for an already-canonicalized language tag.
func (r *Registry) Lookup(canonical string) (Handler, error) {
	if _, ok := r.allowed[canonical]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, canonical)
	}
	return handlers[canonical], nil
}

// Supported lists the canonical language tags this Registry allows, in
// the order the pool pre-warms them at startup.
func (r *Registry) Supported() []string {
	return r.order
}
