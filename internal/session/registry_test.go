package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/provider/providertest"
	"github.com/codeboxed/execd/internal/session"
)

func newRegistry(t *testing.T, maxSize int) (*session.Registry, *providertest.Fake) {
	t.Helper()
	fake := providertest.New()
	pl := pool.New(fake, maxSize)
	return session.New(pl), fake
}

func TestCreateBindsSandboxToSession(t *testing.T) {
	reg, _ := newRegistry(t, 2)

	sess, err := reg.Create(context.Background(), "user-1", "python")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, sess.ID, sess.Sandbox.OwningSessionID)
	assert.Equal(t, "user-1", sess.Sandbox.OwningUserID)

	found, err := reg.Lookup(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, found)
}

func TestLookupUnknownIDReturnsNotFound(t *testing.T) {
	reg, _ := newRegistry(t, 2)

	_, err := reg.Lookup("does-not-exist")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestEndReturnsSandboxToPool(t *testing.T) {
	reg, _ := newRegistry(t, 2)

	sess, err := reg.Create(context.Background(), "user-1", "python")
	require.NoError(t, err)

	require.NoError(t, reg.End(context.Background(), sess.ID))

	_, err = reg.Lookup(sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestEndTwiceReturnsNotFound(t *testing.T) {
	reg, _ := newRegistry(t, 2)

	sess, err := reg.Create(context.Background(), "user-1", "python")
	require.NoError(t, err)

	require.NoError(t, reg.End(context.Background(), sess.ID))
	assert.ErrorIs(t, reg.End(context.Background(), sess.ID), session.ErrNotFound)
}

func TestEndForUserEndsOnlyThatUsersSessions(t *testing.T) {
	reg, _ := newRegistry(t, 4)

	a1, err := reg.Create(context.Background(), "user-a", "python")
	require.NoError(t, err)
	a2, err := reg.Create(context.Background(), "user-a", "node")
	require.NoError(t, err)
	b1, err := reg.Create(context.Background(), "user-b", "python")
	require.NoError(t, err)

	errs := reg.EndForUser(context.Background(), "user-a")
	assert.Empty(t, errs)

	_, err = reg.Lookup(a1.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = reg.Lookup(a2.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	found, err := reg.Lookup(b1.ID)
	require.NoError(t, err)
	assert.Same(t, b1, found)
}

func TestRemoveDoesNotTouchPool(t *testing.T) {
	reg, fake := newRegistry(t, 2)

	sess, err := reg.Create(context.Background(), "user-1", "python")
	require.NoError(t, err)

	removed, err := reg.Remove(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, removed)

	_, err = reg.Lookup(sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Remove hands ownership to the caller; the sandbox must still be
	// live and untouched by the pool (not reset, not closed).
	assert.False(t, fake.IsClosed(sess.Sandbox.Handle))
}

func TestDrainAllClearsBothMaps(t *testing.T) {
	reg, _ := newRegistry(t, 2)

	_, err := reg.Create(context.Background(), "user-1", "python")
	require.NoError(t, err)
	_, err = reg.Create(context.Background(), "user-1", "node")
	require.NoError(t, err)

	drained := reg.DrainAll()
	assert.Len(t, drained, 2)

	errs := reg.EndForUser(context.Background(), "user-1")
	assert.Empty(t, errs, "no sessions should remain after DrainAll")
}
