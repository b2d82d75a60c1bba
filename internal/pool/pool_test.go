package pool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/provider"
	"github.com/codeboxed/execd/internal/provider/providertest"
)

func TestCheckoutCreatesWhenQueueEmpty(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 2)

	sb, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)
	assert.Equal(t, "python", sb.Language)
	assert.Equal(t, 1, pl.LiveCount())
}

func TestCheckoutReusesIdleSandboxFIFO(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 5)

	first, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)
	second, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)

	require.NoError(t, pl.ReturnAndReset(context.Background(), first))
	require.NoError(t, pl.ReturnAndReset(context.Background(), second))

	// third checkout must get `first` back (FIFO), not `second`.
	third, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)
	assert.Equal(t, first.Handle.ID, third.Handle.ID)
	assert.Equal(t, 2, pl.LiveCount(), "reuse must not create a new sandbox")
}

func TestCheckoutNoCrossLanguageStealing(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 5)

	py, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)
	require.NoError(t, pl.ReturnAndReset(context.Background(), py))

	assert.Equal(t, 1, pl.QueueLen("python"))
	assert.Equal(t, 0, pl.QueueLen("node"))
}

func TestCheckoutNoCapacity(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 1)

	_, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)

	_, err = pl.Checkout(context.Background(), "node")
	assert.ErrorIs(t, err, pool.ErrNoCapacity)
}

func TestLiveCountNeverExceedsMax(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 3)

	for i := 0; i < 5; i++ {
		pl.Checkout(context.Background(), "python")
	}
	assert.LessOrEqual(t, pl.LiveCount(), 3)
}

func TestReturnAndResetDiscardsOnResetFailure(t *testing.T) {
	fake := providertest.New()
	fake.ResetFn = func(ctx context.Context, h provider.Handle) (provider.ExecResult, error) {
		return provider.ExecResult{ExitCode: 1, Stderr: "boom"}, nil
	}
	pl := pool.New(fake, 2)

	sb, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)

	require.NoError(t, pl.ReturnAndReset(context.Background(), sb))

	assert.Equal(t, 0, pl.LiveCount(), "failed reset must discard, not enqueue")
	assert.Equal(t, 0, pl.QueueLen("python"))
	assert.True(t, fake.IsClosed(sb.Handle))
}

func TestDiscardClosesExactlyOnce(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 2)

	sb, err := pl.Checkout(context.Background(), "python")
	require.NoError(t, err)

	require.NoError(t, pl.Discard(context.Background(), sb))
	assert.Equal(t, 0, pl.LiveCount())
	assert.Equal(t, 1, fake.CloseCount)
}

func TestPrewarmStopsAtCapacity(t *testing.T) {
	fake := providertest.New()
	pl := pool.New(fake, 2)

	created := pl.Prewarm(context.Background(), "python", 5)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, pl.LiveCount())
}
