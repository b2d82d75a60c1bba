package pool

import "errors"

// ErrNoCapacity is returned by Checkout when the pool is already at
// MAX_POOL_SIZE and the requested language's idle queue is empty. It
// propagates to the internal HTTP boundary as a 503 (§7).
var ErrNoCapacity = errors.New("pool: no capacity")
