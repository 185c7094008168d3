package accessor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/sync/singleflight"

	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
)

const defaultReadTimeout = 10 * time.Second

// ReserveCache serves ReadReserves from a short-lived cache. Every
// submission through the cache drops the cached value, and so does the
// resolution of that submission.
type ReserveCache struct {
	inner       Accessor
	ttl         time.Duration
	readTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	reserves pool.Reserves
	fetched  time.Time
	valid    bool
	gen      uint64

	group singleflight.Group
}

// NewReserveCache wraps inner. A zero ttl disables caching.
func NewReserveCache(inner Accessor, ttl time.Duration) *ReserveCache {
	return &ReserveCache{inner: inner, ttl: ttl, readTimeout: defaultReadTimeout, now: time.Now}
}

// Invalidate drops the cached reserves.
func (c *ReserveCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.gen++
	c.mu.Unlock()
}

func (c *ReserveCache) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	c.mu.Lock()
	if c.valid && c.now().Sub(c.fetched) < c.ttl {
		r := c.reserves
		c.mu.Unlock()
		return r, nil
	}
	gen := c.gen
	c.mu.Unlock()

	// The shared read outlives any single caller; each caller stops waiting
	// when its own ctx ends.
	ch := c.group.DoChan("reserves", func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.readTimeout)
		defer cancel()
		return c.inner.ReadReserves(readCtx)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return pool.Reserves{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return pool.Reserves{}, res.Err
	}
	r := res.Val.(pool.Reserves)

	c.mu.Lock()
	// a submission since the read started makes the result stale
	if c.gen == gen {
		c.reserves = r
		c.fetched = c.now()
		c.valid = true
	}
	c.mu.Unlock()
	return r, nil
}

func (c *ReserveCache) SubmitSwap(ctx context.Context, intent Intent) (*pending.Handle, error) {
	c.Invalidate()
	h, err := c.inner.SubmitSwap(ctx, intent)
	if err != nil {
		return nil, err
	}
	c.invalidateOnResolve(h)
	return h, nil
}

func (c *ReserveCache) SubmitApproval(ctx context.Context, spender common.Address, amount *uint256.Int) (*pending.Handle, error) {
	return c.inner.SubmitApproval(ctx, spender, amount)
}

func (c *ReserveCache) invalidateOnResolve(h *pending.Handle) {
	go func() {
		<-h.Done()
		c.Invalidate()
	}()
}
