// Package pending provides the single-resolution handle returned for
// submitted transactions.
package pending

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"simpleSwap/internal/model"
)

var (
	ErrNotResolved = errors.New("transaction not yet resolved")
	ErrReverted    = errors.New("transaction reverted")
	ErrReplaced    = errors.New("transaction replaced before acceptance")
)

// Handle tracks one submitted transaction until it resolves. It resolves
// exactly once; later Resolve calls are ignored.
type Handle struct {
	hash      common.Hash
	submitted time.Time

	once     sync.Once
	done     chan struct{}
	receipt  *model.Receipt
	err      error
	resolved time.Time
}

// New returns an unresolved handle for hash.
func New(hash common.Hash) *Handle {
	return &Handle{
		hash:      hash,
		submitted: time.Now(),
		done:      make(chan struct{}),
	}
}

// Hash returns the transaction hash.
func (h *Handle) Hash() common.Hash { return h.hash }

// Done is closed once the handle resolves.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Resolve settles the handle. A non-nil err marks it failed; receipt may
// still be set for a mined but reverted transaction. Returns false if the
// handle was already resolved.
func (h *Handle) Resolve(receipt *model.Receipt, err error) bool {
	first := false
	h.once.Do(func() {
		first = true
		h.receipt = receipt
		h.err = err
		h.resolved = time.Now()
		close(h.done)
	})
	return first
}

// Status reports pending until resolution, then confirmed or failed.
func (h *Handle) Status() model.TxStatus {
	select {
	case <-h.done:
		if h.err != nil {
			return model.TxFailed
		}
		return model.TxConfirmed
	default:
		return model.TxPending
	}
}

// Result returns the outcome without blocking. It returns ErrNotResolved
// while the transaction is pending.
func (h *Handle) Result() (*model.Receipt, error) {
	select {
	case <-h.done:
		return h.receipt, h.err
	default:
		return nil, ErrNotResolved
	}
}

// Wait blocks until the handle resolves or ctx ends. Giving up on ctx does
// not cancel the transaction.
func (h *Handle) Wait(ctx context.Context) (*model.Receipt, error) {
	select {
	case <-h.done:
		return h.receipt, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Latency is the time from submission to resolution, or zero if pending.
func (h *Handle) Latency() time.Duration {
	select {
	case <-h.done:
		return h.resolved.Sub(h.submitted)
	default:
		return 0
	}
}
