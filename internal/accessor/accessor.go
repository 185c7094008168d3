// Package accessor exposes the pool's read and write paths to callers that
// do not hold chain state. Writes return a pending handle at once and
// resolve when the transaction is executed.
package accessor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
)

// Accessor is the caller-facing contract of a swap pool deployment.
type Accessor interface {
	ReadReserves(ctx context.Context) (pool.Reserves, error)
	SubmitSwap(ctx context.Context, intent Intent) (*pending.Handle, error)
	SubmitApproval(ctx context.Context, spender common.Address, amount *uint256.Int) (*pending.Handle, error)
}

// Intent is one swap request.
type Intent struct {
	Direction pool.Direction
	AmountIn  *uint256.Int
	MinOut    *uint256.Int
}

// Validate rejects intents the pool would refuse without touching state.
func (i Intent) Validate() error {
	if i.Direction != pool.NativeToToken && i.Direction != pool.TokenToNative {
		return pool.ErrInvalidAmount
	}
	if i.AmountIn == nil || i.AmountIn.IsZero() {
		return pool.ErrInvalidAmount
	}
	return nil
}

func (i Intent) minOut() *uint256.Int {
	if i.MinOut == nil {
		return new(uint256.Int)
	}
	return i.MinOut
}
