package accessor

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/sequencer"
)

// Local submits calls for one trader to an in-process sequencer.
type Local struct {
	seq    *sequencer.Sequencer
	trader common.Address

	// serialises nonce assignment for this trader
	mu sync.Mutex
}

// NewLocal returns an accessor acting as trader.
func NewLocal(seq *sequencer.Sequencer, trader common.Address) *Local {
	return &Local{seq: seq, trader: trader}
}

// Trader returns the account the accessor signs for.
func (l *Local) Trader() common.Address { return l.trader }

func (l *Local) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	if err := ctx.Err(); err != nil {
		return pool.Reserves{}, err
	}
	return l.seq.Pool().GetReserves(), nil
}

func (l *Local) SubmitSwap(ctx context.Context, intent Intent) (*pending.Handle, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	return l.submit(ctx, sequencer.Call{
		Kind:   sequencer.SwapKind(intent.Direction),
		Amount: new(uint256.Int).Set(intent.AmountIn),
		MinOut: new(uint256.Int).Set(intent.minOut()),
	})
}

func (l *Local) SubmitApproval(ctx context.Context, spender common.Address, amount *uint256.Int) (*pending.Handle, error) {
	if amount == nil {
		return nil, pool.ErrInvalidAmount
	}
	return l.submit(ctx, sequencer.Call{
		Kind:    sequencer.KindApprove,
		Amount:  new(uint256.Int).Set(amount),
		Spender: spender,
	})
}

func (l *Local) submit(ctx context.Context, call sequencer.Call) (*pending.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	call.From = l.trader
	call.Nonce = l.seq.NextNonce(l.trader)
	return l.seq.Submit(call)
}
