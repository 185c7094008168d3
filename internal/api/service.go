package api

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/sequencer"
)

// Backend is the pool deployment the server drives. A nil nonce lets the
// backend pick the next one.
type Backend interface {
	ReadReserves(ctx context.Context) (pool.Reserves, error)
	FeeBps() uint16
	Pool() common.Address
	Swap(ctx context.Context, trader common.Address, intent accessor.Intent, nonce *uint64) (*pending.Handle, error)
	Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int, nonce *uint64) (*pending.Handle, error)
	Lookup(hash common.Hash) (*pending.Handle, bool)
}

// LocalBackend serves any trader from an in-process sequencer.
type LocalBackend struct {
	seq *sequencer.Sequencer

	mu      sync.Mutex
	traders map[common.Address]*accessor.Local
}

func NewLocalBackend(seq *sequencer.Sequencer) *LocalBackend {
	return &LocalBackend{seq: seq, traders: make(map[common.Address]*accessor.Local)}
}

func (b *LocalBackend) accessorFor(trader common.Address) *accessor.Local {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.traders[trader]
	if !ok {
		a = accessor.NewLocal(b.seq, trader)
		b.traders[trader] = a
	}
	return a
}

func (b *LocalBackend) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	if err := ctx.Err(); err != nil {
		return pool.Reserves{}, err
	}
	return b.seq.Pool().GetReserves(), nil
}

func (b *LocalBackend) FeeBps() uint16 { return b.seq.Pool().FeeBps() }

func (b *LocalBackend) Pool() common.Address { return b.seq.Pool().Address() }

func (b *LocalBackend) Swap(ctx context.Context, trader common.Address, intent accessor.Intent, nonce *uint64) (*pending.Handle, error) {
	if nonce == nil {
		return b.accessorFor(trader).SubmitSwap(ctx, intent)
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	minOut := intent.MinOut
	if minOut == nil {
		minOut = new(uint256.Int)
	}
	return b.seq.Submit(sequencer.Call{
		From:   trader,
		Nonce:  *nonce,
		Kind:   sequencer.SwapKind(intent.Direction),
		Amount: new(uint256.Int).Set(intent.AmountIn),
		MinOut: new(uint256.Int).Set(minOut),
	})
}

func (b *LocalBackend) Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int, nonce *uint64) (*pending.Handle, error) {
	if nonce == nil {
		return b.accessorFor(owner).SubmitApproval(ctx, spender, amount)
	}
	if amount == nil {
		return nil, pool.ErrInvalidAmount
	}
	return b.seq.Submit(sequencer.Call{
		From:    owner,
		Nonce:   *nonce,
		Kind:    sequencer.KindApprove,
		Amount:  new(uint256.Int).Set(amount),
		Spender: spender,
	})
}

func (b *LocalBackend) Lookup(hash common.Hash) (*pending.Handle, bool) {
	return b.seq.Lookup(hash)
}

// RPCBackend drives a deployed pool with one signing account.
type RPCBackend struct {
	acc    accessor.Accessor
	from   common.Address
	pool   common.Address
	feeBps uint16

	handles sync.Map // common.Hash -> *pending.Handle
}

// NewRPCBackend wraps acc, which signs as from. Pass a ReserveCache around
// the RPC accessor to serve reads from cache.
func NewRPCBackend(acc accessor.Accessor, from, poolAddr common.Address, feeBps uint16) *RPCBackend {
	return &RPCBackend{acc: acc, from: from, pool: poolAddr, feeBps: feeBps}
}

func (b *RPCBackend) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	return b.acc.ReadReserves(ctx)
}

func (b *RPCBackend) FeeBps() uint16 { return b.feeBps }

func (b *RPCBackend) Pool() common.Address { return b.pool }

func (b *RPCBackend) Swap(ctx context.Context, trader common.Address, intent accessor.Intent, nonce *uint64) (*pending.Handle, error) {
	if err := b.check(trader, nonce); err != nil {
		return nil, err
	}
	h, err := b.acc.SubmitSwap(ctx, intent)
	return b.track(h, err)
}

func (b *RPCBackend) Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int, nonce *uint64) (*pending.Handle, error) {
	if err := b.check(owner, nonce); err != nil {
		return nil, err
	}
	h, err := b.acc.SubmitApproval(ctx, spender, amount)
	return b.track(h, err)
}

func (b *RPCBackend) Lookup(hash common.Hash) (*pending.Handle, bool) {
	v, ok := b.handles.Load(hash)
	if !ok {
		return nil, false
	}
	return v.(*pending.Handle), true
}

func (b *RPCBackend) check(trader common.Address, nonce *uint64) error {
	if trader != b.from {
		return ErrUnknownTrader
	}
	if nonce != nil {
		return ErrNonceUnsupported
	}
	return nil
}

func (b *RPCBackend) track(h *pending.Handle, err error) (*pending.Handle, error) {
	if err != nil {
		return nil, err
	}
	b.handles.Store(h.Hash(), h)
	return h, nil
}
