// Package pool implements a two-asset constant-product swap pool holding the
// native asset and one fungible token.
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpleSwap/internal/ledger"
)

// Config describes a pool deployment.
type Config struct {
	Address common.Address
	FeeBps  uint16
}

// Reserves is an immutable snapshot of the pool reserves. Seq counts
// committed swaps.
type Reserves struct {
	Native uint256.Int
	Token  uint256.Int
	Seq    uint64
}

// Product returns Native*Token, or nil if it does not fit in 256 bits.
func (r Reserves) Product() *uint256.Int {
	p, err := ledger.MulChecked(&r.Native, &r.Token)
	if err != nil {
		return nil
	}
	return p
}

// Pool is the swap engine. Swaps are serialized by a single writer lock;
// GetReserves reads a published snapshot and never waits on a writer.
type Pool struct {
	cfg    Config
	native *ledger.Native
	token  *ledger.Token
	logger *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	reserveNative uint256.Int
	reserveToken  uint256.Int
	seq           uint64
	sinks         []EventSink

	snapshot atomic.Pointer[Reserves]
}

// Option customises a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for swap diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSink registers an event sink.
func WithSink(sink EventSink) Option {
	return func(p *Pool) { p.sinks = append(p.sinks, sink) }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// Deploy creates an active pool funded by provider. The provider must hold
// initNative of the native asset and have approved the pool for initToken.
func Deploy(cfg Config, native *ledger.Native, token *ledger.Token, provider common.Address, initNative, initToken *uint256.Int, opts ...Option) (*Pool, error) {
	if cfg.FeeBps >= MaxFeeBps {
		return nil, ErrInvalidFee
	}
	if initNative == nil || initToken == nil || initNative.IsZero() || initToken.IsZero() {
		return nil, fmt.Errorf("%w: initial liquidity must be positive on both sides", ErrInvalidAmount)
	}
	if _, err := ledger.MulChecked(initNative, initToken); err != nil {
		return nil, fmt.Errorf("%w: initial reserves product: %v", ErrInvalidAmount, err)
	}

	p := &Pool{
		cfg:    cfg,
		native: native,
		token:  token,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	j := ledger.NewJournal()
	if err := native.Transfer(j, provider, cfg.Address, initNative); err != nil {
		j.Revert()
		return nil, fmt.Errorf("fund native reserve: %w", err)
	}
	if err := token.TransferFrom(j, cfg.Address, provider, cfg.Address, initToken); err != nil {
		j.Revert()
		return nil, fmt.Errorf("fund token reserve: %w", err)
	}
	j.Commit()

	p.reserveNative.Set(initNative)
	p.reserveToken.Set(initToken)
	p.publishLocked()
	return p, nil
}

// Address returns the pool account.
func (p *Pool) Address() common.Address { return p.cfg.Address }

// FeeBps returns the swap fee in basis points.
func (p *Pool) FeeBps() uint16 { return p.cfg.FeeBps }

// Token returns the token ledger the pool trades against.
func (p *Pool) Token() *ledger.Token { return p.token }

// Native returns the native balance ledger.
func (p *Pool) Native() *ledger.Native { return p.native }

// GetReserves returns the last committed reserves.
func (p *Pool) GetReserves() Reserves {
	return *p.snapshot.Load()
}

// AddSink registers an event sink after construction.
func (p *Pool) AddSink(sink EventSink) {
	p.mu.Lock()
	p.sinks = append(p.sinks, sink)
	p.mu.Unlock()
}

// Quote prices a swap against the current snapshot without executing it.
func (p *Pool) Quote(dir Direction, amountIn *uint256.Int) (*uint256.Int, error) {
	return QuoteReserves(p.GetReserves(), dir, amountIn, p.cfg.FeeBps)
}

// QuoteReserves prices a swap against r and applies the same output guards
// as Swap: a zero output is ErrInsufficientOutput and an output that would
// empty the reserve is ErrPoolDrained.
func QuoteReserves(r Reserves, dir Direction, amountIn *uint256.Int, feeBps uint16) (*uint256.Int, error) {
	rIn, rOut, err := orient(dir, &r.Native, &r.Token)
	if err != nil {
		return nil, err
	}
	out, err := GetAmountOut(amountIn, rIn, rOut, feeBps)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, ErrInsufficientOutput
	}
	if !out.Lt(rOut) {
		return nil, ErrPoolDrained
	}
	return out, nil
}

// SwapNativeForToken sells amountIn of the native asset held by caller.
func (p *Pool) SwapNativeForToken(caller common.Address, amountIn, minTokenOut *uint256.Int) (*uint256.Int, error) {
	return p.Swap(caller, NativeToToken, amountIn, minTokenOut)
}

// SwapTokenForNative sells tokenIn tokens the caller approved to the pool.
func (p *Pool) SwapTokenForNative(caller common.Address, tokenIn, minNativeOut *uint256.Int) (*uint256.Int, error) {
	return p.Swap(caller, TokenToNative, tokenIn, minNativeOut)
}

// Swap executes one swap atomically. On any error no balance or reserve
// is changed.
func (p *Pool) Swap(caller common.Address, dir Direction, amountIn, minOut *uint256.Int) (*uint256.Int, error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrInvalidAmount
	}
	if minOut == nil {
		minOut = new(uint256.Int)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rIn, rOut, err := orient(dir, &p.reserveNative, &p.reserveToken)
	if err != nil {
		return nil, err
	}

	j := ledger.NewJournal()
	out, err := p.settleLocked(j, caller, dir, amountIn, minOut, rIn, rOut)
	if err != nil {
		j.Revert()
		p.logger.Debug("swap rejected",
			zap.String("trader", caller.Hex()),
			zap.Stringer("direction", dir),
			zap.String("amount_in", amountIn.Dec()),
			zap.String("min_out", minOut.Dec()),
			zap.Error(err),
		)
		return nil, err
	}
	j.Commit()

	rIn.Add(rIn, amountIn)
	rOut.Sub(rOut, out)
	p.seq++
	snap := p.publishLocked()

	ev := SwapEvent{
		Pool:      p.cfg.Address,
		Trader:    caller,
		Direction: dir,
		AmountIn:  new(uint256.Int).Set(amountIn),
		AmountOut: new(uint256.Int).Set(out),
		Reserves:  *snap,
		Time:      p.now(),
	}
	for _, sink := range p.sinks {
		sink.OnSwap(ev)
	}
	return out, nil
}

// settleLocked moves the funds for one swap through j. The token pull of a
// TokenToNative swap happens before pricing so a missing approval fails
// first.
func (p *Pool) settleLocked(j *ledger.Journal, caller common.Address, dir Direction, amountIn, minOut, rIn, rOut *uint256.Int) (*uint256.Int, error) {
	if _, err := ledger.AddChecked(rIn, amountIn); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	if dir == TokenToNative {
		if err := p.token.TransferFrom(j, p.cfg.Address, caller, p.cfg.Address, amountIn); err != nil {
			return nil, err
		}
	}

	out, err := GetAmountOut(amountIn, rIn, rOut, p.cfg.FeeBps)
	if err != nil {
		return nil, err
	}
	if out.IsZero() || out.Lt(minOut) {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrInsufficientOutput, out.Dec(), minOut.Dec())
	}
	if !out.Lt(rOut) {
		return nil, ErrPoolDrained
	}

	switch dir {
	case NativeToToken:
		if err := p.native.Transfer(j, caller, p.cfg.Address, amountIn); err != nil {
			return nil, err
		}
		if err := p.token.Transfer(j, p.cfg.Address, caller, out); err != nil {
			return nil, err
		}
	case TokenToNative:
		if err := p.native.Transfer(j, p.cfg.Address, caller, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Pool) publishLocked() *Reserves {
	snap := &Reserves{Seq: p.seq}
	snap.Native.Set(&p.reserveNative)
	snap.Token.Set(&p.reserveToken)
	p.snapshot.Store(snap)
	return snap
}

// orient returns (reserveIn, reserveOut) for dir.
func orient(dir Direction, native, token *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	switch dir {
	case NativeToToken:
		return native, token, nil
	case TokenToNative:
		return token, native, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown direction %s", ErrInvalidAmount, dir)
	}
}
