// Package sequencer orders submitted pool calls into blocks and executes
// them one at a time against the swap engine.
package sequencer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpleSwap/internal/model"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
)

var (
	ErrNonceTooLow = errors.New("nonce too low")
	ErrStopped     = errors.New("sequencer stopped")
	ErrUnknownKind = errors.New("unknown call kind")
)

// Kind is the pool entry point a call targets.
type Kind uint8

const (
	KindSwapNativeForToken Kind = iota + 1
	KindSwapTokenForNative
	KindApprove
)

func (k Kind) String() string {
	switch k {
	case KindSwapNativeForToken:
		return "swapETHForGMON"
	case KindSwapTokenForNative:
		return "swapGMONForETH"
	case KindApprove:
		return "approve"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// SwapKind maps a swap direction to its entry point.
func SwapKind(dir pool.Direction) Kind {
	if dir == pool.TokenToNative {
		return KindSwapTokenForNative
	}
	return KindSwapNativeForToken
}

// Call is one transaction waiting for execution.
type Call struct {
	From    common.Address
	Nonce   uint64
	Kind    Kind
	Amount  *uint256.Int
	MinOut  *uint256.Int
	Spender common.Address
}

// Hash derives a stable transaction hash from the call contents.
func (c Call) Hash() common.Hash {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], c.Nonce)
	return crypto.Keccak256Hash(
		c.From.Bytes(),
		nonce[:],
		[]byte{byte(c.Kind)},
		u256Bytes(c.Amount),
		u256Bytes(c.MinOut),
		c.Spender.Bytes(),
	)
}

func u256Bytes(v *uint256.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	b := v.Bytes32()
	return b[:]
}

// Observer is notified about submissions and resolutions.
type Observer interface {
	Submitted(Call)
	Resolved(Call, *model.Receipt, time.Duration)
}

// Config holds sequencer configuration.
type Config struct {
	BlockTime   time.Duration // zero executes as soon as calls arrive
	MaxBlockTxs int
	ChainID     uint64
}

// DefaultConfig returns the default sequencer config.
func DefaultConfig() Config {
	return Config{MaxBlockTxs: 100, ChainID: 10143}
}

type queued struct {
	call   Call
	hash   common.Hash
	handle *pending.Handle
	at     time.Time
}

// resolve notifies observers and then settles the handle, so a caller
// woken by the handle sees observer side effects.
func (s *Sequencer) resolve(q *queued, receipt *model.Receipt, err error) {
	for _, o := range s.observers {
		o.Resolved(q.call, receipt, time.Since(q.at))
	}
	q.handle.Resolve(receipt, err)
}

// Sequencer executes pool calls in strict submission order.
type Sequencer struct {
	config Config
	pool   *pool.Pool
	logger *zap.Logger

	txPool    []*queued
	txPoolMux sync.Mutex
	wake      chan struct{}

	stateMux  sync.RWMutex
	nextNonce map[common.Address]uint64
	handles   map[common.Hash]*pending.Handle
	blockNum  uint64

	evMux     sync.Mutex
	lastEvent *pool.SwapEvent

	observers []Observer
	onEvent   []func(model.SwapEvent)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sequencer bound to p.
func New(config Config, p *pool.Pool, logger *zap.Logger) *Sequencer {
	if config.MaxBlockTxs <= 0 {
		config.MaxBlockTxs = DefaultConfig().MaxBlockTxs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sequencer{
		config:    config,
		pool:      p,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		nextNonce: make(map[common.Address]uint64),
		handles:   make(map[common.Hash]*pending.Handle),
	}
	p.AddSink(s)
	return s
}

// Pool returns the engine the sequencer drives.
func (s *Sequencer) Pool() *pool.Pool { return s.pool }

// ChainID returns the configured chain id.
func (s *Sequencer) ChainID() uint64 { return s.config.ChainID }

// AddObserver registers an observer. Call before Start.
func (s *Sequencer) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// OnSwapEvent registers a callback for committed swaps. Call before Start.
func (s *Sequencer) OnSwapEvent(fn func(model.SwapEvent)) { s.onEvent = append(s.onEvent, fn) }

// OnSwap implements pool.EventSink.
func (s *Sequencer) OnSwap(ev pool.SwapEvent) {
	s.evMux.Lock()
	s.lastEvent = &ev
	s.evMux.Unlock()
}

func (s *Sequencer) takeEvent() *pool.SwapEvent {
	s.evMux.Lock()
	defer s.evMux.Unlock()
	ev := s.lastEvent
	s.lastEvent = nil
	return ev
}

// Start runs the block production loop until ctx ends or Stop is called.
func (s *Sequencer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.stateMux.Lock()
	s.ctx, s.cancel = ctx, cancel
	s.stateMux.Unlock()

	s.wg.Add(1)
	go s.blockProductionLoop(ctx)
}

// Stop halts block production. Calls still queued fail with ErrStopped.
func (s *Sequencer) Stop() {
	s.stateMux.RLock()
	cancel := s.cancel
	s.stateMux.RUnlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.txPoolMux.Lock()
	left := s.txPool
	s.txPool = nil
	s.txPoolMux.Unlock()
	for _, q := range left {
		receipt := &model.Receipt{TxHash: q.hash.Hex(), Status: model.TxFailed, Error: ErrStopped.Error()}
		s.resolve(q, receipt, ErrStopped)
	}
}

// NextNonce returns the nonce a new call from addr should use: the first
// one not taken by an executed or queued call.
func (s *Sequencer) NextNonce(addr common.Address) uint64 {
	s.stateMux.RLock()
	next := s.nextNonce[addr]
	s.stateMux.RUnlock()

	s.txPoolMux.Lock()
	defer s.txPoolMux.Unlock()
	queued := make(map[uint64]struct{})
	for _, q := range s.txPool {
		if q.call.From == addr {
			queued[q.call.Nonce] = struct{}{}
		}
	}
	for {
		if _, ok := queued[next]; !ok {
			return next
		}
		next++
	}
}

// Lookup returns the handle of a submitted call.
func (s *Sequencer) Lookup(hash common.Hash) (*pending.Handle, bool) {
	s.stateMux.RLock()
	defer s.stateMux.RUnlock()
	h, ok := s.handles[hash]
	return h, ok
}

// BlockNumber returns the number of the last produced block.
func (s *Sequencer) BlockNumber() uint64 {
	s.stateMux.RLock()
	defer s.stateMux.RUnlock()
	return s.blockNum
}

// Submit queues call and returns immediately. A queued call from the same
// sender with the same nonce is replaced and its handle fails with
// pending.ErrReplaced. A call whose nonce is ahead of the sender's next one
// stays queued until the calls before it have executed.
func (s *Sequencer) Submit(call Call) (*pending.Handle, error) {
	if call.Kind < KindSwapNativeForToken || call.Kind > KindApprove {
		return nil, ErrUnknownKind
	}
	s.stateMux.RLock()
	stopped := s.ctx != nil && s.ctx.Err() != nil
	next := s.nextNonce[call.From]
	s.stateMux.RUnlock()
	if stopped {
		return nil, ErrStopped
	}
	if call.Nonce < next {
		return nil, fmt.Errorf("%w: got %d, next %d", ErrNonceTooLow, call.Nonce, next)
	}

	q := &queued{call: call, hash: call.Hash(), at: time.Now()}
	q.handle = pending.New(q.hash)

	s.stateMux.Lock()
	s.handles[q.hash] = q.handle
	s.stateMux.Unlock()
	for _, o := range s.observers {
		o.Submitted(call)
	}

	var replaced *queued
	s.txPoolMux.Lock()
	for i, existing := range s.txPool {
		if existing.call.From == call.From && existing.call.Nonce == call.Nonce {
			replaced = existing
			s.txPool[i] = q
			break
		}
	}
	if replaced == nil {
		s.txPool = append(s.txPool, q)
	}
	s.txPoolMux.Unlock()

	if replaced != nil {
		receipt := &model.Receipt{
			TxHash: replaced.hash.Hex(),
			Status: model.TxFailed,
			Error:  pending.ErrReplaced.Error(),
		}
		s.resolve(replaced, receipt, pending.ErrReplaced)
		s.logger.Info("call replaced",
			zap.String("from", call.From.Hex()),
			zap.Uint64("nonce", call.Nonce),
			zap.String("old_tx", replaced.hash.Hex()),
			zap.String("new_tx", q.hash.Hex()),
		)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return q.handle, nil
}

func (s *Sequencer) blockProductionLoop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.config.BlockTime > 0 {
		ticker := time.NewTicker(s.config.BlockTime)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.produceBlock()
		case <-s.wake:
			if tick == nil {
				s.produceBlock()
			}
		}
	}
}

// produceBlock takes up to MaxBlockTxs ready calls and executes them in
// submission order. Once taken from the pool a call can no longer be
// replaced.
func (s *Sequencer) produceBlock() {
	s.txPoolMux.Lock()
	txs := s.takeReadyLocked()
	more := len(txs) == s.config.MaxBlockTxs && len(s.txPool) > 0
	s.txPoolMux.Unlock()

	if len(txs) == 0 {
		return
	}

	s.stateMux.Lock()
	s.blockNum++
	block := s.blockNum
	s.stateMux.Unlock()

	for i, q := range txs {
		s.execute(block, uint64(i), q)
	}
	s.logger.Debug("block produced", zap.Uint64("block", block), zap.Int("txs", len(txs)))

	if more {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// takeReadyLocked removes the calls whose nonce follows directly on the
// sender's last executed or already taken call. Gapped calls stay queued.
func (s *Sequencer) takeReadyLocked() []*queued {
	expect := make(map[common.Address]uint64)
	s.stateMux.RLock()
	for _, q := range s.txPool {
		if _, ok := expect[q.call.From]; !ok {
			expect[q.call.From] = s.nextNonce[q.call.From]
		}
	}
	s.stateMux.RUnlock()

	var txs []*queued
	rest := s.txPool
	for len(txs) < s.config.MaxBlockTxs {
		var (
			kept     []*queued
			progress bool
		)
		for _, q := range rest {
			if len(txs) < s.config.MaxBlockTxs && q.call.Nonce <= expect[q.call.From] {
				txs = append(txs, q)
				if q.call.Nonce == expect[q.call.From] {
					expect[q.call.From]++
				}
				progress = true
				continue
			}
			kept = append(kept, q)
		}
		rest = kept
		if !progress {
			break
		}
	}
	s.txPool = rest
	return txs
}

func (s *Sequencer) execute(block, index uint64, q *queued) {
	receipt := &model.Receipt{TxHash: q.hash.Hex(), BlockNumber: block}

	s.stateMux.Lock()
	next := s.nextNonce[q.call.From]
	if q.call.Nonce >= next {
		s.nextNonce[q.call.From] = q.call.Nonce + 1
	}
	s.stateMux.Unlock()

	var err error
	if q.call.Nonce < next {
		err = fmt.Errorf("%w: got %d, next %d", ErrNonceTooLow, q.call.Nonce, next)
	} else {
		err = s.apply(block, index, q, receipt)
	}

	if err != nil {
		receipt.Status = model.TxFailed
		receipt.Error = err.Error()
		err = fmt.Errorf("%w: %w", pending.ErrReverted, err)
		s.logger.Info("call reverted",
			zap.String("tx", q.hash.Hex()),
			zap.Stringer("kind", q.call.Kind),
			zap.String("from", q.call.From.Hex()),
			zap.String("reason", receipt.Error),
		)
	} else {
		receipt.Status = model.TxConfirmed
	}
	s.resolve(q, receipt, err)
}

func (s *Sequencer) apply(block, index uint64, q *queued, receipt *model.Receipt) error {
	call := q.call
	switch call.Kind {
	case KindApprove:
		if call.Amount == nil {
			return pool.ErrInvalidAmount
		}
		_, err := s.pool.Token().Approve(nil, call.From, call.Spender, call.Amount)
		return err
	case KindSwapNativeForToken, KindSwapTokenForNative:
		dir := pool.NativeToToken
		if call.Kind == KindSwapTokenForNative {
			dir = pool.TokenToNative
		}
		s.takeEvent()
		out, err := s.pool.Swap(call.From, dir, call.Amount, call.MinOut)
		if err != nil {
			return err
		}
		receipt.AmountOut = out.Dec()
		if ev := s.takeEvent(); ev != nil {
			rec := ev.Record(s.config.ChainID, q.hash, block)
			rec.LogIndex = index
			for _, fn := range s.onEvent {
				fn(rec)
			}
		}
		return nil
	default:
		return ErrUnknownKind
	}
}
