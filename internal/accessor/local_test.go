package accessor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"simpleSwap/internal/ledger"
	"simpleSwap/internal/model"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/sequencer"
)

var (
	localPool = common.HexToAddress("0xDf4682D006a1AeBC154afDE8dD13C912b09Fe9CB")
	lp        = common.HexToAddress("0x0000000000000000000000000000000000001001")
)

func newLocalSequencer(t *testing.T, traders ...common.Address) *sequencer.Sequencer {
	t.Helper()
	native := ledger.NewNative()
	token := ledger.NewToken(ledger.TokenInfo{Symbol: "GMON", Decimals: 18})
	require.NoError(t, native.Credit(lp, uint256.NewInt(1_000_000)))
	require.NoError(t, token.Mint(lp, uint256.NewInt(1_000_000)))
	_, err := token.Approve(nil, lp, localPool, uint256.NewInt(1_000_000))
	require.NoError(t, err)
	for _, tr := range traders {
		require.NoError(t, native.Credit(tr, uint256.NewInt(100_000)))
		require.NoError(t, token.Mint(tr, uint256.NewInt(100_000)))
	}
	p, err := pool.Deploy(pool.Config{Address: localPool, FeeBps: 30}, native, token, lp,
		uint256.NewInt(1_000_000), uint256.NewInt(1_000_000))
	require.NoError(t, err)

	s := sequencer.New(sequencer.DefaultConfig(), p, nil)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestLocalApproveAndSwap(t *testing.T) {
	trader := common.HexToAddress("0x000000000000000000000000000000000000beef")
	s := newLocalSequencer(t, trader)
	a := NewLocal(s, trader)
	ctx := context.Background()

	h, err := a.SubmitSwap(ctx, Intent{Direction: pool.TokenToNative, AmountIn: uint256.NewInt(1000)})
	require.NoError(t, err)
	_, err = waitHandle(t, h)
	require.ErrorIs(t, err, pool.ErrInsufficientAllowance)

	h, err = a.SubmitApproval(ctx, localPool, uint256.NewInt(1000))
	require.NoError(t, err)
	_, err = waitHandle(t, h)
	require.NoError(t, err)

	h, err = a.SubmitSwap(ctx, Intent{Direction: pool.TokenToNative, AmountIn: uint256.NewInt(1000), MinOut: uint256.NewInt(990)})
	require.NoError(t, err)
	receipt, err := waitHandle(t, h)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.Status)

	r, err := a.ReadReserves(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1_001_000), r.Token.Uint64())
}

func TestLocalRejectsInvalidIntent(t *testing.T) {
	s := newLocalSequencer(t)
	a := NewLocal(s, lp)
	_, err := a.SubmitSwap(context.Background(), Intent{Direction: pool.NativeToToken})
	require.ErrorIs(t, err, pool.ErrInvalidAmount)
}

// Many traders race on the same reserves while readers poll. Reads never
// block and every observed snapshot keeps k at or above its start.
func TestLocalConcurrentTraders(t *testing.T) {
	traders := make([]common.Address, 8)
	for i := range traders {
		traders[i] = common.BigToAddress(uint256.NewInt(uint64(0x5000 + i)).ToBig())
	}
	s := newLocalSequencer(t, traders...)
	start := s.Pool().GetReserves().Product()

	var g errgroup.Group
	var confirmed atomic.Int64
	for _, tr := range traders {
		a := NewLocal(s, tr)
		g.Go(func() error {
			for i := 0; i < 10; i++ {
				h, err := a.SubmitSwap(context.Background(), Intent{
					Direction: pool.NativeToToken,
					AmountIn:  uint256.NewInt(500),
					MinOut:    uint256.NewInt(400),
				})
				if err != nil {
					return err
				}
				if _, err := h.Wait(context.Background()); err == nil {
					confirmed.Add(1)
				}
			}
			return nil
		})
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	var violations atomic.Int64
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				r := s.Pool().GetReserves()
				if r.Product().Lt(start) {
					violations.Add(1)
				}
			}
		}()
	}

	require.NoError(t, g.Wait())
	close(stop)
	readers.Wait()

	require.Zero(t, violations.Load())
	require.Equal(t, int64(80), confirmed.Load())
	require.Equal(t, uint64(80), s.Pool().GetReserves().Seq)
}

type countingAccessor struct {
	reads atomic.Int64
	inner Accessor
}

func (c *countingAccessor) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	c.reads.Add(1)
	return c.inner.ReadReserves(ctx)
}

func (c *countingAccessor) SubmitSwap(ctx context.Context, i Intent) (*pending.Handle, error) {
	return c.inner.SubmitSwap(ctx, i)
}

func (c *countingAccessor) SubmitApproval(ctx context.Context, spender common.Address, amount *uint256.Int) (*pending.Handle, error) {
	return c.inner.SubmitApproval(ctx, spender, amount)
}

func TestReserveCacheInvalidatedBySwap(t *testing.T) {
	trader := common.HexToAddress("0x000000000000000000000000000000000000cafe")
	s := newLocalSequencer(t, trader)
	counting := &countingAccessor{inner: NewLocal(s, trader)}
	cache := NewReserveCache(counting, time.Hour)
	ctx := context.Background()

	before, err := cache.ReadReserves(ctx)
	require.NoError(t, err)
	_, err = cache.ReadReserves(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counting.reads.Load())

	h, err := cache.SubmitSwap(ctx, Intent{Direction: pool.NativeToToken, AmountIn: uint256.NewInt(1000)})
	require.NoError(t, err)
	_, err = waitHandle(t, h)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		after, err := cache.ReadReserves(ctx)
		return err == nil && after.Seq == before.Seq+1
	}, time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, counting.reads.Load(), int64(2))
}

type blockingReader struct {
	countingAccessor
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingReader) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return pool.Reserves{}, ctx.Err()
	}
	return b.countingAccessor.ReadReserves(ctx)
}

func TestReserveCacheSharedReadSurvivesCancelledCaller(t *testing.T) {
	trader := common.HexToAddress("0x000000000000000000000000000000000000cafe")
	s := newLocalSequencer(t, trader)
	reader := &blockingReader{
		countingAccessor: countingAccessor{inner: NewLocal(s, trader)},
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	cache := NewReserveCache(reader, time.Hour)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.ReadReserves(firstCtx)
		firstErr <- err
	}()
	<-reader.started

	type result struct {
		r   pool.Reserves
		err error
	}
	second := make(chan result, 1)
	go func() {
		r, err := cache.ReadReserves(context.Background())
		second <- result{r, err}
	}()

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(reader.release)
	got := <-second
	require.NoError(t, got.err)
	require.Equal(t, uint64(1_000_000), got.r.Native.Uint64())
}
