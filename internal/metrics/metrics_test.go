package metrics

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"simpleSwap/internal/model"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/sequencer"
)

func TestRecorderCountsResolutions(t *testing.T) {
	r := New(prometheus.NewRegistry())

	buy := sequencer.Call{Kind: sequencer.KindSwapNativeForToken}
	sell := sequencer.Call{Kind: sequencer.KindSwapTokenForNative}
	approve := sequencer.Call{Kind: sequencer.KindApprove}

	for _, c := range []sequencer.Call{buy, sell, approve} {
		r.Submitted(c)
	}
	require.Equal(t, 3.0, testutil.ToFloat64(r.PendingTransactions))

	r.Resolved(buy, &model.Receipt{Status: model.TxConfirmed}, 10*time.Millisecond)
	r.Resolved(sell, &model.Receipt{Status: model.TxFailed}, 20*time.Millisecond)
	r.Resolved(approve, &model.Receipt{Status: model.TxConfirmed}, time.Millisecond)

	require.Equal(t, 0.0, testutil.ToFloat64(r.PendingTransactions))
	require.Equal(t, 1.0, testutil.ToFloat64(r.SwapsTotal.WithLabelValues("native_to_token", "confirmed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.SwapsTotal.WithLabelValues("token_to_native", "failed")))
	require.Equal(t, 2, testutil.CollectAndCount(r.SwapsTotal))

	r.ObserveSwap(pool.NativeToToken, nil)
	require.Equal(t, 1.0, testutil.ToFloat64(r.SwapsTotal.WithLabelValues("native_to_token", "dropped")))
}

func TestRecorderTracksVolumeAndReserves(t *testing.T) {
	r := New(prometheus.NewRegistry())

	ev := pool.SwapEvent{
		Direction: pool.NativeToToken,
		AmountIn:  uint256.NewInt(100),
		AmountOut: uint256.NewInt(90),
	}
	ev.Reserves.Native.SetUint64(1100)
	ev.Reserves.Token.SetUint64(910)
	r.OnSwap(ev)

	back := pool.SwapEvent{
		Direction: pool.TokenToNative,
		AmountIn:  uint256.NewInt(90),
		AmountOut: uint256.NewInt(99),
	}
	back.Reserves.Native.SetUint64(1001)
	back.Reserves.Token.SetUint64(1000)
	r.OnSwap(back)

	require.Equal(t, 199.0, testutil.ToFloat64(r.SwapVolume.WithLabelValues("native")))
	require.Equal(t, 180.0, testutil.ToFloat64(r.SwapVolume.WithLabelValues("token")))
	require.Equal(t, 1001.0, testutil.ToFloat64(r.PoolReserve.WithLabelValues("native")))
	require.Equal(t, 1000.0, testutil.ToFloat64(r.PoolReserve.WithLabelValues("token")))
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	require.Panics(t, func() { New(reg) })
}
