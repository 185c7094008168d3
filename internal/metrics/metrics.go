// Package metrics exposes Prometheus collectors for pool activity.
package metrics

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"simpleSwap/internal/model"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/sequencer"
)

const (
	namespace = "simpleswap"

	assetNative = "native"
	assetToken  = "token"
	statusDrop  = "dropped"
)

// Recorder holds the pool collectors. It implements sequencer.Observer and
// pool.EventSink.
type Recorder struct {
	SwapsTotal          *prometheus.CounterVec
	SwapVolume          *prometheus.CounterVec
	PoolReserve         *prometheus.GaugeVec
	PendingTransactions prometheus.Gauge
	ConfirmationSeconds prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		SwapsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swaps_total",
				Help:      "Swaps resolved, by direction and final status",
			},
			[]string{"direction", "status"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swap_volume_total",
				Help:      "Swap volume in base units, by asset",
			},
			[]string{"asset"},
		),
		PoolReserve: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_reserve",
				Help:      "Current pool reserve in base units",
			},
			[]string{"asset"},
		),
		PendingTransactions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_transactions",
				Help:      "Submitted transactions not yet resolved",
			},
		),
		ConfirmationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tx_confirmation_seconds",
				Help:      "Time from submission to resolution",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
	}
}

// Submitted implements sequencer.Observer.
func (r *Recorder) Submitted(sequencer.Call) {
	r.PendingTransactions.Inc()
}

// Resolved implements sequencer.Observer.
func (r *Recorder) Resolved(call sequencer.Call, receipt *model.Receipt, took time.Duration) {
	r.PendingTransactions.Dec()
	r.ConfirmationSeconds.Observe(took.Seconds())

	var dir pool.Direction
	switch call.Kind {
	case sequencer.KindSwapNativeForToken:
		dir = pool.NativeToToken
	case sequencer.KindSwapTokenForNative:
		dir = pool.TokenToNative
	default:
		return
	}
	r.ObserveSwap(dir, receipt)
}

// ObserveSwap counts one resolved swap. A nil receipt counts as dropped.
func (r *Recorder) ObserveSwap(dir pool.Direction, receipt *model.Receipt) {
	status := statusDrop
	if receipt != nil {
		status = string(receipt.Status)
	}
	r.SwapsTotal.WithLabelValues(dir.String(), status).Inc()
}

// OnSwap implements pool.EventSink.
func (r *Recorder) OnSwap(ev pool.SwapEvent) {
	nativeVol, tokenVol := ev.AmountIn, ev.AmountOut
	if ev.Direction == pool.TokenToNative {
		nativeVol, tokenVol = ev.AmountOut, ev.AmountIn
	}
	r.SwapVolume.WithLabelValues(assetNative).Add(toFloat(nativeVol))
	r.SwapVolume.WithLabelValues(assetToken).Add(toFloat(tokenVol))
	r.ObserveReserves(ev.Reserves)
}

// ObserveReserves sets the reserve gauges.
func (r *Recorder) ObserveReserves(res pool.Reserves) {
	r.PoolReserve.WithLabelValues(assetNative).Set(toFloat(&res.Native))
	r.PoolReserve.WithLabelValues(assetToken).Set(toFloat(&res.Token))
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
