package pool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"simpleSwap/internal/model"
)

// SwapEvent is emitted after a swap commits.
type SwapEvent struct {
	Pool      common.Address
	Trader    common.Address
	Direction Direction
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Reserves  Reserves
	Time      time.Time
}

// EventSink receives committed swap events in commit order. Sinks run on
// the writer path and must not call back into the pool.
type EventSink interface {
	OnSwap(SwapEvent)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(SwapEvent)

func (f SinkFunc) OnSwap(ev SwapEvent) { f(ev) }

// Record converts the event into its storage form.
func (ev SwapEvent) Record(chainID uint64, txHash common.Hash, block uint64) model.SwapEvent {
	return model.SwapEvent{
		ChainID:       chainID,
		PoolAddress:   ev.Pool.Hex(),
		BlockNumber:   block,
		TxHash:        txHash.Hex(),
		Trader:        ev.Trader.Hex(),
		Direction:     ev.Direction.String(),
		AmountIn:      ev.AmountIn.Dec(),
		AmountOut:     ev.AmountOut.Dec(),
		ReserveNative: ev.Reserves.Native.Dec(),
		ReserveToken:  ev.Reserves.Token.Dec(),
		ReserveSeq:    ev.Reserves.Seq,
		Timestamp:     uint64(ev.Time.Unix()),
	}
}
