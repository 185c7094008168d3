package aggregate

import (
	"fmt"
	"math/big"

	"simpleSwap/internal/model"
)

const (
	directionBuy  = "native_to_token"
	directionSell = "token_to_native"
)

// Accumulator holds aggregate values for one pool window.
type Accumulator struct {
	ChainID      uint64
	PoolAddress  string
	WindowStart  uint64
	WindowEnd    uint64
	SwapCount    uint64
	BuyCount     uint64
	SellCount    uint64
	VolumeNative *big.Int
	VolumeToken  *big.Int
	FeeNative    *big.Int
	FeeToken     *big.Int
	CloseNative  *big.Int
	CloseToken   *big.Int

	feeBps    uint16
	lastBlock uint64
	lastIndex uint64
	lastTS    uint64
}

func NewAccumulator(ev model.SwapEvent, windowStart, windowEnd uint64, feeBps uint16) *Accumulator {
	return &Accumulator{
		ChainID:      ev.ChainID,
		PoolAddress:  ev.PoolAddress,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeNative: big.NewInt(0),
		VolumeToken:  big.NewInt(0),
		FeeNative:    big.NewInt(0),
		FeeToken:     big.NewInt(0),
		feeBps:       feeBps,
	}
}

// AddEvent folds one swap into the window. Buys sell native for token.
func (a *Accumulator) AddEvent(ev model.SwapEvent) error {
	amountIn, err := parseBigInt(ev.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(ev.AmountOut)
	if err != nil {
		return err
	}

	switch ev.Direction {
	case directionBuy:
		a.VolumeNative.Add(a.VolumeNative, amountIn)
		a.VolumeToken.Add(a.VolumeToken, amountOut)
		a.FeeNative.Add(a.FeeNative, feeFromAmount(amountIn, a.feeBps))
		a.BuyCount++
	case directionSell:
		a.VolumeToken.Add(a.VolumeToken, amountIn)
		a.VolumeNative.Add(a.VolumeNative, amountOut)
		a.FeeToken.Add(a.FeeToken, feeFromAmount(amountIn, a.feeBps))
		a.SellCount++
	default:
		return fmt.Errorf("unknown direction %q", ev.Direction)
	}
	a.SwapCount++

	if ev.ReserveNative != "" && ev.ReserveToken != "" && a.isLater(ev) {
		native, err := parseBigInt(ev.ReserveNative)
		if err != nil {
			return err
		}
		token, err := parseBigInt(ev.ReserveToken)
		if err != nil {
			return err
		}
		a.CloseNative, a.CloseToken = native, token
		a.lastTS, a.lastBlock, a.lastIndex = ev.Timestamp, ev.BlockNumber, ev.LogIndex
	}
	return nil
}

func (a *Accumulator) isLater(ev model.SwapEvent) bool {
	if a.CloseNative == nil {
		return true
	}
	if ev.Timestamp != a.lastTS {
		return ev.Timestamp > a.lastTS
	}
	if ev.BlockNumber != a.lastBlock {
		return ev.BlockNumber > a.lastBlock
	}
	return ev.LogIndex >= a.lastIndex
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}

// feeFromAmount is the part of amountIn the pool keeps, rounded down.
func feeFromAmount(amountIn *big.Int, feeBps uint16) *big.Int {
	if amountIn == nil || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeBps)))
	return fee.Div(fee, big.NewInt(10_000))
}
