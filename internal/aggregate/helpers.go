package aggregate

import (
	"strings"
	"time"

	"simpleSwap/internal/model"
	"simpleSwap/internal/units"
)

const pricePlaces = 18

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}

// buildMetrics renders an accumulator with amounts in whole units.
func buildMetrics(acc *Accumulator, cfg Config) model.PoolWindowMetrics {
	m := model.PoolWindowMetrics{
		ChainID:        acc.ChainID,
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		BuyCount:       acc.BuyCount,
		SellCount:      acc.SellCount,
		VolumeNative:   units.FormatBig(acc.VolumeNative, cfg.NativeDecimals),
		VolumeToken:    units.FormatBig(acc.VolumeToken, cfg.TokenDecimals),
		FeeNative:      units.FormatBig(acc.FeeNative, cfg.NativeDecimals),
		FeeToken:       units.FormatBig(acc.FeeToken, cfg.TokenDecimals),
		FeeBps:         cfg.FeeBps,
	}
	if acc.CloseNative != nil && acc.CloseToken != nil {
		native := units.FormatBig(acc.CloseNative, cfg.NativeDecimals)
		token := units.FormatBig(acc.CloseToken, cfg.TokenDecimals)
		m.CloseNative, m.CloseToken = &native, &token
		if price, err := units.Price(acc.CloseNative, acc.CloseToken, cfg.NativeDecimals, cfg.TokenDecimals, pricePlaces); err == nil {
			m.ClosePrice = &price
		}
	}
	return m
}
