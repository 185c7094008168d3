package model

import "time"

// PoolWindowMetrics stores aggregated swap activity for one pool window.
// Amounts are whole-unit decimal strings.
type PoolWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PoolAddress    string    `json:"pool_address"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	BuyCount       uint64    `json:"buy_count"`
	SellCount      uint64    `json:"sell_count"`
	VolumeNative   string    `json:"volume_native"`
	VolumeToken    string    `json:"volume_token"`
	FeeNative      string    `json:"fee_native"`
	FeeToken       string    `json:"fee_token"`
	CloseNative    *string   `json:"close_native,omitempty"`
	CloseToken     *string   `json:"close_token,omitempty"`
	ClosePrice     *string   `json:"close_price,omitempty"`
	FeeBps         uint16    `json:"fee_bps"`
}
