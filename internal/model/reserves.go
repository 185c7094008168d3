package model

import "time"

// ReservesSnapshot is a point-in-time copy of the pool reserves.
type ReservesSnapshot struct {
	ChainID       uint64    `json:"chain_id"`
	PoolAddress   string    `json:"pool_address"`
	ReserveNative string    `json:"reserve_native"`
	ReserveToken  string    `json:"reserve_token"`
	Seq           uint64    `json:"seq"`
	ObservedAt    time.Time `json:"observed_at"`
}
