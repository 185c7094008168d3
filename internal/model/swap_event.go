package model

// SwapEvent is a committed pool swap. Amounts are decimal strings so large
// values survive JSON.
type SwapEvent struct {
	ChainID       uint64 `json:"chain_id"`
	PoolAddress   string `json:"pool_address"`
	BlockNumber   uint64 `json:"block_number"`
	TxHash        string `json:"tx_hash"`
	LogIndex      uint64 `json:"log_index"`
	Trader        string `json:"trader"`
	Direction     string `json:"direction"`
	AmountIn      string `json:"amount_in"`
	AmountOut     string `json:"amount_out"`
	ReserveNative string `json:"reserve_native,omitempty"`
	ReserveToken  string `json:"reserve_token,omitempty"`
	// ReserveSeq counts swaps committed by a local pool, this one included.
	ReserveSeq    uint64 `json:"reserve_seq,omitempty"`
	Timestamp     uint64 `json:"timestamp"`
}
