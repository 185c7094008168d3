package model

// TxStatus is the outcome of a submitted transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Receipt reports how a submitted swap or approval resolved.
type Receipt struct {
	TxHash      string   `json:"tx_hash"`
	BlockNumber uint64   `json:"block_number"`
	Status      TxStatus `json:"status"`
	AmountOut   string   `json:"amount_out,omitempty"`
	GasUsed     uint64   `json:"gas_used,omitempty"`
	Error       string   `json:"error,omitempty"`
}
