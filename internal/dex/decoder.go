package dex

import (
	"simpleSwap/internal/model"
)

// Decoder turns raw pool logs into swap events.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.SwapEvent, error)
}
