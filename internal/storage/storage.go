package storage

import (
	"context"

	"simpleSwap/internal/model"
)

// Storage defines a sink for committed swap events.
type Storage interface {
	PutSwapEvents(ctx context.Context, events []model.SwapEvent) error
}

// ReservesRecorder persists reserve snapshots.
type ReservesRecorder interface {
	SaveReserves(ctx context.Context, snap model.ReservesSnapshot) error
}

// DecodeErrorSink records logs that could not be decoded.
type DecodeErrorSink interface {
	PutDecodeErrors(ctx context.Context, errs []model.DecodeError) error
}
