package storage

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"simpleSwap/internal/model"
)

// WriterConfig tunes batching.
type WriterConfig struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

// Writer persists swap events from a goroutine of its own so producers never
// wait on I/O. When reserves is set the post-swap reserves of each flushed
// batch are recorded too.
type Writer struct {
	cfg      WriterConfig
	sink     Storage
	reserves ReservesRecorder
	events   chan model.SwapEvent
	logger   *zap.Logger

	dropped atomic.Uint64
	written atomic.Uint64
}

func NewWriter(cfg WriterConfig, sink Storage, reserves ReservesRecorder, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 4096
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Writer{
		cfg:      cfg,
		sink:     sink,
		reserves: reserves,
		events:   make(chan model.SwapEvent, cfg.Buffer),
		logger:   logger,
	}
}

// Enqueue hands ev to the writer. It never blocks; a full buffer drops the
// event and returns false.
func (w *Writer) Enqueue(ev model.SwapEvent) bool {
	select {
	case w.events <- ev:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

func (w *Writer) Written() uint64 { return w.written.Load() }

// Run writes batches until ctx is cancelled, then drains what is buffered.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.SwapEvent, 0, w.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := w.flush(ctx, batch); err != nil {
			w.logger.Error("persist swap events failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-w.events:
			batch = append(batch, ev)
			if len(batch) >= w.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			for {
				select {
				case ev := <-w.events:
					batch = append(batch, ev)
					if len(batch) >= w.cfg.BatchSize {
						flush(final)
					}
				default:
					flush(final)
					if n := w.dropped.Load(); n > 0 {
						w.logger.Warn("swap events dropped", zap.Uint64("count", n))
					}
					return nil
				}
			}
		}
	}
}

func (w *Writer) flush(ctx context.Context, batch []model.SwapEvent) error {
	if err := w.sink.PutSwapEvents(ctx, batch); err != nil {
		return err
	}
	w.written.Add(uint64(len(batch)))
	if w.reserves == nil {
		return nil
	}
	last := batch[len(batch)-1]
	if last.ReserveNative == "" {
		return nil
	}
	return w.reserves.SaveReserves(ctx, model.ReservesSnapshot{
		ChainID:       last.ChainID,
		PoolAddress:   last.PoolAddress,
		ReserveNative: last.ReserveNative,
		ReserveToken:  last.ReserveToken,
		Seq:           last.ReserveSeq,
		ObservedAt:    time.Unix(int64(last.Timestamp), 0).UTC(),
	})
}
