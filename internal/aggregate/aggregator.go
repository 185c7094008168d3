// Package aggregate buckets swap events into fixed time windows per pool.
package aggregate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"simpleSwap/internal/model"
	"simpleSwap/internal/storage"
)

// MetricsSink persists window metrics. *postgres.Store and
// *storage.JsonlStorage satisfy it.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds  uint64
	BatchSize      int
	RecomputeFrom  uint64
	StateStore     StateStore
	FeeBps         uint16
	NativeDecimals uint8
	TokenDecimals  uint8
}

// Result summarises one aggregation run.
type Result struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator aggregates swap events into pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	batch        []model.PoolWindowMetrics
	startTs      uint64
	maxTs        uint64
	result       Result
}

func NewAggregator(cfg Config, sink MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over a swap events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Result, error) {
	if err := a.begin(ctx); err != nil {
		return Result{}, err
	}
	err := storage.ReadSwapEvents(inputPath, func(ev model.SwapEvent) error {
		return a.Add(ctx, ev)
	})
	if err != nil {
		return a.result, err
	}
	return a.Finish(ctx)
}

// RunEvents aggregates an in-memory event slice.
func (a *Aggregator) RunEvents(ctx context.Context, events []model.SwapEvent) (Result, error) {
	if err := a.begin(ctx); err != nil {
		return Result{}, err
	}
	for _, ev := range events {
		if err := a.Add(ctx, ev); err != nil {
			return a.result, err
		}
	}
	return a.Finish(ctx)
}

func (a *Aggregator) begin(ctx context.Context) error {
	if a.sink == nil {
		return fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}
	a.startTs, a.maxTs = startTs, startTs
	a.result = Result{}
	return nil
}

// Add folds one event. Events at or before the saved progress are skipped.
func (a *Aggregator) Add(ctx context.Context, ev model.SwapEvent) error {
	a.result.Total++
	if ev.Timestamp <= a.startTs {
		a.result.Skipped++
		return nil
	}

	start := windowStart(ev.Timestamp, a.cfg.WindowSeconds)
	end := start + a.cfg.WindowSeconds

	key := poolKey(ev.PoolAddress)
	acc := a.accumulators[key]
	if acc != nil && acc.WindowStart != start {
		a.batch = append(a.batch, buildMetrics(acc, a.cfg))
		acc = nil
	}
	if acc == nil {
		acc = NewAccumulator(ev, start, end, a.cfg.FeeBps)
		a.accumulators[key] = acc
	}

	if err := acc.AddEvent(ev); err != nil {
		a.result.Failed++
		a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", ev.PoolAddress), zap.String("tx", ev.TxHash))
		return nil
	}

	if ev.Timestamp > a.maxTs {
		a.maxTs = ev.Timestamp
	}

	if len(a.batch) >= a.cfg.BatchSize {
		if err := a.flush(ctx); err != nil {
			return err
		}
		if err := a.saveState(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes all open windows and saves progress.
func (a *Aggregator) Finish(ctx context.Context) (Result, error) {
	for _, acc := range a.accumulators {
		a.batch = append(a.batch, buildMetrics(acc, a.cfg))
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := a.flush(ctx); err != nil {
		return a.result, err
	}

	a.cfg.RecomputeFrom = a.maxTs
	if err := a.saveState(ctx); err != nil {
		return a.result, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", a.result.Total),
		zap.Int("windows", a.result.Windows),
		zap.Int("skipped", a.result.Skipped),
		zap.Int("failed", a.result.Failed),
	)
	return a.result, nil
}

func (a *Aggregator) flush(ctx context.Context) error {
	if len(a.batch) == 0 {
		return nil
	}
	if err := a.sink.UpsertWindowMetrics(ctx, a.batch); err != nil {
		return fmt.Errorf("upsert window metrics: %w", err)
	}
	a.result.Windows += len(a.batch)
	a.batch = a.batch[:0]
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState stores the newest timestamp whose windows are all closed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}
