// Package indexer backfills pool Swap logs into storage.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"simpleSwap/internal/dex"
	"simpleSwap/internal/model"
	"simpleSwap/internal/retry"
	"simpleSwap/internal/storage"
)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Pool              common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// WithReserves reads getReserves at each swap's block. Needs an archive node.
	WithReserves bool
}

// Stats summarises one run.
type Stats struct {
	Logs    int
	Decoded int
	Failed  int
}

// Runner streams Swap logs from the chain, decodes them and writes swap
// events to storage.
type Runner struct {
	cfg        RunConfig
	source     Source
	storage    storage.Storage
	errs       storage.DecodeErrorSink
	decoder    dex.Decoder
	topic0     common.Hash
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner. errs may be nil.
func NewRunner(cfg RunConfig, source Source, sink storage.Storage, errs storage.DecodeErrorSink, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		storage:    sink,
		errs:       errs,
		decoder:    decoder,
		topic0:     decoder.Topic0(),
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.Pool, cfg.CheckpointEnabled),
	}, nil
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.source == nil {
		return stats, fmt.Errorf("chain source is nil")
	}
	if r.storage == nil {
		return stats, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Pool == (common.Address{}) {
		return stats, fmt.Errorf("pool address is required")
	}

	chainID, err := r.source.GetChainID(ctx)
	if err != nil {
		return stats, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return stats, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return stats, err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return stats, fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := time.Now().UTC()
		events := make([]model.SwapEvent, 0, len(logs))
		var failures []model.DecodeError
		for _, log := range logs {
			if log.Removed || r.isDuplicate(log) {
				continue
			}
			stats.Logs++

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return stats, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			record := buildLogRecord(chainIDValue, log, ts, ingestedAt)

			ev, err := r.decoder.Decode(record)
			if err != nil {
				stats.Failed++
				failures = append(failures, decodeError(record, err))
				r.logger.Warn("decode swap log failed", zap.String("tx", record.TxHash), zap.Uint64("log_index", record.LogIndex), zap.Error(err))
				continue
			}
			if r.cfg.WithReserves {
				if err := r.attachReserves(ctx, ev, log.BlockNumber); err != nil {
					return stats, err
				}
			}
			events = append(events, *ev)
		}

		if err := r.storage.PutSwapEvents(ctx, events); err != nil {
			return stats, fmt.Errorf("store swap events: %w", err)
		}
		if r.errs != nil && len(failures) > 0 {
			if err := r.errs.PutDecodeErrors(ctx, failures); err != nil {
				return stats, fmt.Errorf("store decode errors: %w", err)
			}
		}
		stats.Decoded += len(events)

		if err := r.checkpoint.Save(blockRange.To); err != nil {
			return stats, err
		}

		r.logger.Info("batch complete",
			zap.Int("swaps", len(events)),
			zap.Int("failed", len(failures)),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return stats, nil
}

// attachReserves reads the post-block reserves. With several swaps in one
// block every event carries the block-final state.
func (r *Runner) attachReserves(ctx context.Context, ev *model.SwapEvent, block uint64) error {
	var native, token *big.Int
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		native, token, err = dex.FetchReserves(ctx, r.source, r.cfg.Pool, new(big.Int).SetUint64(block))
		return err
	})
	if err != nil {
		return fmt.Errorf("reserves at block %d: %w", block, err)
	}
	ev.ReserveNative = native.String()
	ev.ReserveToken = token.String()
	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, []common.Address{r.cfg.Pool}, []common.Hash{r.topic0})
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
