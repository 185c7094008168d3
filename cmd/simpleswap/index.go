package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simpleSwap/internal/config"
	"simpleSwap/internal/indexer"
	"simpleSwap/internal/storage"
	"simpleSwap/internal/storage/postgres"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index pool Swap logs into swap events",
		RunE:  runIndex,
	}
	fs := cmd.Flags()
	addChainFlags(fs)
	fs.Uint64("from", 0, "start block (inclusive)")
	fs.Uint64("to", 0, "end block (inclusive), 0 means latest")
	fs.Uint64("batch-size", 2000, "blocks per batch")
	fs.String("out", "./data/swaps.jsonl", "output JSONL path, used when pg-dsn is empty")
	fs.String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	fs.String("pg-dsn", "", "Postgres DSN; swap events go to Postgres when set")
	fs.String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	fs.Bool("checkpoint-enabled", true, "enable checkpointing")
	fs.Bool("with-reserves", false, "read reserves at each swap's block (needs an archive node)")
	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolAddr, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, _, err := dialChain(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var sink storage.Storage
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sink = store
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	var errSink storage.DecodeErrorSink
	if cfg.Errors != "" {
		errSink = storage.NewJsonlStorage(cfg.Errors)
	}

	runner, err := indexer.NewRunner(indexer.RunConfig{
		Pool:              poolAddr,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		WithReserves:      cfg.WithReserves,
	}, client, sink, errSink, logger)
	if err != nil {
		return err
	}

	logger.Info("index start",
		zap.String("pool", poolAddr.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("with_reserves", cfg.WithReserves),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	start := time.Now()
	stats, err := runner.Run(ctx)
	logger.Info("index done",
		zap.Int("logs", stats.Logs),
		zap.Int("decoded", stats.Decoded),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return err
}
