package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simpleSwap/internal/aggregate"
	"simpleSwap/internal/config"
	"simpleSwap/internal/storage"
	"simpleSwap/internal/storage/postgres"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate swap events into window metrics",
		RunE:  runAggregate,
	}
	fs := cmd.Flags()
	fs.String("in", "", "input swap events JSONL")
	fs.String("out", "./data/window_metrics.jsonl", "output JSONL, used when pg-dsn is empty")
	fs.String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	fs.String("pg-dsn", "", "Postgres DSN")
	fs.Int("batch-size", 1000, "batch size for writes")
	fs.String("state-file", "", "optional local state file for progress tracking")
	fs.String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	fs.Uint("fee-bps", 0, "pool fee used to derive fees from volume")
	fs.Uint("native-decimals", config.DefaultDecimals, "native asset decimals")
	fs.Uint("token-decimals", config.DefaultDecimals, "token decimals")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	windowSeconds, err := cfg.WindowSeconds()
	if err != nil {
		return err
	}
	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink aggregate.MetricsSink
	var stateStore aggregate.StateStore
	stateKey := fmt.Sprintf("aggregator:%d", windowSeconds)
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile, Key: stateKey}
	}
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
		if stateStore == nil {
			stateStore = &aggregate.DBStateStore{Store: store, Name: stateKey}
		}
	} else {
		sink = storage.NewJsonlStorage(cfg.Out)
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds:  windowSeconds,
		BatchSize:      cfg.BatchSize,
		RecomputeFrom:  recomputeFrom,
		StateStore:     stateStore,
		FeeBps:         cfg.FeeBps,
		NativeDecimals: cfg.NativeDecimals,
		TokenDecimals:  cfg.TokenDecimals,
	}, sink, logger)

	logger.Info("aggregate start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	res, err := agg.Run(ctx, cfg.Input)
	logger.Info("aggregate done",
		zap.Int("events", res.Total),
		zap.Int("windows", res.Windows),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return err
}
