package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/api"
	"simpleSwap/internal/config"
	"simpleSwap/internal/devnet"
	"simpleSwap/internal/ledger"
	"simpleSwap/internal/metrics"
	"simpleSwap/internal/model"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/quote"
	"simpleSwap/internal/sequencer"
	"simpleSwap/internal/storage"
	"simpleSwap/internal/storage/postgres"
	"simpleSwap/internal/units"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool over HTTP, backed by a local devnet or a chain",
		RunE:  runServe,
	}
	fs := cmd.Flags()
	addChainFlags(fs)
	addKeyFlag(fs)
	fs.String("mode", config.ModeLocal, "backend: local (in-process pool) or rpc (deployed pool)")
	fs.String("listen", ":8080", "HTTP listen address")
	fs.Uint("fee-bps", 0, "pool fee in basis points")
	fs.String("init-native", "1000", "local mode: initial native reserve, whole units")
	fs.String("init-token", "1000", "local mode: initial token reserve, whole units")
	fs.Duration("block-time", 100*time.Millisecond, "local mode: block interval, 0 executes immediately")
	fs.Duration("quote-ttl", config.DefaultQuoteTTL, "pool quote lifetime")
	fs.Duration("cache-ttl", time.Second, "rpc mode: reserve cache lifetime")
	fs.String("out", "", "local mode: append swap events to this JSONL file")
	fs.String("pg-dsn", "", "local mode: persist swap events and reserves to Postgres")
	fs.Uint("native-decimals", config.DefaultDecimals, "native asset decimals")
	fs.Uint("token-decimals", config.DefaultDecimals, "token decimals")
	fs.String("zerox-api-key", "", "0x API key; enables /api/swap routes")
	fs.String("zerox-base-url", "https://api.0x.org", "0x API base URL")
	fs.Float64("zerox-rate", 5, "0x requests per second")
	fs.Int("zerox-burst", 5, "0x request burst")
	fs.Duration("zerox-timeout", 10*time.Second, "0x request timeout")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
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
	tokenAddr, err := parseAddress("token", cfg.Token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	g, ctx := errgroup.WithContext(ctx)
	opts := api.Options{
		NativeDecimals: cfg.NativeDecimals,
		TokenDecimals:  cfg.TokenDecimals,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	var backend api.Backend
	chainID := cfg.ChainID
	switch cfg.Mode {
	case config.ModeLocal:
		d, cleanup, err := startLocal(ctx, g, cfg, rec, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		backend = api.NewLocalBackend(d.Sequencer)
		opts.Faucet = d
	case config.ModeRPC:
		b, id, cleanup, err := startRPC(ctx, g, cfg, rec, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		backend, chainID = b, id
	}

	opts.PoolQuoter = quote.NewPoolQuoter(quote.PoolQuoterConfig{
		ChainID:        chainID,
		Pool:           poolAddr,
		Token:          tokenAddr,
		FeeBps:         backend.FeeBps(),
		GasLimit:       cfg.GasLimit,
		TTL:            cfg.QuoteTTL,
		NativeDecimals: cfg.NativeDecimals,
		TokenDecimals:  cfg.TokenDecimals,
	}, backend)
	if cfg.ZeroX.APIKey != "" {
		opts.ZeroX = quote.NewClient(quote.ClientConfig{
			BaseURL:   cfg.ZeroX.BaseURL,
			APIKey:    cfg.ZeroX.APIKey,
			RateLimit: cfg.ZeroX.RateLimit,
			Burst:     cfg.ZeroX.Burst,
			Timeout:   cfg.ZeroX.Timeout,
		}, logger)
	}

	app := api.NewServer(backend, opts, logger).App()

	logger.Info("serve start",
		zap.String("mode", cfg.Mode),
		zap.String("listen", cfg.Listen),
		zap.String("pool", poolAddr.Hex()),
		zap.Uint16("fee_bps", backend.FeeBps()),
		zap.Bool("zerox", opts.ZeroX != nil),
	)

	g.Go(func() error {
		return app.Listen(cfg.Listen)
	})
	g.Go(func() error {
		<-ctx.Done()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func startLocal(ctx context.Context, g *errgroup.Group, cfg config.ServeConfig, rec *metrics.Recorder, logger *zap.Logger) (*devnet.Devnet, func(), error) {
	initNative, err := units.Parse(cfg.InitNative, cfg.NativeDecimals)
	if err != nil {
		return nil, nil, fmt.Errorf("init-native: %w", err)
	}
	initToken, err := units.Parse(cfg.InitToken, cfg.TokenDecimals)
	if err != nil {
		return nil, nil, fmt.Errorf("init-token: %w", err)
	}
	poolAddr, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return nil, nil, err
	}

	d, err := devnet.New(devnet.Config{
		Pool:       poolAddr,
		Token:      ledger.TokenInfo{Symbol: "GMON", Decimals: cfg.TokenDecimals},
		FeeBps:     cfg.FeeBps,
		InitNative: initNative,
		InitToken:  initToken,
		Sequencer: sequencer.Config{
			BlockTime:   cfg.BlockTime,
			MaxBlockTxs: sequencer.DefaultConfig().MaxBlockTxs,
			ChainID:     cfg.ChainID,
		},
	}, logger, pool.WithSink(rec))
	if err != nil {
		return nil, nil, err
	}
	d.Sequencer.AddObserver(rec)
	rec.ObserveReserves(d.Pool.GetReserves())

	cleanup := func() {}
	var sink storage.Storage
	var reserves storage.ReservesRecorder
	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		sink, reserves = store, store
		cleanup = store.Close
		logger.Info("persisting swaps", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	case cfg.Out != "":
		sink = storage.NewJsonlStorage(cfg.Out)
		logger.Info("persisting swaps", zap.String("out", cfg.Out))
	}

	if sink != nil {
		w := storage.NewWriter(storage.WriterConfig{}, sink, reserves, logger)
		d.Sequencer.OnSwapEvent(func(ev model.SwapEvent) {
			if !w.Enqueue(ev) {
				logger.Warn("swap event buffer full", zap.String("tx_hash", ev.TxHash))
			}
		})
		g.Go(func() error { return w.Run(ctx) })
	}

	d.Start(ctx)
	return d, func() {
		d.Stop()
		cleanup()
	}, nil
}

func startRPC(ctx context.Context, g *errgroup.Group, cfg config.ServeConfig, rec *metrics.Recorder, logger *zap.Logger) (*api.RPCBackend, uint64, func(), error) {
	key, err := loadKey(cfg.PrivateKey)
	if err != nil {
		return nil, 0, nil, err
	}
	client, chainID, err := dialChain(ctx, cfg.Chain, logger)
	if err != nil {
		return nil, 0, nil, err
	}
	acc, err := newRPCAccessor(cfg.Chain, chainID, client, key, logger)
	if err != nil {
		client.Close()
		return nil, 0, nil, err
	}
	cached := accessor.NewReserveCache(acc, cfg.CacheTTL)
	poolAddr, _ := parseAddress("pool", cfg.Pool)

	g.Go(func() error {
		pollReserves(ctx, cached, rec, cfg.PollInterval, logger)
		return nil
	})

	logger.Info("rpc backend ready",
		zap.String("from", acc.From().Hex()),
		zap.String("chain_id", chainID.String()),
	)
	return api.NewRPCBackend(cached, acc.From(), poolAddr, cfg.FeeBps), chainID.Uint64(), func() {
		acc.Close()
		client.Close()
	}, nil
}

// pollReserves keeps the reserve gauges current for a remote pool.
func pollReserves(ctx context.Context, acc accessor.Accessor, rec *metrics.Recorder, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = config.DefaultPollInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		r, err := acc.ReadReserves(ctx)
		if err == nil {
			rec.ObserveReserves(r)
		} else if ctx.Err() == nil {
			logger.Warn("read reserves failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
