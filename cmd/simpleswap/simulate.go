package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"simpleSwap/internal/config"
	"simpleSwap/internal/devnet"
	"simpleSwap/internal/ledger"
	"simpleSwap/internal/model"
	"simpleSwap/internal/sequencer"
	"simpleSwap/internal/storage"
	"simpleSwap/internal/units"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run concurrent random traders against a local pool",
		RunE:  runSimulate,
	}
	fs := cmd.Flags()
	fs.Int("traders", 8, "number of concurrent traders")
	fs.Int("swaps", 50, "swaps per trader")
	fs.Uint("fee-bps", 0, "pool fee in basis points")
	fs.String("init-native", "1000000", "initial native reserve, whole units")
	fs.String("init-token", "1000000", "initial token reserve, whole units")
	fs.String("funding", "100000", "native and token funding per trader, whole units")
	fs.Int("top-ups", 0, "faucet top-ups per trader while its swaps are in flight")
	fs.Uint16("slippage-bps", 100, "slippage tolerance of each swap")
	fs.Duration("block-time", 10*time.Millisecond, "block interval")
	fs.Int64("seed", 1, "random seed")
	fs.String("out", "", "append swap events to this JSONL file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	initNative, err := units.Parse(cfg.InitNative, config.DefaultDecimals)
	if err != nil {
		return fmt.Errorf("init-native: %w", err)
	}
	initToken, err := units.Parse(cfg.InitToken, config.DefaultDecimals)
	if err != nil {
		return fmt.Errorf("init-token: %w", err)
	}
	funding, err := units.Parse(cfg.Funding, config.DefaultDecimals)
	if err != nil {
		return fmt.Errorf("funding: %w", err)
	}
	slippage, _ := cmd.Flags().GetUint16("slippage-bps")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := devnet.New(devnet.Config{
		Pool:       common.HexToAddress(config.DefaultPool),
		Token:      ledger.TokenInfo{Symbol: "GMON", Decimals: config.DefaultDecimals},
		FeeBps:     cfg.FeeBps,
		InitNative: initNative,
		InitToken:  initToken,
		Sequencer: sequencer.Config{
			BlockTime:   cfg.BlockTime,
			MaxBlockTxs: sequencer.DefaultConfig().MaxBlockTxs,
			ChainID:     config.DefaultChainID,
		},
	}, logger)
	if err != nil {
		return err
	}

	writerCtx, stopWriter := context.WithCancel(context.Background())
	var wg errgroup.Group
	if cfg.Out != "" {
		w := storage.NewWriter(storage.WriterConfig{}, storage.NewJsonlStorage(cfg.Out), nil, logger)
		d.Sequencer.OnSwapEvent(func(ev model.SwapEvent) { w.Enqueue(ev) })
		wg.Go(func() error { return w.Run(writerCtx) })
	}

	d.Start(ctx)
	logger.Info("simulate start",
		zap.Int("traders", cfg.Traders),
		zap.Int("swaps", cfg.Swaps),
		zap.Uint16("fee_bps", cfg.FeeBps),
		zap.Int64("seed", cfg.Seed),
	)

	started := time.Now()
	res, simErr := d.Simulate(ctx, devnet.SimConfig{
		Traders:     cfg.Traders,
		Swaps:       cfg.Swaps,
		Funding:     funding,
		Seed:        cfg.Seed,
		SlippageBps: slippage,
		TopUps:      cfg.TopUps,
	})
	d.Stop()
	stopWriter()
	if err := wg.Wait(); err != nil {
		return err
	}

	logger.Info("simulate done",
		zap.Int64("confirmed", res.Confirmed),
		zap.Int64("failed", res.Failed),
		zap.String("reserve_native", units.Format(&res.Reserves.Native, config.DefaultDecimals)),
		zap.String("reserve_token", units.Format(&res.Reserves.Token, config.DefaultDecimals)),
		zap.Duration("took", time.Since(started)),
	)
	if simErr != nil {
		return simErr
	}
	return writeJSON(cmd.OutOrStdout(), res)
}
