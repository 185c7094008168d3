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
	"simpleSwap/internal/quote"
)

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch a price or firm quote from the 0x swap API",
		RunE:  runQuote,
	}
	fs := cmd.Flags()
	fs.Uint64("chain-id", config.DefaultChainID, "chain id")
	fs.String("sell-token", quote.NativeToken, "token to sell")
	fs.String("buy-token", config.DefaultToken, "token to buy")
	fs.String("sell-amount", "", "amount to sell in base units")
	fs.String("taker", "", "taker address, required for firm quotes")
	fs.Bool("firm", false, "request a firm quote instead of a price")
	fs.String("zerox-api-key", "", "0x API key")
	fs.String("zerox-base-url", "https://api.0x.org", "0x API base URL")
	fs.Float64("zerox-rate", 5, "requests per second")
	fs.Int("zerox-burst", 5, "request burst")
	fs.Duration("zerox-timeout", 10*time.Second, "request timeout")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ZeroX.APIKey == "" {
		return fmt.Errorf("zerox api key is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := quote.NewClient(quote.ClientConfig{
		BaseURL:   cfg.ZeroX.BaseURL,
		APIKey:    cfg.ZeroX.APIKey,
		RateLimit: cfg.ZeroX.RateLimit,
		Burst:     cfg.ZeroX.Burst,
		Timeout:   cfg.ZeroX.Timeout,
	}, logger)
	params := quote.Params{
		ChainID:    cfg.ChainID,
		SellToken:  cfg.SellToken,
		BuyToken:   cfg.BuyToken,
		SellAmount: cfg.SellAmount,
		Taker:      cfg.Taker,
	}

	logger.Debug("quote request",
		zap.Uint64("chain_id", params.ChainID),
		zap.String("sell_token", params.SellToken),
		zap.String("buy_token", params.BuyToken),
		zap.Bool("firm", cfg.Firm),
	)

	if cfg.Firm {
		q, err := client.Quote(ctx, params)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), q)
	}
	p, err := client.Price(ctx, params)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), p)
}
