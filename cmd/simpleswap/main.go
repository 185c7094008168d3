package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/chain"
	"simpleSwap/internal/config"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "simpleswap",
		Short:        "SimpleSwap pool server, client and indexer",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newServeCmd(),
		newReservesCmd(),
		newSwapCmd(),
		newApproveCmd(),
		newBalanceCmd(),
		newQuoteCmd(),
		newIndexCmd(),
		newAggregateCmd(),
		newSimulateCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "JSON-RPC URL")
	fs.Uint64("chain-id", config.DefaultChainID, "chain id")
	fs.String("pool", config.DefaultPool, "pool contract address")
	fs.String("token", config.DefaultToken, "token contract address")
	fs.Uint64("gas-limit", config.DefaultGasLimit, "gas limit for pool transactions")
	fs.Duration("poll-interval", config.DefaultPollInterval, "receipt poll interval")
	fs.Int("max-retries", 5, "maximum retry attempts")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addKeyFlag(fs *pflag.FlagSet) {
	fs.String("private-key", "", "hex private key of the sending account (prefer SIMPLESWAP_PRIVATE_KEY)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func dialChain(ctx context.Context, c config.Chain, logger *zap.Logger) (*chain.Client, *big.Int, error) {
	if c.RPCURL == "" {
		return nil, nil, fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, c.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("get chain id: %w", err)
	}
	if c.ChainID != 0 && chainID.Uint64() != c.ChainID {
		logger.Warn("node chain id differs from configuration",
			zap.Uint64("configured", c.ChainID),
			zap.String("node", chainID.String()),
		)
	}
	return client, chainID, nil
}

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func newRPCAccessor(c config.Chain, chainID *big.Int, client *chain.Client, key *ecdsa.PrivateKey, logger *zap.Logger) (*accessor.RPC, error) {
	poolAddr, err := parseAddress("pool", c.Pool)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := parseAddress("token", c.Token)
	if err != nil {
		return nil, err
	}
	return accessor.NewRPC(accessor.RPCConfig{
		ChainID:      chainID,
		Pool:         poolAddr,
		Token:        tokenAddr,
		GasLimit:     c.GasLimit,
		PollInterval: c.PollInterval,
		MaxRetries:   c.MaxRetries,
		RetryDelay:   c.RetryBackoff,
	}, client, key, logger)
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
