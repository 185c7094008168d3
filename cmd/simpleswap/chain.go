package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/config"
	"simpleSwap/internal/dex"
	"simpleSwap/internal/ledger"
	"simpleSwap/internal/model"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/storage/postgres"
	"simpleSwap/internal/units"
)

const nativeDecimals = config.DefaultDecimals

func newReservesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserves",
		Short: "Read the pool reserves from the chain, or the last recorded snapshot",
		RunE:  runReserves,
	}
	addChainFlags(cmd.Flags())
	cmd.Flags().String("pg-dsn", "", "read the latest recorded snapshot from Postgres instead of the chain")
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Submit a swap against the pool",
		RunE:  runSwap,
	}
	addChainFlags(cmd.Flags())
	addKeyFlag(cmd.Flags())
	cmd.Flags().String("direction", "native_to_token", "native_to_token (buy) or token_to_native (sell)")
	cmd.Flags().String("amount", "", "amount to sell, in whole units")
	cmd.Flags().String("min-out", "", "minimum output in whole units; derived from slippage when empty")
	cmd.Flags().Uint16("slippage-bps", 50, "slippage tolerance used when min-out is empty")
	cmd.Flags().Uint("fee-bps", 0, "pool fee used to estimate the output")
	cmd.Flags().Bool("wait", true, "wait for the receipt")
	cmd.Flags().Duration("timeout", 2*time.Minute, "how long to wait for the receipt")
	return cmd
}

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a spender (the pool by default) for the token",
		RunE:  runApprove,
	}
	addChainFlags(cmd.Flags())
	addKeyFlag(cmd.Flags())
	cmd.Flags().String("spender", "", "spender address, defaults to the pool")
	cmd.Flags().String("amount", "max", "allowance in whole units, or max")
	cmd.Flags().Bool("wait", true, "wait for the receipt")
	cmd.Flags().Duration("timeout", 2*time.Minute, "how long to wait for the receipt")
	return cmd
}

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show native and token balances and the pool allowance of an account",
		RunE:  runBalance,
	}
	addChainFlags(cmd.Flags())
	addKeyFlag(cmd.Flags())
	cmd.Flags().String("account", "", "account to inspect, defaults to the private key's address")
	return cmd
}

type reservesOutput struct {
	Pool            string `json:"pool"`
	Token           string `json:"token,omitempty"`
	Symbol          string `json:"symbol,omitempty"`
	Native          string `json:"native"`
	TokenReserve    string `json:"token_reserve"`
	NativeFormatted string `json:"native_formatted,omitempty"`
	TokenFormatted  string `json:"token_formatted,omitempty"`
	Price           string `json:"price,omitempty"`
	Seq             uint64 `json:"seq,omitempty"`
	ObservedAt      string `json:"observed_at,omitempty"`
}

func runReserves(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolAddr, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}

	if dsn, _ := cmd.Flags().GetString("pg-dsn"); dsn != "" && cfg.RPCURL == "" {
		store, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		snap, ok, err := store.LatestReserves(ctx, cfg.ChainID, poolAddr.Hex())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no reserves recorded for pool %s", poolAddr.Hex())
		}
		return writeJSON(cmd.OutOrStdout(), reservesOutput{
			Pool:         snap.PoolAddress,
			Native:       snap.ReserveNative,
			TokenReserve: snap.ReserveToken,
			Seq:          snap.Seq,
			ObservedAt:   snap.ObservedAt.Format(time.RFC3339),
		})
	}

	client, _, err := dialChain(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	native, token, err := dex.FetchReserves(ctx, client, poolAddr, nil)
	if err != nil {
		return err
	}
	out := reservesOutput{Pool: poolAddr.Hex(), Native: native.String(), TokenReserve: token.String()}

	tokenAddr, err := dex.FetchPoolToken(ctx, client, poolAddr)
	if err != nil {
		logger.Warn("pool token lookup failed", zap.Error(err))
		if tokenAddr, err = parseAddress("token", cfg.Token); err != nil {
			return err
		}
	}
	out.Token = tokenAddr.Hex()

	meta, err := dex.FetchTokenMeta(ctx, client, tokenAddr, logger)
	if err != nil {
		logger.Warn("token metadata unavailable", zap.String("token", tokenAddr.Hex()), zap.Error(err))
		return writeJSON(cmd.OutOrStdout(), out)
	}
	out.Symbol = meta.Symbol
	out.NativeFormatted = units.FormatBig(native, nativeDecimals)
	out.TokenFormatted = units.FormatBig(token, meta.Decimals)
	if price, err := units.Price(native, token, nativeDecimals, meta.Decimals, 18); err == nil {
		out.Price = price
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func runSwap(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	rawDir, _ := flags.GetString("direction")
	dir, err := pool.ParseDirection(rawDir)
	if err != nil {
		return err
	}
	rawAmount, _ := flags.GetString("amount")
	if rawAmount == "" {
		return fmt.Errorf("amount is required")
	}
	rawFee, _ := flags.GetUint("fee-bps")
	feeBps, err := config.FeeBps(rawFee)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := loadKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	client, chainID, err := dialChain(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	acc, err := newRPCAccessor(cfg.Chain, chainID, client, key, logger)
	if err != nil {
		return err
	}
	defer acc.Close()

	tokenAddr, _ := parseAddress("token", cfg.Token)
	meta, err := dex.FetchTokenMeta(ctx, client, tokenAddr, logger)
	if err != nil {
		return fmt.Errorf("token metadata: %w", err)
	}
	inDec, outDec := uint8(nativeDecimals), meta.Decimals
	if dir == pool.TokenToNative {
		inDec, outDec = outDec, inDec
	}

	amountIn, err := units.Parse(rawAmount, inDec)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	var minOut *uint256.Int
	if rawMin, _ := flags.GetString("min-out"); rawMin != "" {
		if minOut, err = units.Parse(rawMin, outDec); err != nil {
			return fmt.Errorf("min-out: %w", err)
		}
	} else {
		r, err := acc.ReadReserves(ctx)
		if err != nil {
			return err
		}
		rIn, rOut := &r.Native, &r.Token
		if dir == pool.TokenToNative {
			rIn, rOut = &r.Token, &r.Native
		}
		quoted, err := pool.GetAmountOut(amountIn, rIn, rOut, feeBps)
		if err != nil {
			return err
		}
		slippage, _ := flags.GetUint16("slippage-bps")
		minOut = pool.MinOut(quoted, slippage)
		logger.Info("estimated output",
			zap.String("quoted", units.Format(quoted, outDec)),
			zap.String("min_out", units.Format(minOut, outDec)),
		)
	}

	if dir == pool.TokenToNative {
		poolAddr, _ := parseAddress("pool", cfg.Pool)
		allowance, err := dex.FetchAllowance(ctx, client, tokenAddr, acc.From(), poolAddr)
		if err != nil {
			return err
		}
		if allowance.Cmp(amountIn.ToBig()) < 0 {
			return fmt.Errorf("allowance %s %s is below the amount; run approve first",
				units.FormatBig(allowance, meta.Decimals), meta.Symbol)
		}
	}

	h, err := acc.SubmitSwap(ctx, accessor.Intent{Direction: dir, AmountIn: amountIn, MinOut: minOut})
	if err != nil {
		return err
	}
	logger.Info("swap submitted",
		zap.String("tx_hash", h.Hash().Hex()),
		zap.String("direction", dir.String()),
		zap.String("amount_in", amountIn.Dec()),
	)
	return finish(ctx, cmd, h)
}

func runApprove(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := loadKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	client, chainID, err := dialChain(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	acc, err := newRPCAccessor(cfg.Chain, chainID, client, key, logger)
	if err != nil {
		return err
	}
	defer acc.Close()

	spender, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}
	if raw, _ := cmd.Flags().GetString("spender"); raw != "" {
		if spender, err = parseAddress("spender", raw); err != nil {
			return err
		}
	}

	rawAmount, _ := cmd.Flags().GetString("amount")
	amount := new(uint256.Int).Set(ledger.MaxAllowance)
	if !strings.EqualFold(rawAmount, "max") {
		tokenAddr, _ := parseAddress("token", cfg.Token)
		meta, err := dex.FetchTokenMeta(ctx, client, tokenAddr, logger)
		if err != nil {
			return fmt.Errorf("token metadata: %w", err)
		}
		if amount, err = units.Parse(rawAmount, meta.Decimals); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
	}

	h, err := acc.SubmitApproval(ctx, spender, amount)
	if err != nil {
		return err
	}
	logger.Info("approval submitted", zap.String("tx_hash", h.Hash().Hex()), zap.String("spender", spender.Hex()))
	return finish(ctx, cmd, h)
}

type balanceOutput struct {
	Account       string `json:"account"`
	Native        string `json:"native"`
	Token         string `json:"token"`
	Symbol        string `json:"symbol"`
	PoolAllowance string `json:"pool_allowance"`
}

func runBalance(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var account common.Address
	if raw, _ := cmd.Flags().GetString("account"); raw != "" {
		if account, err = parseAddress("account", raw); err != nil {
			return err
		}
	} else {
		key, err := loadKey(cfg.PrivateKey)
		if err != nil {
			return fmt.Errorf("account or private key is required: %w", err)
		}
		account = crypto.PubkeyToAddress(key.PublicKey)
	}

	client, _, err := dialChain(ctx, cfg.Chain, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	tokenAddr, err := parseAddress("token", cfg.Token)
	if err != nil {
		return err
	}
	poolAddr, err := parseAddress("pool", cfg.Pool)
	if err != nil {
		return err
	}
	meta, err := dex.FetchTokenMeta(ctx, client, tokenAddr, logger)
	if err != nil {
		return fmt.Errorf("token metadata: %w", err)
	}
	native, err := client.BalanceAt(ctx, account)
	if err != nil {
		return err
	}
	token, err := dex.FetchBalance(ctx, client, tokenAddr, account)
	if err != nil {
		return err
	}
	allowance, err := dex.FetchAllowance(ctx, client, tokenAddr, account, poolAddr)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), balanceOutput{
		Account:       account.Hex(),
		Native:        units.FormatBig(native, nativeDecimals),
		Token:         units.FormatBig(token, meta.Decimals),
		Symbol:        meta.Symbol,
		PoolAllowance: units.FormatBig(allowance, meta.Decimals),
	})
}

// finish prints the hash, or the receipt when --wait is set.
func finish(ctx context.Context, cmd *cobra.Command, h *pending.Handle) error {
	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		return writeJSON(cmd.OutOrStdout(), model.Receipt{TxHash: h.Hash().Hex(), Status: model.TxPending})
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := h.Wait(ctx)
	if receipt != nil {
		if werr := writeJSON(cmd.OutOrStdout(), receipt); werr != nil {
			return werr
		}
	}
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
