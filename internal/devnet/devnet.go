// Package devnet assembles an in-process deployment: ledgers, a funded pool
// and the sequencer that drives it.
package devnet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpleSwap/internal/ledger"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/sequencer"
)

// DefaultProvider funds the initial reserves.
var DefaultProvider = common.HexToAddress("0x000000000000000000000000000000000000a11c")

// Config describes a local deployment.
type Config struct {
	Pool       common.Address
	Token      ledger.TokenInfo
	FeeBps     uint16
	InitNative *uint256.Int
	InitToken  *uint256.Int
	Provider   common.Address
	Sequencer  sequencer.Config
}

// Devnet is a running local deployment.
type Devnet struct {
	Native    *ledger.Native
	Token     *ledger.Token
	Pool      *pool.Pool
	Sequencer *sequencer.Sequencer
	logger    *zap.Logger
}

// New funds the provider, deploys the pool and builds the sequencer. Call
// Start before submitting.
func New(cfg Config, logger *zap.Logger, opts ...pool.Option) (*Devnet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == (common.Address{}) {
		cfg.Provider = DefaultProvider
	}
	if cfg.InitNative == nil || cfg.InitToken == nil {
		return nil, fmt.Errorf("%w: initial liquidity is required", pool.ErrInvalidAmount)
	}

	native := ledger.NewNative()
	token := ledger.NewToken(cfg.Token)
	if err := native.Credit(cfg.Provider, cfg.InitNative); err != nil {
		return nil, fmt.Errorf("fund provider: %w", err)
	}
	if err := token.Mint(cfg.Provider, cfg.InitToken); err != nil {
		return nil, fmt.Errorf("mint provider: %w", err)
	}
	if _, err := token.Approve(nil, cfg.Provider, cfg.Pool, cfg.InitToken); err != nil {
		return nil, fmt.Errorf("approve pool: %w", err)
	}

	opts = append([]pool.Option{pool.WithLogger(logger)}, opts...)
	p, err := pool.Deploy(pool.Config{Address: cfg.Pool, FeeBps: cfg.FeeBps}, native, token, cfg.Provider, cfg.InitNative, cfg.InitToken, opts...)
	if err != nil {
		return nil, err
	}

	seqCfg := cfg.Sequencer
	if seqCfg.MaxBlockTxs == 0 && seqCfg.ChainID == 0 {
		seqCfg = sequencer.DefaultConfig()
	}
	d := &Devnet{
		Native:    native,
		Token:     token,
		Pool:      p,
		Sequencer: sequencer.New(seqCfg, p, logger),
		logger:    logger,
	}
	logger.Info("local pool deployed",
		zap.String("pool", cfg.Pool.Hex()),
		zap.String("token", cfg.Token.Symbol),
		zap.Uint16("fee_bps", cfg.FeeBps),
		zap.String("reserve_native", cfg.InitNative.Dec()),
		zap.String("reserve_token", cfg.InitToken.Dec()),
	)
	return d, nil
}

// Start begins block production.
func (d *Devnet) Start(ctx context.Context) { d.Sequencer.Start(ctx) }

// Stop halts block production.
func (d *Devnet) Stop() { d.Sequencer.Stop() }

// Fund credits addr with native and token balances. Either amount may be nil.
func (d *Devnet) Fund(addr common.Address, native, token *uint256.Int) error {
	if native != nil && !native.IsZero() {
		if err := d.Native.Credit(addr, native); err != nil {
			return fmt.Errorf("credit native: %w", err)
		}
	}
	if token != nil && !token.IsZero() {
		if err := d.Token.Mint(addr, token); err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
	}
	d.logger.Debug("account funded", zap.String("account", addr.Hex()))
	return nil
}

// CheckInvariants verifies that the pool's ledger balances match its
// reserves and that no balance was created or lost outside minting and
// crediting.
func (d *Devnet) CheckInvariants() error {
	r := d.Pool.GetReserves()
	addr := d.Pool.Address()
	if got := d.Native.BalanceOf(addr); !got.Eq(&r.Native) {
		return fmt.Errorf("native balance %s != reserve %s", got.Dec(), r.Native.Dec())
	}
	if got := d.Token.BalanceOf(addr); !got.Eq(&r.Token) {
		return fmt.Errorf("token balance %s != reserve %s", got.Dec(), r.Token.Dec())
	}
	if sum, supply := d.Token.SumBalances(), d.Token.TotalSupply(); !sum.Eq(supply) {
		return fmt.Errorf("token balances sum to %s, supply is %s", sum.Dec(), supply.Dec())
	}
	if sum, issued := d.Native.SumBalances(), d.Native.Issued(); !sum.Eq(issued) {
		return fmt.Errorf("native balances sum to %s, issued %s", sum.Dec(), issued.Dec())
	}
	return nil
}
