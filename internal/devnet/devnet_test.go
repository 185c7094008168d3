package devnet

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/ledger"
	"simpleSwap/internal/pool"
)

func TestDevnetSwapKeepsInvariants(t *testing.T) {
	poolAddr := common.HexToAddress("0xDf4682D006a1AeBC154afDE8dD13C912b09Fe9CB")
	d, err := New(Config{
		Pool:       poolAddr,
		Token:      ledger.TokenInfo{Symbol: "GMON", Decimals: 18},
		InitNative: uint256.NewInt(1000),
		InitToken:  uint256.NewInt(1000),
	}, nil)
	require.NoError(t, err)
	d.Start(context.Background())
	defer d.Stop()

	trader := common.HexToAddress("0x000000000000000000000000000000000000beef")
	require.NoError(t, d.Fund(trader, uint256.NewInt(500), nil))

	h, err := accessor.NewLocal(d.Sequencer, trader).SubmitSwap(context.Background(), accessor.Intent{
		Direction: pool.NativeToToken,
		AmountIn:  uint256.NewInt(100),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipt, err := h.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "90", receipt.AmountOut)

	require.NoError(t, d.CheckInvariants())
	require.Equal(t, uint64(400), d.Native.BalanceOf(trader).Uint64())
	require.Equal(t, uint64(90), d.Token.BalanceOf(trader).Uint64())
}

func TestDevnetRequiresLiquidity(t *testing.T) {
	_, err := New(Config{Pool: common.Address{1}}, nil)
	require.ErrorIs(t, err, pool.ErrInvalidAmount)
}

func TestSimulateKeepsProduct(t *testing.T) {
	d, err := New(Config{
		Pool:       common.HexToAddress("0xDf4682D006a1AeBC154afDE8dD13C912b09Fe9CB"),
		Token:      ledger.TokenInfo{Symbol: "GMON", Decimals: 18},
		FeeBps:     30,
		InitNative: uint256.NewInt(10_000_000),
		InitToken:  uint256.NewInt(10_000_000),
	}, nil)
	require.NoError(t, err)
	d.Start(context.Background())
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := d.Simulate(ctx, SimConfig{
		Traders:     4,
		Swaps:       25,
		Funding:     uint256.NewInt(100_000),
		Seed:        7,
		SlippageBps: 100,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), res.Confirmed+res.Failed)
	require.Positive(t, res.Confirmed)
	require.Equal(t, uint64(res.Confirmed), res.Reserves.Seq)
}

func TestSimulateWithTopUpsKeepsSupply(t *testing.T) {
	d, err := New(Config{
		Pool:       common.HexToAddress("0xDf4682D006a1AeBC154afDE8dD13C912b09Fe9CB"),
		Token:      ledger.TokenInfo{Symbol: "GMON", Decimals: 18},
		InitNative: uint256.NewInt(10_000_000),
		InitToken:  uint256.NewInt(10_000_000),
	}, nil)
	require.NoError(t, err)
	d.Start(context.Background())
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	// Zero slippage with several traders makes many swaps revert while the
	// top-ups land on the same accounts.
	res, err := d.Simulate(ctx, SimConfig{
		Traders: 4,
		Swaps:   40,
		Funding: uint256.NewInt(100_000),
		Seed:    11,
		TopUps:  500,
	})
	require.NoError(t, err)
	require.Equal(t, int64(160), res.Confirmed+res.Failed)

	// 4 traders, 100_000 funding plus 500 top-ups of 100 each.
	wantToken := uint64(10_000_000 + 4*(100_000+500*100))
	require.Equal(t, wantToken, d.Token.TotalSupply().Uint64())
	require.Equal(t, wantToken, d.Token.SumBalances().Uint64())
	require.Equal(t, wantToken, d.Native.SumBalances().Uint64())
	require.NoError(t, d.CheckInvariants())
}

func TestSimulateValidatesConfig(t *testing.T) {
	d, err := New(Config{
		Pool:       common.Address{1},
		InitNative: uint256.NewInt(1000),
		InitToken:  uint256.NewInt(1000),
	}, nil)
	require.NoError(t, err)
	_, err = d.Simulate(context.Background(), SimConfig{Traders: 1, Swaps: 1})
	require.ErrorIs(t, err, pool.ErrInvalidAmount)
}
