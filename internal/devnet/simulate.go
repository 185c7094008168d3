package devnet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/ledger"
	"simpleSwap/internal/pool"
)

// SimConfig drives a random trading run against the local pool.
type SimConfig struct {
	Traders     int
	Swaps       int // per trader
	Funding     *uint256.Int
	Seed        int64
	SlippageBps uint16
	// TopUps funds each trader this many more times, one thousandth of
	// Funding each, from outside the sequencer while its swaps run.
	TopUps int
}

// SimResult summarises a run.
type SimResult struct {
	Confirmed int64         `json:"confirmed"`
	Failed    int64         `json:"failed"`
	StartK    string        `json:"start_k"`
	EndK      string        `json:"end_k"`
	Reserves  pool.Reserves `json:"-"`
}

// Simulate funds cfg.Traders accounts, approves the pool for each and has
// them swap in random directions concurrently. It fails if the pool's
// product shrank or its balances drifted from the reserves.
func (d *Devnet) Simulate(ctx context.Context, cfg SimConfig) (SimResult, error) {
	if cfg.Traders <= 0 || cfg.Swaps <= 0 {
		return SimResult{}, fmt.Errorf("traders and swaps must be positive")
	}
	if cfg.Funding == nil || cfg.Funding.IsZero() {
		return SimResult{}, fmt.Errorf("%w: funding is required", pool.ErrInvalidAmount)
	}
	if cfg.TopUps < 0 {
		return SimResult{}, fmt.Errorf("top-ups must not be negative")
	}
	topUp := new(uint256.Int).Div(cfg.Funding, uint256.NewInt(1000))
	if topUp.IsZero() {
		topUp.SetOne()
	}

	start := d.Pool.GetReserves().Product()
	var confirmed, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Traders; i++ {
		trader := common.BigToAddress(big.NewInt(int64(0x10000 + i)))
		if err := d.Fund(trader, cfg.Funding, cfg.Funding); err != nil {
			return SimResult{}, err
		}
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
		acc := accessor.NewLocal(d.Sequencer, trader)

		if cfg.TopUps > 0 {
			g.Go(func() error {
				for n := 0; n < cfg.TopUps; n++ {
					if err := ctx.Err(); err != nil {
						return err
					}
					if err := d.Fund(trader, topUp, topUp); err != nil {
						return fmt.Errorf("top up %s: %w", trader.Hex(), err)
					}
				}
				return nil
			})
		}

		g.Go(func() error {
			h, err := acc.SubmitApproval(ctx, d.Pool.Address(), new(uint256.Int).Set(ledger.MaxAllowance))
			if err != nil {
				return err
			}
			if _, err := h.Wait(ctx); err != nil {
				return fmt.Errorf("approve %s: %w", trader.Hex(), err)
			}

			for n := 0; n < cfg.Swaps; n++ {
				intent := d.randomIntent(rng, cfg)
				h, err := acc.SubmitSwap(ctx, intent)
				if err != nil {
					return err
				}
				_, err = h.Wait(ctx)
				switch {
				case err == nil:
					confirmed.Add(1)
				case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
					return err
				default:
					failed.Add(1)
					d.logger.Debug("simulated swap failed",
						zap.String("trader", trader.Hex()),
						zap.String("direction", intent.Direction.String()),
						zap.Error(err),
					)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SimResult{}, err
	}

	end := d.Pool.GetReserves()
	res := SimResult{
		Confirmed: confirmed.Load(),
		Failed:    failed.Load(),
		StartK:    start.Dec(),
		EndK:      end.Product().Dec(),
		Reserves:  end,
	}
	if end.Product().Lt(start) {
		return res, fmt.Errorf("pool product fell from %s to %s", res.StartK, res.EndK)
	}
	return res, d.CheckInvariants()
}

// randomIntent sells between 0.5% and 5% of the funding with a minimum
// output derived from the current quote.
func (d *Devnet) randomIntent(rng *rand.Rand, cfg SimConfig) accessor.Intent {
	dir := pool.NativeToToken
	if rng.Intn(2) == 1 {
		dir = pool.TokenToNative
	}
	permille := uint64(5 + rng.Intn(46))
	amount := new(uint256.Int).Div(new(uint256.Int).Mul(cfg.Funding, uint256.NewInt(permille)), uint256.NewInt(1000))
	if amount.IsZero() {
		amount.SetOne()
	}

	intent := accessor.Intent{Direction: dir, AmountIn: amount}
	if quoted, err := d.Pool.Quote(dir, amount); err == nil {
		intent.MinOut = pool.MinOut(quoted, cfg.SlippageBps)
	}
	return intent
}
