package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"simpleSwap/internal/dex"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/units"
)

const pricePlaces = 18

// ReserveReader reads current pool reserves. Every accessor satisfies it.
type ReserveReader interface {
	ReadReserves(ctx context.Context) (pool.Reserves, error)
}

// PoolQuoterConfig describes the pool being quoted.
type PoolQuoterConfig struct {
	ChainID        uint64
	Pool           common.Address
	Token          common.Address
	FeeBps         uint16
	GasLimit       uint64
	TTL            time.Duration
	NativeDecimals uint8
	TokenDecimals  uint8
}

// PoolQuoter prices swaps against the pool and builds calldata for them.
type PoolQuoter struct {
	cfg    PoolQuoterConfig
	reader ReserveReader
	now    func() time.Time
}

func NewPoolQuoter(cfg PoolQuoterConfig, reader ReserveReader) *PoolQuoter {
	return &PoolQuoter{cfg: cfg, reader: reader, now: time.Now}
}

// Price returns an indicative price from the current reserves.
func (q *PoolQuoter) Price(ctx context.Context, p Params) (*Price, error) {
	price, _, _, err := q.price(ctx, p)
	return price, err
}

// Quote returns a firm quote with calldata targeting the pool. The minimum
// output honours p.SlippageBps and the quote expires after the TTL.
func (q *PoolQuoter) Quote(ctx context.Context, p Params) (*Quote, error) {
	if p.Taker == "" {
		return nil, ErrTakerRequired
	}
	if !common.IsHexAddress(p.Taker) {
		return nil, fmt.Errorf("invalid taker address: %s", p.Taker)
	}
	price, dir, amountIn, err := q.price(ctx, p)
	if err != nil {
		return nil, err
	}
	out, err := uint256.FromDecimal(price.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("buy amount: %w", err)
	}
	minOut := pool.MinOut(out, p.SlippageBps)
	price.MinBuyAmount = minOut.Dec()

	var (
		data  []byte
		value = new(big.Int)
	)
	switch dir {
	case pool.NativeToToken:
		data, err = dex.PackSwapETHForGMON(minOut.ToBig())
		value = amountIn.ToBig()
	case pool.TokenToNative:
		data, err = dex.PackSwapGMONForETH(amountIn.ToBig(), minOut.ToBig())
	}
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		Price: *price,
		To:    q.cfg.Pool.Hex(),
		Data:  hexutil.Encode(data),
		Value: value.String(),
	}
	if q.cfg.TTL > 0 {
		quote.ExpiresAt = q.now().Add(q.cfg.TTL).UTC()
	}
	return quote, nil
}

func (q *PoolQuoter) price(ctx context.Context, p Params) (*Price, pool.Direction, *uint256.Int, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, nil, err
	}
	if p.ChainID != q.cfg.ChainID {
		return nil, 0, nil, fmt.Errorf("%w: chain %d", ErrUnsupportedPair, p.ChainID)
	}
	dir, err := q.direction(p.SellToken, p.BuyToken)
	if err != nil {
		return nil, 0, nil, err
	}
	amountIn, err := uint256.FromDecimal(strings.TrimSpace(p.SellAmount))
	if err != nil || amountIn.IsZero() {
		return nil, 0, nil, fmt.Errorf("%w: sellAmount %q", pool.ErrInvalidAmount, p.SellAmount)
	}

	r, err := q.reader.ReadReserves(ctx)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("read reserves: %w", err)
	}
	inDec, outDec := q.cfg.NativeDecimals, q.cfg.TokenDecimals
	if dir == pool.TokenToNative {
		inDec, outDec = outDec, inDec
	}
	out, err := pool.QuoteReserves(r, dir, amountIn, q.cfg.FeeBps)
	if err != nil {
		return nil, 0, nil, err
	}

	rate, err := units.Ratio(out.ToBig(), amountIn.ToBig(), outDec, inDec, pricePlaces)
	if err != nil {
		return nil, 0, nil, err
	}
	price := &Price{
		Price:            rate,
		BuyAmount:        out.Dec(),
		SellAmount:       amountIn.Dec(),
		BuyTokenAddress:  p.BuyToken,
		SellTokenAddress: p.SellToken,
		Sources:          []Source{{Name: "SimpleSwapPool", Proportion: "1"}},
	}
	if q.cfg.GasLimit > 0 {
		price.EstimatedGas = json.Number(strconv.FormatUint(q.cfg.GasLimit, 10))
	}
	if dir == pool.TokenToNative {
		price.AllowanceTarget = q.cfg.Pool.Hex()
		price.Issues = &Issues{Allowance: &AllowanceIssue{Spender: q.cfg.Pool.Hex()}}
	}
	return price, dir, amountIn, nil
}

func (q *PoolQuoter) direction(sell, buy string) (pool.Direction, error) {
	isToken := func(s string) bool {
		return common.IsHexAddress(s) && common.HexToAddress(s) == q.cfg.Token
	}
	switch {
	case isNative(sell) && isToken(buy):
		return pool.NativeToToken, nil
	case isToken(sell) && isNative(buy):
		return pool.TokenToNative, nil
	default:
		return 0, fmt.Errorf("%w: %s -> %s", ErrUnsupportedPair, sell, buy)
	}
}
