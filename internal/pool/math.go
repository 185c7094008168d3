package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"simpleSwap/internal/ledger"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
	// MaxFeeBps caps the swap fee at 10%.
	MaxFeeBps = 1_000
)

// GetAmountOut prices a swap against the given reserves:
//
//	out = floor(reserveOut * a / (reserveIn*10000 + a)), a = amountIn * (10000 - feeBps)
//
// With feeBps == 0 this reduces to floor(reserveOut*amountIn/(reserveIn+amountIn)).
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, feeBps uint16) (*uint256.Int, error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrInvalidAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrPoolDrained
	}
	if feeBps >= MaxFeeBps {
		return nil, ErrInvalidFee
	}

	withFee, err := ledger.MulChecked(amountIn, uint256.NewInt(uint64(BpsDenominator-feeBps)))
	if err != nil {
		return nil, overflow(err)
	}
	numerator, err := ledger.MulChecked(withFee, reserveOut)
	if err != nil {
		return nil, overflow(err)
	}
	scaledIn, err := ledger.MulChecked(reserveIn, uint256.NewInt(BpsDenominator))
	if err != nil {
		return nil, overflow(err)
	}
	denominator, err := ledger.AddChecked(scaledIn, withFee)
	if err != nil {
		return nil, overflow(err)
	}
	return new(uint256.Int).Div(numerator, denominator), nil
}

func overflow(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
}

// MinOut applies a slippage tolerance to a quoted amount, rounding down.
func MinOut(quoted *uint256.Int, slippageBps uint16) *uint256.Int {
	if slippageBps >= BpsDenominator {
		return new(uint256.Int)
	}
	keep := uint256.NewInt(uint64(BpsDenominator - slippageBps))
	out, err := ledger.MulChecked(quoted, keep)
	if err != nil {
		out = new(uint256.Int).Div(quoted, uint256.NewInt(BpsDenominator))
		return out.Mul(out, keep)
	}
	return out.Div(out, uint256.NewInt(BpsDenominator))
}
