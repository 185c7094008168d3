// Package units converts between human decimal amounts and base units.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrNegative     = errors.New("amount must not be negative")
	ErrTooPrecise   = errors.New("amount has more fractional digits than the token supports")
	ErrOutOfRange   = errors.New("amount does not fit in 256 bits")
	ErrEmptyReserve = errors.New("reserve is zero")
)

// Parse converts a decimal string such as "1.5" into base units.
func Parse(amount string, decimals uint8) (*uint256.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, ErrNegative
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrOutOfRange
	}
	return v, nil
}

// Format renders base units as a decimal string without trailing zeros.
func Format(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return FormatBig(v.ToBig(), decimals)
}

// FormatBig is Format for *big.Int values.
func FormatBig(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// Price returns the native price of one whole token implied by the
// reserves, rounded to places fractional digits.
func Price(reserveNative, reserveToken *big.Int, nativeDecimals, tokenDecimals uint8, places int32) (string, error) {
	return Ratio(reserveNative, reserveToken, nativeDecimals, tokenDecimals, places)
}

// Ratio returns num/den after scaling each by its decimals.
func Ratio(num, den *big.Int, numDecimals, denDecimals uint8, places int32) (string, error) {
	if den == nil || den.Sign() == 0 {
		return "", ErrEmptyReserve
	}
	if num == nil {
		num = new(big.Int)
	}
	n := decimal.NewFromBigInt(num, -int32(numDecimals))
	d := decimal.NewFromBigInt(den, -int32(denDecimals))
	return n.DivRound(d, places).String(), nil
}
