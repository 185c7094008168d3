package units

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 18, "1500000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{" 42 ", 0, "42"},
		{"0", 6, "0"},
		{"1.500", 2, "150"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in, tc.decimals)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.Dec(), tc.in)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("-1", 18)
	require.True(t, errors.Is(err, ErrNegative))

	_, err = Parse("0.0000000000000000001", 18)
	require.True(t, errors.Is(err, ErrTooPrecise))

	_, err = Parse("1e80", 0)
	require.True(t, errors.Is(err, ErrOutOfRange))

	_, err = Parse("abc", 18)
	require.Error(t, err)

	_, err = Parse("", 18)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "1.5", Format(uint256.NewInt(1_500_000_000_000_000_000), 18))
	require.Equal(t, "0.000001", Format(uint256.NewInt(1), 6))
	require.Equal(t, "42", Format(uint256.NewInt(42), 0))
	require.Equal(t, "0", Format(nil, 18))

	v, err := Parse("123.456", 18)
	require.NoError(t, err)
	require.Equal(t, "123.456", Format(v, 18))
}

func TestPrice(t *testing.T) {
	got, err := Price(big.NewInt(1100), big.NewInt(910), 0, 0, 6)
	require.NoError(t, err)
	require.Equal(t, "1.208791", got)

	_, err = Price(big.NewInt(1), big.NewInt(0), 18, 18, 6)
	require.True(t, errors.Is(err, ErrEmptyReserve))
}
