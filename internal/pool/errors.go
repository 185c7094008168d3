package pool

import (
	"errors"

	"simpleSwap/internal/ledger"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientOutput = errors.New("insufficient output amount")
	ErrPoolDrained        = errors.New("swap would drain pool reserve")
	ErrInvalidFee         = errors.New("fee must be below 1000 bps")

	// Ledger failures surface unchanged so callers can match either package.
	ErrInsufficientAllowance = ledger.ErrInsufficientAllowance
	ErrInsufficientBalance   = ledger.ErrInsufficientBalance
)
