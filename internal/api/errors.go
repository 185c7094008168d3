package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"simpleSwap/internal/pool"
	"simpleSwap/internal/quote"
	"simpleSwap/internal/sequencer"
	"simpleSwap/internal/units"
)

var (
	ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	ErrInvalidBody            = fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	ErrAmountRequired         = fiber.NewError(fiber.StatusBadRequest, "amount is required")
	ErrTxNotFound             = fiber.NewError(fiber.StatusNotFound, "transaction not found")
	ErrQuotesDisabled         = fiber.NewError(fiber.StatusServiceUnavailable, "quotes are not configured")
	ErrInternal               = fiber.NewError(fiber.StatusInternalServerError, "internal error")
)

// ErrUnknownTrader is returned when the backend cannot sign for a trader.
var ErrUnknownTrader = errors.New("backend cannot act for this trader")

// ErrNonceUnsupported is returned when a backend assigns nonces itself.
var ErrNonceUnsupported = errors.New("explicit nonces are not supported by this backend")

func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

func NewInvalidAmount(field string, err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+": "+err.Error())
}

// statusFor maps domain errors to HTTP errors.
func statusFor(err error) *fiber.Error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	var apiErr *quote.APIError
	if errors.As(err, &apiErr) {
		return fiber.NewError(apiErr.Status, "0x API Error: "+apiErr.Message)
	}

	switch {
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, units.ErrNegative),
		errors.Is(err, units.ErrTooPrecise),
		errors.Is(err, units.ErrOutOfRange),
		errors.Is(err, quote.ErrMissingParams),
		errors.Is(err, quote.ErrTakerRequired),
		errors.Is(err, quote.ErrUnsupportedPair),
		errors.Is(err, ErrNonceUnsupported),
		errors.Is(err, sequencer.ErrUnknownKind):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownTrader):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, sequencer.ErrNonceTooLow):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, pool.ErrInsufficientOutput),
		errors.Is(err, pool.ErrPoolDrained),
		errors.Is(err, units.ErrEmptyReserve):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, sequencer.ErrStopped):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return nil
	}
}

type errorBody struct {
	Error string `json:"error"`
}
