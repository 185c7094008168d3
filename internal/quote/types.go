// Package quote fetches swap prices and firm quotes, either from the 0x
// swap API or from the pool itself.
package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingParams   = errors.New("chainId, buyToken, sellToken and sellAmount are required")
	ErrTakerRequired   = errors.New("taker is required for quotes")
	ErrUnsupportedPair = errors.New("token pair is not served by this pool")
	ErrExpired         = errors.New("quote expired")
)

// NativeToken is the placeholder address aggregators use for the native asset.
const NativeToken = "0xEeeeeEeeeEeEeEeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// Params selects what to price.
type Params struct {
	ChainID     uint64 `query:"chainId"`
	BuyToken    string `query:"buyToken"`
	SellToken   string `query:"sellToken"`
	SellAmount  string `query:"sellAmount"`
	Taker       string `query:"taker"`
	SlippageBps uint16 `query:"slippageBps"`
}

// Validate checks the fields every request needs.
func (p Params) Validate() error {
	if p.ChainID == 0 || p.BuyToken == "" || p.SellToken == "" || p.SellAmount == "" {
		return ErrMissingParams
	}
	return nil
}

type Source struct {
	Name       string `json:"name"`
	Proportion string `json:"proportion"`
}

type AllowanceIssue struct {
	Spender string `json:"spender"`
}

type Issues struct {
	Allowance *AllowanceIssue `json:"allowance,omitempty"`
}

// Price is an indicative price.
type Price struct {
	Price            string      `json:"price"`
	EstimatedGas     json.Number `json:"estimatedGas,omitempty"`
	BuyAmount        string      `json:"buyAmount"`
	SellAmount       string      `json:"sellAmount"`
	BuyTokenAddress  string      `json:"buyTokenAddress"`
	SellTokenAddress string      `json:"sellTokenAddress"`
	AllowanceTarget  string      `json:"allowanceTarget,omitempty"`
	MinBuyAmount     string      `json:"minBuyAmount,omitempty"`
	Issues           *Issues     `json:"issues,omitempty"`
	Sources          []Source    `json:"sources,omitempty"`
}

// Quote is a firm, executable quote.
type Quote struct {
	Price
	To                 string    `json:"to"`
	Data               string    `json:"data"`
	Value              string    `json:"value"`
	GasPrice           string    `json:"gasPrice,omitempty"`
	ProtocolFee        string    `json:"protocolFee,omitempty"`
	MinimumProtocolFee string    `json:"minimumProtocolFee,omitempty"`
	ExpiresAt          time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the quote is past its deadline. Quotes without a
// deadline never expire.
func (q *Quote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && !now.Before(q.ExpiresAt)
}

// APIError is a non-2xx answer from the aggregator.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("0x api error (%d): %s", e.Status, e.Message)
}

func isNative(token string) bool {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case strings.ToLower(NativeToken), "eth", "mon", "native":
		return true
	}
	return false
}
