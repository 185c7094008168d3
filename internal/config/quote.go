package config

import (
	"time"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	ChainID    uint64
	SellToken  string
	BuyToken   string
	SellAmount string
	Taker      string
	Firm       bool
	ZeroX      ZeroX
	LogLevel   string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"zerox-base-url": "https://api.0x.org",
		"zerox-rate":     5.0,
		"zerox-burst":    5,
		"zerox-timeout":  10 * time.Second,
	})
	if err != nil {
		return QuoteConfig{}, err
	}
	return QuoteConfig{
		ChainID:    v.GetUint64("chain-id"),
		SellToken:  v.GetString("sell-token"),
		BuyToken:   v.GetString("buy-token"),
		SellAmount: v.GetString("sell-amount"),
		Taker:      v.GetString("taker"),
		Firm:       v.GetBool("firm"),
		ZeroX:      loadZeroX(v.GetString("zerox-base-url"), v.GetString("zerox-api-key"), v.GetFloat64("zerox-rate"), v.GetInt("zerox-burst"), v.GetDuration("zerox-timeout")),
		LogLevel:   v.GetString("log-level"),
	}, nil
}
