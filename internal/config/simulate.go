package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the local load simulation.
type SimulateConfig struct {
	Traders    int
	Swaps      int
	FeeBps     uint16
	InitNative string
	InitToken  string
	Funding    string
	TopUps     int
	BlockTime  time.Duration
	Seed       int64
	Out        string
	LogLevel   string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"traders":     8,
		"swaps":       50,
		"init-native": "1000000",
		"init-token":  "1000000",
		"funding":     "100000",
		"top-ups":     0,
		"block-time":  10 * time.Millisecond,
		"seed":        int64(1),
	})
	if err != nil {
		return SimulateConfig{}, err
	}
	fee, err := FeeBps(v.GetUint("fee-bps"))
	if err != nil {
		return SimulateConfig{}, err
	}
	cfg := SimulateConfig{
		Traders:    v.GetInt("traders"),
		Swaps:      v.GetInt("swaps"),
		FeeBps:     fee,
		InitNative: v.GetString("init-native"),
		InitToken:  v.GetString("init-token"),
		Funding:    v.GetString("funding"),
		TopUps:     v.GetInt("top-ups"),
		BlockTime:  v.GetDuration("block-time"),
		Seed:       v.GetInt64("seed"),
		Out:        v.GetString("out"),
		LogLevel:   v.GetString("log-level"),
	}
	if cfg.Traders <= 0 || cfg.Swaps <= 0 {
		return SimulateConfig{}, fmt.Errorf("traders and swaps must be positive")
	}
	if cfg.TopUps < 0 {
		return SimulateConfig{}, fmt.Errorf("top-ups must not be negative")
	}
	return cfg, nil
}
