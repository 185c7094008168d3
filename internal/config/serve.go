package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	ModeLocal = "local"
	ModeRPC   = "rpc"
)

// ZeroX configures the swap aggregator client.
type ZeroX struct {
	BaseURL   string
	APIKey    string
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

// ServeConfig holds configuration for the HTTP server.
type ServeConfig struct {
	Chain
	Mode           string
	Listen         string
	FeeBps         uint16
	InitNative     string
	InitToken      string
	BlockTime      time.Duration
	QuoteTTL       time.Duration
	CacheTTL       time.Duration
	Out            string
	PGDSN          string
	NativeDecimals uint8
	TokenDecimals  uint8
	ZeroX          ZeroX
	LogLevel       string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"mode":            ModeLocal,
		"listen":          ":8080",
		"init-native":     "1000",
		"init-token":      "1000",
		"block-time":      100 * time.Millisecond,
		"quote-ttl":       DefaultQuoteTTL,
		"cache-ttl":       time.Second,
		"native-decimals": DefaultDecimals,
		"token-decimals":  DefaultDecimals,
		"zerox-base-url":  "https://api.0x.org",
		"zerox-rate":      5.0,
		"zerox-burst":     5,
		"zerox-timeout":   10 * time.Second,
	})
	if err != nil {
		return ServeConfig{}, err
	}
	fee, err := FeeBps(v.GetUint("fee-bps"))
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Chain:          loadChain(v),
		Mode:           v.GetString("mode"),
		Listen:         v.GetString("listen"),
		FeeBps:         fee,
		InitNative:     v.GetString("init-native"),
		InitToken:      v.GetString("init-token"),
		BlockTime:      v.GetDuration("block-time"),
		QuoteTTL:       v.GetDuration("quote-ttl"),
		CacheTTL:       v.GetDuration("cache-ttl"),
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		NativeDecimals: uint8(v.GetUint("native-decimals")),
		TokenDecimals:  uint8(v.GetUint("token-decimals")),
		ZeroX:          loadZeroX(v.GetString("zerox-base-url"), v.GetString("zerox-api-key"), v.GetFloat64("zerox-rate"), v.GetInt("zerox-burst"), v.GetDuration("zerox-timeout")),
		LogLevel:       v.GetString("log-level"),
	}
	if cfg.Mode != ModeLocal && cfg.Mode != ModeRPC {
		return ServeConfig{}, fmt.Errorf("mode must be %q or %q, got %q", ModeLocal, ModeRPC, cfg.Mode)
	}
	return cfg, nil
}

func loadZeroX(baseURL, apiKey string, rate float64, burst int, timeout time.Duration) ZeroX {
	return ZeroX{BaseURL: baseURL, APIKey: apiKey, RateLimit: rate, Burst: burst, Timeout: timeout}
}
