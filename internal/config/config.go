// Package config loads command settings from flags, SIMPLESWAP_* env vars
// and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "SIMPLESWAP"

// Deployment defaults (Monad testnet).
const (
	DefaultChainID      = 10143
	DefaultPool         = "0xDf4682D006a1AeBC154afDE8dD13C912b09Fe9CB"
	DefaultToken        = "0xe4A4d64C4A5cbf6fbFfC0658C1e2a0b64e4fa17c"
	DefaultGasLimit     = 250_000
	DefaultPollInterval = 2 * time.Second
	DefaultQuoteTTL     = 30 * time.Second
	DefaultDecimals     = 18
)

// Chain holds settings shared by every command that talks to a node.
type Chain struct {
	RPCURL       string
	ChainID      uint64
	Pool         string
	Token        string
	GasLimit     uint64
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	PrivateKey   string
}

// Config is the result of the chain commands (reserves, swap, approve).
type Config struct {
	Chain
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Chain:    loadChain(v),
		LogLevel: v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(DefaultChainID))
	v.SetDefault("pool", DefaultPool)
	v.SetDefault("token", DefaultToken)
	v.SetDefault("gas-limit", uint64(DefaultGasLimit))
	v.SetDefault("poll-interval", DefaultPollInterval)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadChain(v *viper.Viper) Chain {
	return Chain{
		RPCURL:       v.GetString("rpc"),
		ChainID:      v.GetUint64("chain-id"),
		Pool:         v.GetString("pool"),
		Token:        v.GetString("token"),
		GasLimit:     v.GetUint64("gas-limit"),
		PollInterval: v.GetDuration("poll-interval"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		PrivateKey:   strings.TrimPrefix(strings.TrimSpace(v.GetString("private-key")), "0x"),
	}
}

// FeeBps validates a configured fee.
func FeeBps(v uint) (uint16, error) {
	if v >= 1000 {
		return 0, fmt.Errorf("fee-bps must be below 1000, got %d", v)
	}
	return uint16(v), nil
}
