package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Input          string
	Out            string
	Window         string
	PGDSN          string
	BatchSize      int
	StateFile      string
	RecomputeFrom  string
	FeeBps         uint16
	NativeDecimals uint8
	TokenDecimals  uint8
	LogLevel       string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":      1000,
		"window":          "5m",
		"out":             "./data/window_metrics.jsonl",
		"native-decimals": DefaultDecimals,
		"token-decimals":  DefaultDecimals,
	})
	if err != nil {
		return AggregateConfig{}, err
	}
	fee, err := FeeBps(v.GetUint("fee-bps"))
	if err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		Input:          v.GetString("in"),
		Out:            v.GetString("out"),
		Window:         v.GetString("window"),
		PGDSN:          v.GetString("pg-dsn"),
		BatchSize:      v.GetInt("batch-size"),
		StateFile:      v.GetString("state-file"),
		RecomputeFrom:  v.GetString("recompute-from"),
		FeeBps:         fee,
		NativeDecimals: uint8(v.GetUint("native-decimals")),
		TokenDecimals:  uint8(v.GetUint("token-decimals")),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

// WindowSeconds parses the window duration into whole seconds.
func (c AggregateConfig) WindowSeconds() (uint64, error) {
	d, err := time.ParseDuration(c.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return uint64(d / time.Second), nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
