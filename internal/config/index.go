package config

import (
	"time"

	"github.com/spf13/pflag"
)

// IndexConfig holds configuration for the swap log indexer.
type IndexConfig struct {
	Chain
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	Errors            string
	PGDSN             string
	Checkpoint        string
	CheckpointEnabled bool
	WithReserves      bool
	LogLevel          string
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"out":                "./data/swaps.jsonl",
		"errors":             "./data/decode_errors.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return IndexConfig{}, err
	}

	return IndexConfig{
		Chain:             loadChain(v),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		PGDSN:             v.GetString("pg-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		WithReserves:      v.GetBool("with-reserves"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
