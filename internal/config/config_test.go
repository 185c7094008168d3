package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != DefaultChainID || cfg.Pool != DefaultPool || cfg.Token != DefaultToken {
		t.Fatalf("chain defaults = %+v", cfg.Chain)
	}
	if cfg.GasLimit != DefaultGasLimit || cfg.PollInterval != DefaultPollInterval {
		t.Fatalf("tx defaults = %+v", cfg.Chain)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %s", cfg.LogLevel)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("SIMPLESWAP_RPC", "http://env:8545")
	t.Setenv("SIMPLESWAP_GAS_LIMIT", "300000")
	t.Setenv("SIMPLESWAP_PRIVATE_KEY", "0xabc")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("chain-id", 0, "")
	if err := flags.Parse([]string{"--chain-id", "1"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://env:8545" {
		t.Fatalf("rpc = %s", cfg.RPCURL)
	}
	if cfg.ChainID != 1 || cfg.GasLimit != 300000 {
		t.Fatalf("chain = %+v", cfg.Chain)
	}
	if cfg.PrivateKey != "abc" {
		t.Fatalf("private key prefix not stripped: %q", cfg.PrivateKey)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "simpleswap.yaml")
	content := "fee-bps: 30\nwindow: 1h\nin: swaps.jsonl\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadAggregate(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FeeBps != 30 || cfg.Input != "swaps.jsonl" || cfg.NativeDecimals != DefaultDecimals {
		t.Fatalf("aggregate config = %+v", cfg)
	}
	secs, err := cfg.WindowSeconds()
	if err != nil || secs != 3600 {
		t.Fatalf("window = %d %v", secs, err)
	}
}

func TestLoadServeRejectsBadFeeAndMode(t *testing.T) {
	t.Setenv("SIMPLESWAP_FEE_BPS", "1000")
	if _, err := LoadServe("", nil); err == nil {
		t.Fatalf("expected fee error")
	}

	t.Setenv("SIMPLESWAP_FEE_BPS", "0")
	t.Setenv("SIMPLESWAP_MODE", "mainnet")
	if _, err := LoadServe("", nil); err == nil {
		t.Fatalf("expected mode error")
	}

	t.Setenv("SIMPLESWAP_MODE", ModeLocal)
	cfg, err := LoadServe("", nil)
	if err != nil {
		t.Fatalf("load serve: %v", err)
	}
	if cfg.QuoteTTL != DefaultQuoteTTL || cfg.BlockTime != 100*time.Millisecond {
		t.Fatalf("serve defaults = %+v", cfg)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]uint64{
		"":                     0,
		"1700000000":           1700000000,
		"2023-11-14T22:13:20Z": 1700000000,
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		if err != nil || got != want {
			t.Fatalf("ParseTimestamp(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
