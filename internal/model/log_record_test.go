package model

import "testing"

func TestLogRecordTopic0(t *testing.T) {
	swap := LogRecord{Topics: []string{"0xaaa", "0xbbb"}}
	if got := swap.Topic0(); got != "0xaaa" {
		t.Fatalf("topic0 = %q, want 0xaaa", got)
	}
	if got := (LogRecord{}).Topic0(); got != "" {
		t.Fatalf("anonymous log topic0 = %q", got)
	}
}
