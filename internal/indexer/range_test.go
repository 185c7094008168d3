package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	cases := []struct {
		name          string
		from, to, max uint64
		want          []BlockRange
	}{
		{"even", 100, 105, 2, []BlockRange{{100, 101}, {102, 103}, {104, 105}}},
		{"short tail", 100, 104, 2, []BlockRange{{100, 101}, {102, 103}, {104, 104}}},
		{"single block", 5, 5, 10, []BlockRange{{5, 5}}},
		{"top of range", ^uint64(0) - 1, ^uint64(0), 1, []BlockRange{{^uint64(0) - 1, ^uint64(0) - 1}, {^uint64(0), ^uint64(0)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitRange(tc.from, tc.to, tc.max)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ranges mismatch: %+v != %+v", got, tc.want)
			}
		})
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
