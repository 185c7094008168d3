package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"simpleSwap/internal/model"
)

// Runs against a real database only when SIMPLESWAP_TEST_PG_DSN is set.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("SIMPLESWAP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SIMPLESWAP_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}

	pool := "0xTestPool" + time.Now().Format("150405.000000")
	events := []model.SwapEvent{{
		ChainID: 10143, PoolAddress: pool, TxHash: "0x01", Trader: "0xabc",
		Direction: "native_to_token", AmountIn: "100", AmountOut: "90",
	}}
	// Inserting twice must not fail.
	for i := 0; i < 2; i++ {
		if err := store.PutSwapEvents(ctx, events); err != nil {
			t.Fatalf("put events: %v", err)
		}
	}

	snap := model.ReservesSnapshot{
		ChainID: 10143, PoolAddress: pool, Seq: 1,
		ReserveNative: "1100", ReserveToken: "910", ObservedAt: time.Now().UTC(),
	}
	if err := store.SaveReserves(ctx, snap); err != nil {
		t.Fatalf("save reserves: %v", err)
	}
	got, ok, err := store.LatestReserves(ctx, 10143, pool)
	if err != nil || !ok {
		t.Fatalf("latest reserves: ok=%v err=%v", ok, err)
	}
	if got.ReserveNative != "1100" || got.ReserveToken != "910" || got.Seq != 1 {
		t.Fatalf("snapshot = %+v", got)
	}

	if err := store.SaveState(ctx, pool, 42); err != nil {
		t.Fatalf("save state: %v", err)
	}
	ts, ok, err := store.LoadState(ctx, pool)
	if err != nil || !ok || ts != 42 {
		t.Fatalf("load state = %d %v %v", ts, ok, err)
	}
}
