package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"simpleSwap/internal/model"
)

type memStore struct {
	mu     sync.Mutex
	events []model.SwapEvent
	snaps  []model.ReservesSnapshot
}

func (m *memStore) PutSwapEvents(_ context.Context, events []model.SwapEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memStore) SaveReserves(_ context.Context, snap model.ReservesSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func TestWriterDrainsOnCancel(t *testing.T) {
	store := &memStore{}
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, store, store, nil)

	for i := uint64(1); i <= 5; i++ {
		if !w.Enqueue(model.SwapEvent{TxHash: "0x", ReserveNative: "10", ReserveToken: "20", ReserveSeq: i, Timestamp: 100 + i}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.events) != 5 || w.Written() != 5 {
		t.Fatalf("expected 5 events written, got %d (%d)", len(store.events), w.Written())
	}
	if len(store.snaps) == 0 {
		t.Fatalf("expected reserves snapshots")
	}
	last := store.snaps[len(store.snaps)-1]
	if last.Seq != 5 || last.ObservedAt.Unix() != 105 {
		t.Fatalf("unexpected last snapshot: %+v", last)
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	w := NewWriter(WriterConfig{Buffer: 1}, &memStore{}, nil, nil)
	if !w.Enqueue(model.SwapEvent{}) {
		t.Fatalf("first enqueue rejected")
	}
	if w.Enqueue(model.SwapEvent{}) {
		t.Fatalf("second enqueue accepted")
	}
	if w.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", w.Dropped())
	}
}
