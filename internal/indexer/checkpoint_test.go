package indexer

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestCheckpointIgnoresOtherPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp", "checkpoint.json")
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")

	if err := NewCheckpointStore(path, other, true).Save(42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := NewCheckpointStore(path, testPool, true).Load(); err != nil || ok {
		t.Fatalf("checkpoint of another pool loaded: ok=%v err=%v", ok, err)
	}
	cp, ok, err := NewCheckpointStore(path, other, true).Load()
	if err != nil || !ok || cp.LastProcessedBlock != 42 {
		t.Fatalf("checkpoint = %+v ok=%v err=%v", cp, ok, err)
	}
	if _, ok, _ := NewCheckpointStore(path, other, false).Load(); ok {
		t.Fatalf("disabled store loaded a checkpoint")
	}
}
