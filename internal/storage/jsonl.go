package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"simpleSwap/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// Path returns the output file.
func (s *JsonlStorage) Path() string { return s.path }

// PutSwapEvents appends a batch of swap events as JSON lines.
func (s *JsonlStorage) PutSwapEvents(_ context.Context, events []model.SwapEvent) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]interface{}, len(events))
	for i := range events {
		records[i] = events[i]
	}
	return s.appendRecords(records)
}

// SaveReserves appends one reserves snapshot.
func (s *JsonlStorage) SaveReserves(_ context.Context, snap model.ReservesSnapshot) error {
	return s.appendRecords([]interface{}{snap})
}

// UpsertWindowMetrics appends window metrics. Later lines for the same
// window supersede earlier ones.
func (s *JsonlStorage) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	records := make([]interface{}, len(metrics))
	for i := range metrics {
		records[i] = metrics[i]
	}
	return s.appendRecords(records)
}

// PutDecodeErrors appends decode failures.
func (s *JsonlStorage) PutDecodeErrors(_ context.Context, errs []model.DecodeError) error {
	if len(errs) == 0 {
		return nil
	}
	records := make([]interface{}, len(errs))
	for i := range errs {
		records[i] = errs[i]
	}
	return s.appendRecords(records)
}

func (s *JsonlStorage) appendRecords(records []interface{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ReadSwapEvents streams swap events from a JSONL file. Blank lines are
// skipped; a malformed line stops the scan with its line number.
func ReadSwapEvents(path string, fn func(model.SwapEvent) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev model.SwapEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}
