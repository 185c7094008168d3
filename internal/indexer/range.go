package indexer

import "fmt"

// BlockRange is one inclusive eth_getLogs window.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange cuts [from, to] into windows of at most batchSize blocks so a
// single FilterLogs call stays under the node's range limit.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
