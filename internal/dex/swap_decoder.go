package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"simpleSwap/internal/model"
)

// SwapDecoder decodes SimpleSwapPool Swap logs.
type SwapDecoder struct {
	event  abi.Event
	topic0 string
}

// NewSwapDecoder builds a decoder for the pool Swap event.
func NewSwapDecoder() (*SwapDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	event, ok := parsed.Events["Swap"]
	if !ok {
		return nil, fmt.Errorf("pool abi has no Swap event")
	}
	return &SwapDecoder{event: event, topic0: strings.ToLower(event.ID.Hex())}, nil
}

// Topic0 returns the Swap event signature hash.
func (d *SwapDecoder) Topic0() common.Hash { return d.event.ID }

// CanDecode checks if the topic0 is supported.
func (d *SwapDecoder) CanDecode(topic0 string) bool {
	return topic0 != "" && strings.ToLower(topic0) == d.topic0
}

// Decode converts a LogRecord into a SwapEvent. Reserves are not part of
// the log and stay empty.
func (d *SwapDecoder) Decode(log model.LogRecord) (*model.SwapEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	if !d.CanDecode(log.Topics[0]) {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}

	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return nil, err
	}
	var indexed struct {
		Trader common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	ethToGmon, ok := values[0].(bool)
	if !ok {
		return nil, fmt.Errorf("unsupported direction type %T", values[0])
	}
	amountIn, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}
	amountOut, err := asBigInt(values[2])
	if err != nil {
		return nil, err
	}

	direction := "token_to_native"
	if ethToGmon {
		direction = "native_to_token"
	}
	return &model.SwapEvent{
		ChainID:     log.ChainID,
		PoolAddress: common.HexToAddress(log.Address).Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Trader:      indexed.Trader.Hex(),
		Direction:   direction,
		AmountIn:    amountIn.String(),
		AmountOut:   amountOut.String(),
		Timestamp:   log.Timestamp,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
