package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PackGetReserves encodes a getReserves call.
func PackGetReserves() ([]byte, error) {
	return packPool("getReserves")
}

// PackSwapETHForGMON encodes swapETHForGMON(minGmonOut). The native input
// travels as the transaction value.
func PackSwapETHForGMON(minOut *big.Int) ([]byte, error) {
	return packPool("swapETHForGMON", minOut)
}

// PackSwapGMONForETH encodes swapGMONForETH(gmonIn, minEthOut).
func PackSwapGMONForETH(tokenIn, minOut *big.Int) ([]byte, error) {
	return packPool("swapGMONForETH", tokenIn, minOut)
}

// PackApprove encodes ERC-20 approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}

// UnpackReserves decodes getReserves output.
func UnpackReserves(data []byte) (native, token *big.Int, err error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := parsed.Unpack("getReserves", data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack getReserves: %w", err)
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("unexpected getReserves values: %d", len(values))
	}
	if native, err = asBigInt(values[0]); err != nil {
		return nil, nil, err
	}
	if token, err = asBigInt(values[1]); err != nil {
		return nil, nil, err
	}
	return native, token, nil
}

func packPool(method string, args ...interface{}) ([]byte, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}
