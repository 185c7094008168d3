package accessor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"simpleSwap/internal/chain"
	"simpleSwap/internal/dex"
	"simpleSwap/internal/model"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
)

var (
	testChainID = big.NewInt(10143)
	rpcPool     = common.HexToAddress("0xDf4682D006a1AeBC154afDE8dD13C912b09Fe9CB")
	rpcToken    = common.HexToAddress("0xe4A4d64C4A5cbf6fbFfC0658C1e2a0b64e4fa17c")
)

type callArgs struct {
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
	Data  hexutil.Bytes   `json:"data"`
}

// fakeEth mines every transaction it receives. Receipts appear after
// hiddenPolls lookups.
type fakeEth struct {
	mu          sync.Mutex
	reserves    [2]*big.Int
	nonce       uint64
	sent        []*types.Transaction
	receipts    map[common.Hash]*types.Receipt
	polls       map[common.Hash]int
	hiddenPolls int
	revert      bool
	amountOut   *big.Int
}

func newFakeEth() *fakeEth {
	return &fakeEth{
		reserves:  [2]*big.Int{big.NewInt(1000), big.NewInt(1000)},
		receipts:  make(map[common.Hash]*types.Receipt),
		polls:     make(map[common.Hash]int),
		amountOut: big.NewInt(90),
	}
}

func (f *fakeEth) ChainId(context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(testChainID), nil
}

func (f *fakeEth) GasPrice(context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(50_000_000_000)), nil
}

func (f *fakeEth) GetTransactionCount(_ context.Context, _ common.Address, _ gethrpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return hexutil.Uint64(f.nonce), nil
}

func (f *fakeEth) Call(_ context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	input := args.Input
	if len(input) == 0 {
		input = args.Data
	}
	parsed, _ := dex.PoolABI()
	if args.To == nil || *args.To != rpcPool || len(input) < 4 {
		return nil, fmt.Errorf("execution reverted")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return parsed.Methods["getReserves"].Outputs.Pack(f.reserves[0], f.reserves[1])
}

func (f *fakeEth) SendRawTransaction(_ context.Context, raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++

	receipt := &types.Receipt{
		Type:              types.LegacyTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 60_000,
		GasUsed:           60_000,
		TxHash:            tx.Hash(),
		BlockNumber:       big.NewInt(int64(100 + len(f.sent))),
		Logs:              []*types.Log{},
	}
	if f.revert {
		receipt.Status = types.ReceiptStatusFailed
	} else if tx.To() != nil && *tx.To() == rpcPool {
		parsed, _ := dex.PoolABI()
		ev := parsed.Events["Swap"]
		data, err := ev.Inputs.NonIndexed().Pack(tx.Value().Sign() > 0, big.NewInt(100), f.amountOut)
		if err != nil {
			return common.Hash{}, err
		}
		receipt.Logs = append(receipt.Logs, &types.Log{
			Address: rpcPool,
			Topics:  []common.Hash{ev.ID, common.BytesToHash(common.HexToAddress("0x01").Bytes())},
			Data:    data,
			TxHash:  tx.Hash(),
		})
	}
	f.receipts[tx.Hash()] = receipt
	return tx.Hash(), nil
}

func (f *fakeEth) GetTransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[hash]++
	if f.polls[hash] <= f.hiddenPolls {
		return nil, nil
	}
	return f.receipts[hash], nil
}

func (f *fakeEth) lastSent(t *testing.T) *types.Transaction {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func newTestRPC(t *testing.T, fe *fakeEth) *RPC {
	t.Helper()
	srv := gethrpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", fe))
	client := chain.NewClientFromRPC(gethrpc.DialInProc(srv))
	t.Cleanup(client.Close)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	a, err := NewRPC(RPCConfig{
		ChainID:      testChainID,
		Pool:         rpcPool,
		Token:        rpcToken,
		PollInterval: 5 * time.Millisecond,
	}, client, key, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func waitHandle(t *testing.T, h *pending.Handle) (*model.Receipt, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := h.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "handle did not resolve")
	return r, err
}

func TestRPCReadReserves(t *testing.T) {
	fe := newFakeEth()
	fe.reserves = [2]*big.Int{big.NewInt(1100), big.NewInt(910)}
	a := newTestRPC(t, fe)

	r, err := a.ReadReserves(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1100), r.Native.Uint64())
	require.Equal(t, uint64(910), r.Token.Uint64())
}

func TestRPCSubmitSwapNativeIn(t *testing.T) {
	fe := newFakeEth()
	fe.hiddenPolls = 2
	a := newTestRPC(t, fe)

	h, err := a.SubmitSwap(context.Background(), Intent{
		Direction: pool.NativeToToken,
		AmountIn:  uint256.NewInt(100),
		MinOut:    uint256.NewInt(85),
	})
	require.NoError(t, err)
	require.Equal(t, model.TxPending, h.Status())

	receipt, err := waitHandle(t, h)
	require.NoError(t, err)
	require.Equal(t, model.TxConfirmed, receipt.Status)
	require.Equal(t, "90", receipt.AmountOut)
	require.Equal(t, uint64(101), receipt.BlockNumber)

	tx := fe.lastSent(t)
	require.Equal(t, rpcPool, *tx.To())
	require.Equal(t, int64(100), tx.Value().Int64())
	require.Equal(t, h.Hash(), tx.Hash())

	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), tx)
	require.NoError(t, err)
	require.Equal(t, a.From(), sender)

	parsed, _ := dex.PoolABI()
	method, err := parsed.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	require.Equal(t, "swapETHForGMON", method.Name)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	require.Equal(t, int64(85), args[0].(*big.Int).Int64())
}

func TestRPCSubmitSwapReverted(t *testing.T) {
	fe := newFakeEth()
	fe.revert = true
	a := newTestRPC(t, fe)

	h, err := a.SubmitSwap(context.Background(), Intent{
		Direction: pool.TokenToNative,
		AmountIn:  uint256.NewInt(100),
	})
	require.NoError(t, err)

	receipt, err := waitHandle(t, h)
	require.ErrorIs(t, err, pending.ErrReverted)
	require.Equal(t, model.TxFailed, receipt.Status)
	require.Equal(t, model.TxFailed, h.Status())

	tx := fe.lastSent(t)
	require.Equal(t, int64(0), tx.Value().Int64())
}

func TestRPCSubmitApprovalTargetsToken(t *testing.T) {
	fe := newFakeEth()
	a := newTestRPC(t, fe)

	h, err := a.SubmitApproval(context.Background(), rpcPool, uint256.NewInt(500))
	require.NoError(t, err)
	_, err = waitHandle(t, h)
	require.NoError(t, err)

	tx := fe.lastSent(t)
	require.Equal(t, rpcToken, *tx.To())
	require.Equal(t, "0x095ea7b3", hexutil.Encode(tx.Data()[:4]))
}

func TestRPCRejectsZeroAmountWithoutSending(t *testing.T) {
	fe := newFakeEth()
	a := newTestRPC(t, fe)

	_, err := a.SubmitSwap(context.Background(), Intent{Direction: pool.NativeToToken, AmountIn: uint256.NewInt(0)})
	require.ErrorIs(t, err, pool.ErrInvalidAmount)

	fe.mu.Lock()
	defer fe.mu.Unlock()
	require.Empty(t, fe.sent)
}

func TestRPCNoncesIncrease(t *testing.T) {
	fe := newFakeEth()
	a := newTestRPC(t, fe)

	for i := 0; i < 3; i++ {
		_, err := a.SubmitApproval(context.Background(), rpcPool, uint256.NewInt(uint64(i+1)))
		require.NoError(t, err)
	}
	fe.mu.Lock()
	defer fe.mu.Unlock()
	require.Len(t, fe.sent, 3)
	for i, tx := range fe.sent {
		require.Equal(t, uint64(i), tx.Nonce())
	}
}
