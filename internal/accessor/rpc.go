package accessor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpleSwap/internal/dex"
	"simpleSwap/internal/model"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/retry"
)

// Backend is the chain access the RPC accessor needs. *chain.Client
// satisfies it.
type Backend interface {
	dex.Caller
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// RPCConfig configures an RPC accessor.
type RPCConfig struct {
	ChainID      *big.Int
	Pool         common.Address
	Token        common.Address
	GasLimit     uint64
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// RPC drives a deployed pool through signed transactions.
type RPC struct {
	cfg     RPCConfig
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	decoder *dex.SwapDecoder
	logger  *zap.Logger

	// serialises nonce assignment
	sendMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRPC returns an accessor signing with key. Close stops receipt polling.
func NewRPC(cfg RPCConfig, backend Backend, key *ecdsa.PrivateKey, logger *zap.Logger) (*RPC, error) {
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is required")
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 250_000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RPC{
		cfg:     cfg,
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(cfg.ChainID),
		decoder: decoder,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// From returns the signing account.
func (a *RPC) From() common.Address { return a.from }

// Close stops receipt watchers. Unresolved handles stay pending.
func (a *RPC) Close() {
	a.cancel()
	a.wg.Wait()
}

func (a *RPC) ReadReserves(ctx context.Context) (pool.Reserves, error) {
	var native, token *big.Int
	err := retry.Do(ctx, a.cfg.MaxRetries, a.cfg.RetryDelay, func(ctx context.Context) error {
		var err error
		native, token, err = dex.FetchReserves(ctx, a.backend, a.cfg.Pool, nil)
		return err
	})
	if err != nil {
		return pool.Reserves{}, err
	}
	var r pool.Reserves
	if overflow := r.Native.SetFromBig(native); overflow {
		return pool.Reserves{}, fmt.Errorf("native reserve overflows uint256")
	}
	if overflow := r.Token.SetFromBig(token); overflow {
		return pool.Reserves{}, fmt.Errorf("token reserve overflows uint256")
	}
	return r, nil
}

func (a *RPC) SubmitSwap(ctx context.Context, intent Intent) (*pending.Handle, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	var (
		data  []byte
		value *big.Int
		err   error
	)
	switch intent.Direction {
	case pool.NativeToToken:
		data, err = dex.PackSwapETHForGMON(intent.minOut().ToBig())
		value = intent.AmountIn.ToBig()
	case pool.TokenToNative:
		data, err = dex.PackSwapGMONForETH(intent.AmountIn.ToBig(), intent.minOut().ToBig())
		value = new(big.Int)
	}
	if err != nil {
		return nil, err
	}
	return a.send(ctx, a.cfg.Pool, value, data)
}

func (a *RPC) SubmitApproval(ctx context.Context, spender common.Address, amount *uint256.Int) (*pending.Handle, error) {
	if amount == nil {
		return nil, pool.ErrInvalidAmount
	}
	data, err := dex.PackApprove(spender, amount.ToBig())
	if err != nil {
		return nil, err
	}
	return a.send(ctx, a.cfg.Token, new(big.Int), data)
}

func (a *RPC) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (*pending.Handle, error) {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	nonce, err := a.backend.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := a.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      a.cfg.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, a.signer, a.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := a.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	a.logger.Info("transaction sent",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.String("value", value.String()),
		zap.String("selector", hexutil.Encode(data[:4])),
	)

	h := pending.New(signed.Hash())
	a.wg.Add(1)
	go a.watch(h)
	return h, nil
}

// watch polls for the receipt of h until it is mined or the accessor closes.
func (a *RPC) watch(h *pending.Handle) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := a.backend.TransactionReceipt(a.ctx, h.Hash())
		switch {
		case err == nil:
			a.resolve(h, receipt)
			return
		case errors.Is(err, ethereum.NotFound):
		default:
			a.logger.Debug("receipt poll failed", zap.String("tx", h.Hash().Hex()), zap.Error(err))
		}

		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *RPC) resolve(h *pending.Handle, receipt *types.Receipt) {
	out := &model.Receipt{
		TxHash:  h.Hash().Hex(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		out.Status = model.TxFailed
		out.Error = pending.ErrReverted.Error()
		h.Resolve(out, pending.ErrReverted)
		return
	}

	out.Status = model.TxConfirmed
	for _, l := range receipt.Logs {
		if l == nil || l.Address != a.cfg.Pool || len(l.Topics) == 0 || l.Topics[0] != a.decoder.Topic0() {
			continue
		}
		ev, err := a.decoder.Decode(logRecord(l))
		if err != nil {
			a.logger.Warn("swap log decode failed", zap.String("tx", out.TxHash), zap.Error(err))
			continue
		}
		out.AmountOut = ev.AmountOut
	}
	h.Resolve(out, nil)
}

func logRecord(l *types.Log) model.LogRecord {
	topics := make([]string, 0, len(l.Topics))
	for _, t := range l.Topics {
		topics = append(topics, t.Hex())
	}
	return model.LogRecord{
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash.Hex(),
		LogIndex:    uint64(l.Index),
		Address:     l.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(l.Data),
	}
}
