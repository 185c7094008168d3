package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"simpleSwap/internal/model"
)

func TestHandleResolvesOnce(t *testing.T) {
	h := New(common.HexToHash("0x01"))
	require.Equal(t, model.TxPending, h.Status())

	_, err := h.Result()
	require.ErrorIs(t, err, ErrNotResolved)

	require.True(t, h.Resolve(&model.Receipt{Status: model.TxConfirmed, AmountOut: "90"}, nil))
	require.False(t, h.Resolve(nil, ErrReverted))

	require.Equal(t, model.TxConfirmed, h.Status())
	receipt, err := h.Result()
	require.NoError(t, err)
	require.Equal(t, "90", receipt.AmountOut)
}

func TestHandleFailedIsDistinctFromPending(t *testing.T) {
	h := New(common.HexToHash("0x02"))
	h.Resolve(&model.Receipt{Status: model.TxFailed}, ErrReverted)

	require.Equal(t, model.TxFailed, h.Status())
	_, err := h.Wait(context.Background())
	require.True(t, errors.Is(err, ErrReverted))
}

func TestHandleWaitHonoursContext(t *testing.T) {
	h := New(common.HexToHash("0x03"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, model.TxPending, h.Status())

	go h.Resolve(&model.Receipt{Status: model.TxConfirmed}, nil)
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatalf("handle did not resolve")
	}
	require.Equal(t, model.TxConfirmed, h.Status())
}
