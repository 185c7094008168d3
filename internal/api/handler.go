package api

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpleSwap/internal/accessor"
	"simpleSwap/internal/ledger"
	"simpleSwap/internal/model"
	"simpleSwap/internal/pending"
	"simpleSwap/internal/pool"
	"simpleSwap/internal/quote"
	"simpleSwap/internal/units"
)

type ReservesResponse struct {
	Pool            string `json:"pool"`
	Native          string `json:"native"`
	Token           string `json:"token"`
	NativeFormatted string `json:"native_formatted"`
	TokenFormatted  string `json:"token_formatted"`
	Price           string `json:"price,omitempty"`
	FeeBps          uint16 `json:"fee_bps"`
	Seq             uint64 `json:"seq"`
}

type EstimateRequest struct {
	Direction   string `query:"direction"`
	Amount      string `query:"amount"`
	SlippageBps uint16 `query:"slippage_bps"`
}

type EstimateResponse struct {
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	MinOut    string `json:"min_out,omitempty"`
}

// SwapRequest amounts are decimal strings in whole units of the asset.
type SwapRequest struct {
	Trader      string  `json:"trader"`
	Direction   string  `json:"direction"`
	Amount      string  `json:"amount"`
	MinOut      string  `json:"min_out"`
	SlippageBps uint16  `json:"slippage_bps"`
	Nonce       *uint64 `json:"nonce"`
	Wait        bool    `json:"wait"`
}

// ApproveRequest with an empty spender approves the pool. Amount "max"
// grants an unlimited allowance.
type ApproveRequest struct {
	Owner   string  `json:"owner"`
	Spender string  `json:"spender"`
	Amount  string  `json:"amount"`
	Nonce   *uint64 `json:"nonce"`
	Wait    bool    `json:"wait"`
}

type FaucetRequest struct {
	Address string `json:"address"`
	Native  string `json:"native"`
	Token   string `json:"token"`
}

type TxResponse struct {
	TxHash  string         `json:"tx_hash"`
	Status  model.TxStatus `json:"status"`
	Receipt *model.Receipt `json:"receipt,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleReserves(c fiber.Ctx) error {
	r, err := s.backend.ReadReserves(c.Context())
	if err != nil {
		return err
	}
	resp := ReservesResponse{
		Pool:            s.backend.Pool().Hex(),
		Native:          r.Native.Dec(),
		Token:           r.Token.Dec(),
		NativeFormatted: units.Format(&r.Native, s.opts.NativeDecimals),
		TokenFormatted:  units.Format(&r.Token, s.opts.TokenDecimals),
		FeeBps:          s.backend.FeeBps(),
		Seq:             r.Seq,
	}
	if price, err := units.Price(r.Native.ToBig(), r.Token.ToBig(), s.opts.NativeDecimals, s.opts.TokenDecimals, 18); err == nil {
		resp.Price = price
	}
	return c.JSON(resp)
}

func (s *Server) handleEstimate(c fiber.Ctx) error {
	var req EstimateRequest
	if err := c.Bind().Query(&req); err != nil {
		s.logger.Debug("failed to bind query parameters", zap.Error(err))
		return ErrInvalidQueryParameters
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		return err
	}
	amountIn, err := s.parseAmount("amount", req.Amount, s.inDecimals(dir))
	if err != nil {
		return err
	}
	out, err := s.estimate(c.Context(), dir, amountIn)
	if err != nil {
		return err
	}
	resp := EstimateResponse{
		Direction: dir.String(),
		AmountIn:  amountIn.Dec(),
		AmountOut: out.Dec(),
	}
	if req.SlippageBps > 0 {
		resp.MinOut = pool.MinOut(out, req.SlippageBps).Dec()
	}
	return c.JSON(resp)
}

func (s *Server) handleSwap(c fiber.Ctx) error {
	var req SwapRequest
	if err := c.Bind().Body(&req); err != nil {
		s.logger.Debug("failed to bind swap body", zap.Error(err))
		return ErrInvalidBody
	}
	trader, err := parseAddress("trader", req.Trader)
	if err != nil {
		return err
	}
	dir, err := parseDirection(req.Direction)
	if err != nil {
		return err
	}
	amountIn, err := s.parseAmount("amount", req.Amount, s.inDecimals(dir))
	if err != nil {
		return err
	}

	var minOut *uint256.Int
	switch {
	case req.MinOut != "":
		minOut, err = units.Parse(req.MinOut, s.outDecimals(dir))
		if err != nil {
			return NewInvalidAmount("min_out", err)
		}
	case req.SlippageBps > 0:
		out, err := s.estimate(c.Context(), dir, amountIn)
		if err != nil {
			return err
		}
		minOut = pool.MinOut(out, req.SlippageBps)
	}

	h, err := s.backend.Swap(c.Context(), trader, accessor.Intent{Direction: dir, AmountIn: amountIn, MinOut: minOut}, req.Nonce)
	if err != nil {
		return err
	}
	s.logger.Debug("swap submitted",
		zap.String("trader", trader.Hex()),
		zap.String("direction", dir.String()),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("tx_hash", h.Hash().Hex()),
	)
	return s.respond(c, h, req.Wait)
}

func (s *Server) handleApprove(c fiber.Ctx) error {
	var req ApproveRequest
	if err := c.Bind().Body(&req); err != nil {
		s.logger.Debug("failed to bind approve body", zap.Error(err))
		return ErrInvalidBody
	}
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return err
	}
	spender := s.backend.Pool()
	if req.Spender != "" {
		if spender, err = parseAddress("spender", req.Spender); err != nil {
			return err
		}
	}

	var amount *uint256.Int
	if strings.EqualFold(req.Amount, "max") {
		amount = new(uint256.Int).Set(ledger.MaxAllowance)
	} else {
		if req.Amount == "" {
			return ErrAmountRequired
		}
		if amount, err = units.Parse(req.Amount, s.opts.TokenDecimals); err != nil {
			return NewInvalidAmount("amount", err)
		}
	}

	h, err := s.backend.Approve(c.Context(), owner, spender, amount, req.Nonce)
	if err != nil {
		return err
	}
	return s.respond(c, h, req.Wait)
}

func (s *Server) handleTx(c fiber.Ctx) error {
	raw := c.Params("hash")
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		return fiber.NewError(fiber.StatusBadRequest, "invalid transaction hash")
	}
	h, ok := s.backend.Lookup(common.HexToHash(raw))
	if !ok {
		return ErrTxNotFound
	}
	return c.JSON(txResponse(h))
}

func (s *Server) handleFaucet(c fiber.Ctx) error {
	var req FaucetRequest
	if err := c.Bind().Body(&req); err != nil {
		return ErrInvalidBody
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		return err
	}
	native, err := optionalAmount("native", req.Native, s.opts.NativeDecimals)
	if err != nil {
		return err
	}
	token, err := optionalAmount("token", req.Token, s.opts.TokenDecimals)
	if err != nil {
		return err
	}
	if err := s.opts.Faucet.Fund(addr, native, token); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) priceHandler(q Quoter) fiber.Handler {
	return func(c fiber.Ctx) error {
		var p quote.Params
		if err := c.Bind().Query(&p); err != nil {
			return ErrInvalidQueryParameters
		}
		price, err := q.Price(c.Context(), p)
		if err != nil {
			return err
		}
		return c.JSON(price)
	}
}

func (s *Server) quoteHandler(q Quoter) fiber.Handler {
	return func(c fiber.Ctx) error {
		var p quote.Params
		if err := c.Bind().Query(&p); err != nil {
			return ErrInvalidQueryParameters
		}
		res, err := q.Quote(c.Context(), p)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// respond answers 202 with the hash, or waits for the receipt when asked.
func (s *Server) respond(c fiber.Ctx, h *pending.Handle, wait bool) error {
	if !wait {
		return c.Status(fiber.StatusAccepted).JSON(TxResponse{TxHash: h.Hash().Hex(), Status: model.TxPending})
	}
	ctx, cancel := context.WithTimeout(c.Context(), s.opts.WaitTimeout)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return c.JSON(txResponse(h))
}

func (s *Server) estimate(ctx context.Context, dir pool.Direction, amountIn *uint256.Int) (*uint256.Int, error) {
	r, err := s.backend.ReadReserves(ctx)
	if err != nil {
		return nil, err
	}
	return pool.QuoteReserves(r, dir, amountIn, s.backend.FeeBps())
}

func (s *Server) inDecimals(dir pool.Direction) uint8 {
	if dir == pool.NativeToToken {
		return s.opts.NativeDecimals
	}
	return s.opts.TokenDecimals
}

func (s *Server) outDecimals(dir pool.Direction) uint8 {
	if dir == pool.NativeToToken {
		return s.opts.TokenDecimals
	}
	return s.opts.NativeDecimals
}

func (s *Server) parseAmount(field, raw string, decimals uint8) (*uint256.Int, error) {
	if raw == "" {
		return nil, ErrAmountRequired
	}
	v, err := units.Parse(raw, decimals)
	if err != nil {
		return nil, NewInvalidAmount(field, err)
	}
	if v.IsZero() {
		return nil, NewInvalidAmount(field, pool.ErrInvalidAmount)
	}
	return v, nil
}

func optionalAmount(field, raw string, decimals uint8) (*uint256.Int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := units.Parse(raw, decimals)
	if err != nil {
		return nil, NewInvalidAmount(field, err)
	}
	return v, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, NewAddressRequired(field)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, NewInvalidAddress(field)
	}
	return common.HexToAddress(raw), nil
}

func parseDirection(raw string) (pool.Direction, error) {
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "direction is required")
	}
	dir, err := pool.ParseDirection(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return dir, nil
}

func txResponse(h *pending.Handle) TxResponse {
	resp := TxResponse{TxHash: h.Hash().Hex(), Status: h.Status()}
	receipt, err := h.Result()
	if errors.Is(err, pending.ErrNotResolved) {
		return resp
	}
	resp.Receipt = receipt
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
