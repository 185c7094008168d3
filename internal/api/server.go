// Package api serves the pool over HTTP: reserve reads, swap and approval
// submission, transaction status and price quotes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"simpleSwap/internal/quote"
)

// Quoter prices swaps. Both the 0x client and the pool quoter implement it.
type Quoter interface {
	Price(ctx context.Context, p quote.Params) (*quote.Price, error)
	Quote(ctx context.Context, p quote.Params) (*quote.Quote, error)
}

// Faucet credits test balances. Only the local devnet provides one.
type Faucet interface {
	Fund(addr common.Address, native, token *uint256.Int) error
}

// Options configures the optional parts of the server.
type Options struct {
	NativeDecimals uint8
	TokenDecimals  uint8
	// WaitTimeout bounds requests that ask to wait for their receipt.
	WaitTimeout time.Duration

	ZeroX      Quoter
	PoolQuoter Quoter
	Faucet     Faucet
	Metrics    http.Handler
}

type Server struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

func NewServer(backend Backend, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	return &Server{backend: backend, opts: opts, logger: logger}
}

// App builds the fiber application with every configured route.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: s.handleError})

	app.Get("/healthz", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/reserves", s.handleReserves)
	app.Get("/estimate", s.handleEstimate)
	app.Post("/swap", s.handleSwap)
	app.Post("/approve", s.handleApprove)
	app.Get("/tx/:hash", s.handleTx)

	if s.opts.Faucet != nil {
		app.Post("/faucet", s.handleFaucet)
	}
	if s.opts.ZeroX != nil {
		app.Get("/api/swap/price", s.priceHandler(s.opts.ZeroX))
		app.Get("/api/swap/quote", s.quoteHandler(s.opts.ZeroX))
	}
	if s.opts.PoolQuoter != nil {
		app.Get("/api/pool/price", s.priceHandler(s.opts.PoolQuoter))
		app.Get("/api/pool/quote", s.quoteHandler(s.opts.PoolQuoter))
	}
	if s.opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.opts.Metrics))
	}
	return app
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	fe := statusFor(err)
	switch {
	case fe != nil:
	case errors.Is(err, context.DeadlineExceeded):
		fe = fiber.NewError(fiber.StatusGatewayTimeout, "timed out waiting for receipt")
	default:
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		fe = ErrInternal
	}
	return c.Status(fe.Code).JSON(errorBody{Error: fe.Message})
}
