package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.0x.org"
	pricePath      = "/swap/allowance-holder/price"
	quotePath      = "/swap/allowance-holder/quote"
)

// ClientConfig configures the 0x client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second, zero disables limiting
	Burst     int
	Timeout   time.Duration
}

// Client talks to the 0x swap API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Price fetches an indicative price. Taker is optional.
func (c *Client) Price(ctx context.Context, p Params) (*Price, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out Price
	if err := c.get(ctx, pricePath, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quote fetches a firm quote. Taker is required.
func (c *Client) Quote(ctx context.Context, p Params) (*Quote, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Taker == "" {
		return nil, ErrTakerRequired
	}
	var out Quote
	if err := c.get(ctx, quotePath, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, p Params, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	q := url.Values{}
	q.Set("chainId", strconv.FormatUint(p.ChainID, 10))
	q.Set("buyToken", p.BuyToken)
	q.Set("sellToken", p.SellToken)
	q.Set("sellAmount", p.SellAmount)
	if p.Taker != "" {
		q.Set("taker", p.Taker)
	}
	if p.SlippageBps > 0 {
		q.Set("slippageBps", strconv.FormatUint(uint64(p.SlippageBps), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("0x-api-key", c.apiKey)
	req.Header.Set("0x-version", "v2")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Body: string(body)}
		var parsed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
		c.logger.Warn("0x request failed", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
