package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/outreachly/drip-engine/pkg/circuitbreaker"
	"github.com/outreachly/drip-engine/pkg/logger"
)

// SendRequest is one outbound SMS.
type SendRequest struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SendResult carries the carrier's message reference.
type SendResult struct {
	ProviderID string `json:"provider_id"`
}

// Sender is the carrier transport. The engine calls it at most once per
// enrollment per tick and treats any error as transient unless wrapped
// otherwise.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}

type Config struct {
	BaseURL   string
	AccountID string
	AuthToken string
	Timeout   time.Duration
	// RatePerSecond and Burst bound sends per tenant.
	RatePerSecond float64
	Burst         int
}

// Client is an HTTP carrier client with a circuit breaker and per-tenant
// rate limiting.
type Client struct {
	cfg      Config
	http     *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	limiters *cache.Cache
	logger   *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "carrier",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		limiters: cache.New(30*time.Minute, time.Hour),
		logger:   log,
	}
}

func (c *Client) limiter(tenantID string) *rate.Limiter {
	if v, ok := c.limiters.Get(tenantID); ok {
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(c.cfg.RatePerSecond), c.cfg.Burst)
	c.limiters.SetDefault(tenantID, l)
	return l
}

type carrierResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if tenant := req.Metadata["tenant_id"]; tenant != "" {
		if err := c.limiter(tenant).Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var result *SendResult
	err := c.breaker.Execute(func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal send request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build send request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.SetBasicAuth(c.cfg.AccountID, c.cfg.AuthToken)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("carrier request: %w", err)
		}
		defer resp.Body.Close()

		var cr carrierResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return fmt.Errorf("decode carrier response: %w", err)
		}

		if resp.StatusCode >= 400 || cr.Error != "" {
			return fmt.Errorf("carrier rejected send (status %d): %s", resp.StatusCode, cr.Error)
		}

		result = &SendResult{ProviderID: cr.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
