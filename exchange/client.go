package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"golang.org/x/time/rate"

	"cbtrader/config"
	"cbtrader/internal/metrics"
	"cbtrader/logger"
)

const maxResponseBytes = 10 << 20

// Request describes one REST call. Private requests are signed and need a
// client built with credentials; public requests are never signed.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Private bool
}

// Client is the REST transport. A single Client serves public and private
// endpoints and reuses one connection pool for the life of the process.
type Client struct {
	baseURL string
	http    *http.Client
	signer  *Signer
	limiter *rate.Limiter
	retry   config.RetryConfig
	log     *logger.Log

	creds *config.Credentials
	now   func() time.Time
}

type Option func(*Client)

// WithCredentials enables private endpoints. A non-empty creds.BaseURL
// overrides the configured base URL.
func WithCredentials(creds config.Credentials) Option {
	return func(c *Client) {
		c.creds = &creds
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock sets the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient builds a client from the exchange configuration.
func NewClient(cfg config.ExchangeConfig, opts ...Option) (*Client, error) {
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 3
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = "cbtrader/1.0"
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		retry:   cfg.Retry,
		log:     logger.GetLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   timeout,
			Transport: userAgentTransport{agent: agent, base: http.DefaultTransport},
		}
	}

	if c.creds != nil {
		signer, err := NewSigner(*c.creds)
		if err != nil {
			return nil, err
		}
		signer.now = c.now
		c.signer = signer
		if c.creds.BaseURL != "" {
			c.baseURL = strings.TrimRight(c.creds.BaseURL, "/")
		}
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("exchange: base url is required")
	}
	return c, nil
}

// Authenticated reports whether the client can call private endpoints.
func (c *Client) Authenticated() bool {
	return c.signer != nil
}

// Send issues req and returns the raw JSON response.
func (c *Client) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	raw, _, err := c.do(ctx, req)
	return raw, err
}

// SendJSON issues req and decodes the response into out.
func (c *Client) SendJSON(ctx context.Context, req Request, out interface{}) error {
	raw, _, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Method: req.Method, Path: req.Path, StatusCode: http.StatusOK, Body: string(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do sends req, retrying idempotent GETs on network errors, 429 and 5xx.
func (c *Client) do(ctx context.Context, req Request) (json.RawMessage, http.Header, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Method = strings.ToUpper(req.Method)
	if req.Private && c.signer == nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrUnauthenticated)
	}

	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s %s: encode body: %w", req.Method, req.Path, err)
		}
		body = b
	}

	attempts := 1
	if req.Method == http.MethodGet && c.retry.MaxAttempts > 1 {
		attempts = c.retry.MaxAttempts
	}
	factor := float64(c.retry.BackoffMultiplier)
	if factor < 1 {
		factor = 2
	}
	b := &backoff.Backoff{Min: c.retry.BaseDelay, Max: c.retry.MaxDelay, Factor: factor, Jitter: true}

	log := c.log.WithComponent("exchange").WithFields(logger.Fields{"method": req.Method, "path": req.Path})
	for attempt := 1; ; attempt++ {
		start := time.Now()
		raw, header, err := c.roundTrip(ctx, req, body)
		logger.LogPerformanceEntry(log, "exchange", "request", time.Since(start), logger.Fields{"attempt": attempt})
		if err == nil {
			return raw, header, nil
		}
		if attempt >= attempts || !retryable(err) {
			return nil, nil, err
		}

		wait := b.Duration()
		log.WithError(err).WithFields(logger.Fields{"attempt": attempt, "backoff_ms": wait.Milliseconds()}).Warn("request failed, retrying")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, err
		case <-timer.C:
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request, body []byte) (json.RawMessage, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("%s %s: rate limiter: %w", req.Method, req.Path, err)
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: build request: %w", req.Method, req.Path, err)
	}
	if req.Private {
		for k, v := range c.signer.Headers(req.Method, httpReq.URL.RequestURI(), string(body)) {
			httpReq.Header[k] = v
		}
	} else {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveRequest(req.Method, 0)
		return nil, nil, &TransportError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveRequest(req.Method, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, &TransportError{Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &TransportError{Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, nil, &TransportError{Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Body: string(data), Err: errMalformedResponse}
	}
	return data, resp.Header, nil
}
