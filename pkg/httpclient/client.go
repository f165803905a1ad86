// Package httpclient provides an HTTP client with retry and exponential
// backoff, shared by the Embedding Client and Reranker Client (spec
// §4.6, §4.7). Adapted from kadirpekel/hector's pkg/httpclient, trimmed
// of the vendor-specific (Anthropic/OpenAI/Gemini) rate-limit header
// parsers that package carried — this service's providers are generic
// HTTP JSON endpoints (spec §6), so only a generic Retry-After parser
// is kept.
package httpclient

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

// RetryStrategy defines how to handle retries for a given response.
type RetryStrategy int

const (
	NoRetry RetryStrategy = iota
	ConservativeRetry
	SmartRetry
)

// RateLimitInfo carries Retry-After information parsed from a response.
type RateLimitInfo struct {
	RetryAfter time.Duration
}

// ParseRetryAfter reads a generic Retry-After header (seconds).
func ParseRetryAfter(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}
	if ra := headers.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return info
}

type HeaderParser func(http.Header) RateLimitInfo
type StrategyFunc func(int) RetryStrategy

// DefaultStrategy retries 429/503 with Retry-After awareness and
// 408/500/502/504 conservatively; anything else is not retried.
func DefaultStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return SmartRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return ConservativeRetry
	default:
		return NoRetry
	}
}

// Client wraps http.Client with retry and backoff capabilities.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	headerParser HeaderParser
	strategyFunc StrategyFunc
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

func WithMaxDelay(delay time.Duration) Option {
	return func(c *Client) { c.maxDelay = delay }
}

func WithHeaderParser(parser HeaderParser) Option {
	return func(c *Client) { c.headerParser = parser }
}

func WithRetryStrategy(fn StrategyFunc) Option {
	return func(c *Client) { c.strategyFunc = fn }
}

// TLSConfig configures outbound TLS for corporate proxies or self-signed
// provider endpoints.
type TLSConfig struct {
	InsecureSkipVerify bool
	CACertificate      string
}

// ConfigureTLS builds an *http.Transport from a TLSConfig.
func ConfigureTLS(cfg *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	if cfg == nil {
		return transport, nil
	}
	if cfg.CACertificate != "" {
		caCert, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate from %s", cfg.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
		slog.Warn("TLS certificate verification disabled; do not use in production")
	}
	return transport, nil
}

func WithTLSConfig(cfg *TLSConfig) Option {
	return func(c *Client) {
		transport, err := ConfigureTLS(cfg)
		if err != nil {
			slog.Warn("failed to configure TLS, using default transport", "error", err)
			return
		}
		if c.client == nil {
			c.client = &http.Client{Timeout: 60 * time.Second}
		}
		c.client.Transport = transport
	}
}

// New builds a Client with defaults matching the Embedding Client
// contract (spec §4.6): 3 retries, 1s base backoff.
func New(opts ...Option) *Client {
	c := &Client{
		client:       &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		baseDelay:    1 * time.Second,
		maxDelay:     30 * time.Second,
		strategyFunc: DefaultStrategy,
		headerParser: ParseRetryAfter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RetryableError is returned when all retries are exhausted.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d: %s (retry after %v)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Do executes req with retry/backoff, replaying the body on each attempt.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var lastResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, strategy, info, err := c.attempt(req)
		if strategy == NoRetry {
			return resp, err
		}
		lastResp, lastErr = resp, err

		if attempt >= c.maxRetries {
			break
		}

		delay := c.calculateDelay(strategy, attempt, info)
		if delay <= 0 {
			break
		}
		c.logRetry(strategy, delay, attempt, resp)

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}

	statusCode := 0
	if lastResp != nil {
		statusCode = lastResp.StatusCode
	}
	return lastResp, &RetryableError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
		Err:        lastErr,
	}
}

func (c *Client) attempt(req *http.Request) (*http.Response, RetryStrategy, RateLimitInfo, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ConservativeRetry, RateLimitInfo{}, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, RateLimitInfo{}, nil
	}

	var info RateLimitInfo
	if c.headerParser != nil {
		info = c.headerParser(resp.Header)
	}
	strategy := c.strategyFunc(resp.StatusCode)
	if strategy == NoRetry {
		// Non-retryable statuses are handed back as a normal response
		// so the caller can classify them itself.
		return resp, NoRetry, info, nil
	}
	return resp, strategy, info, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func (c *Client) calculateDelay(strategy RetryStrategy, attempt int, info RateLimitInfo) time.Duration {
	switch strategy {
	case SmartRetry:
		if info.RetryAfter > 0 {
			return min(info.RetryAfter, c.maxDelay)
		}
		delay := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
		return min(delay+jitter, c.maxDelay)
	case ConservativeRetry:
		delay := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		return min(delay, c.maxDelay)
	default:
		return 0
	}
}

func (c *Client) logRetry(strategy RetryStrategy, delay time.Duration, attempt int, resp *http.Response) {
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	slog.Info("retrying HTTP request", "status", statusCode, "delay", delay, "attempt", attempt+1, "max", c.maxRetries)
}
