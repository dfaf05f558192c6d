package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"github.com/aryan0dhankhar/churchconsole/internal/observability/metrics"
	"github.com/aryan0dhankhar/churchconsole/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/churchconsole/internal/reliability/retry"
	"github.com/aryan0dhankhar/churchconsole/internal/security/audit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	loginPath = "/auth/login"
	renewPath = "/auth/renew-token"

	// DefaultRetryAfter is reported when a 429 carries no usable Retry-After
	DefaultRetryAfter = 60 * time.Second
)

// Config configures the remote API client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Breaker   *circuitbreaker.CircuitBreaker
	Retry     *retry.Config
}

// Client talks to the remote REST API
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	logger  *slog.Logger
}

// StatusError is a non-2xx answer from the remote API
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Code)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Code, e.Message)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// NewTransport instruments base with tracing and client metrics
func NewTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(metrics.InstrumentRoundTripper(base))
}

// NewClient creates a client for the API at cfg.BaseURL
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = NewTransport(nil)
	}
	if cfg.Breaker == nil {
		cfg.Breaker = circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	}
	retryCfg := retry.DefaultConfig()
	if cfg.Retry != nil {
		copied := *cfg.Retry
		retryCfg = &copied
	}
	retryCfg.Retryable = isTransportError

	cfg.Breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		metrics.SetAPICircuitState(to.String())
		logger.Warn("api circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: cfg.Breaker,
		retry:   retryCfg,
		logger:  logger,
	}, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Transport returns the round tripper requests are sent through
func (c *Client) Transport() http.RoundTripper {
	return c.http.Transport
}

// Login exchanges credentials for a token and user profile
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	resp, err := c.send(ctx, http.MethodPost, loginPath, creds, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		return nil, &domain.RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}

	var result domain.LoginResult
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RenewToken trades a still-valid token for a fresh one.
// 401 and 403 map to domain.ErrRefreshRejected.
func (c *Client) RenewToken(ctx context.Context, token string) (string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	resp, err := c.send(ctx, http.MethodPost, renewPath, nil, header)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", domain.ErrRefreshRejected
	}

	var out tokenResponse
	if err := parseResponse(resp, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Do sends a JSON request and decodes a JSON response into out.
// GET requests are retried on transport errors.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	attempt := func(ctx context.Context) (struct{}, error) {
		resp, err := c.send(ctx, method, path, body, nil)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		return struct{}{}, parseResponse(resp, out)
	}

	if method != http.MethodGet {
		_, err := attempt(ctx)
		return err
	}
	_, err := retry.Do(ctx, c.retry, c.logger, "GET "+path, attempt)
	return err
}

// Get fetches path and decodes the JSON answer into out
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, header http.Header) (*http.Response, error) {
	if !c.breaker.AllowRequest() {
		return nil, domain.ErrCircuitOpen
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := audit.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	applyScope(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTransportError(err) {
			c.breaker.RecordFailure()
		}
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	return resp, nil
}

func (c *Client) resolve(path string) string {
	u := *c.baseURL
	rel, err := url.Parse(path)
	if err != nil {
		return u.String() + path
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return u.String()
}

// parseResponse parses the response body into the target struct
func parseResponse(resp *http.Response, target interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Error != "" {
				return &StatusError{Code: resp.StatusCode, Message: errResp.Error}
			}
			if errResp.Message != "" {
				return &StatusError{Code: resp.StatusCode, Message: errResp.Message}
			}
		}
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// parseRetryAfter accepts delay-seconds or an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}

// isTransportError reports failures below HTTP: dial, reset, timeout.
// Session and circuit errors are never transport errors.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionEnded),
		errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrRefreshUnavailable),
		errors.Is(err, domain.ErrCircuitOpen),
		errors.Is(err, context.Canceled):
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
