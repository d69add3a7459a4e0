// Package backend is the authenticated HTTP transport to the central POS backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout applies to every request without its own timeout
	DefaultTimeout = 30 * time.Second
	// HeartbeatTimeout is the fixed timeout for connectivity probes
	HeartbeatTimeout = 5 * time.Second

	defaultUserAgent = "kiosk-sync/1.0"
)

// Observer receives one call per HTTP attempt; status is 0 when no response arrived
type Observer interface {
	ObserveRequest(method string, status int, duration time.Duration)
}

// Config configures a backend client
type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	UserAgent string
	Retry     RetryConfig
	Logger    *logrus.Logger
	Observer  Observer
	// Transport overrides the underlying round tripper; nil uses http.DefaultTransport
	Transport http.RoundTripper
}

// DefaultConfig returns a configuration with default timeouts and retries
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:   baseURL,
		Timeout:   DefaultTimeout,
		UserAgent: defaultUserAgent,
		Retry:     DefaultRetryConfig(),
	}
}

// Request describes one logical backend call
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Headers      map[string]string
	Body         interface{}
	Timeout      time.Duration
	DisableRetry bool
}

// Response is a fully read backend response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// Decode unmarshals the body into v, unwrapping a {"data": ...} envelope if present
func (r *Response) Decode(v interface{}) error {
	return decodeBody(r.Body, v)
}

// Client performs authenticated requests with retry and backoff
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	auth       *authTransport
	retry      RetryConfig
	timeout    time.Duration
	userAgent  string
	logger     *logrus.Logger
	observer   Observer

	jitter func(max time.Duration) time.Duration
}

// NewClient creates a new backend client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("backend config is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("backend base URL must be absolute: %q", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	auth := &authTransport{base: base}

	c := &Client{
		baseURL: baseURL,
		// Per-attempt deadlines come from the request context
		httpClient: &http.Client{Transport: auth},
		auth:       auth,
		retry:      cfg.Retry.withDefaults(),
		timeout:    timeout,
		userAgent:  userAgent,
		logger:     logger,
		observer:   cfg.Observer,
		jitter:     randomJitter,
	}

	if cfg.Token != "" {
		c.SetToken(cfg.Token)
	}

	return c, nil
}

// SetToken replaces the bearer token used by subsequent requests
func (c *Client) SetToken(token string) {
	c.auth.setToken(token)

	if token == "" {
		c.logger.Debug("Backend token cleared")
		return
	}

	expiry, ok, err := TokenExpiry(token)
	switch {
	case err != nil:
		c.logger.WithError(err).Debug("Backend token is not a JWT, skipping expiry check")
	case !ok:
		c.logger.Debug("Backend token has no expiry")
	case time.Until(expiry) <= 0:
		c.logger.WithField("expired_at", expiry).Warn("Backend token is already expired")
	case time.Until(expiry) < 24*time.Hour:
		c.logger.WithField("expires_at", expiry).Warn("Backend token expires within 24 hours")
	default:
		c.logger.WithField("expires_at", expiry).Debug("Backend token set")
	}
}

// HasToken reports whether a bearer token is configured
func (c *Client) HasToken() bool {
	return c.auth.getToken() != ""
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do executes a request, retrying recoverable failures with exponential backoff
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	target := c.buildURL(req.Path, req.Query)

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	maxRetries := c.retry.MaxAttempts
	if req.DisableRetry {
		maxRetries = 0
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	requestID := uuid.NewString()
	started := time.Now()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.Delay(attempt, c.jitter)
			c.logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     req.Method,
				"path":       req.Path,
				"attempt":    attempt,
				"delay":      delay,
			}).Debug("Retrying backend request")

			if err := sleepContext(ctx, delay); err != nil {
				return nil, &RequestError{Method: req.Method, Path: req.Path, Err: err}
			}
		}

		resp, err := c.attempt(ctx, req, target, payload, timeout, requestID, attempt+1)
		if err == nil {
			resp.Attempts = attempt + 1
			resp.Duration = time.Since(started)
			return resp, nil
		}
		lastErr = err

		// Caller cancellation is never retried
		if ctx.Err() != nil {
			return nil, &RequestError{Method: req.Method, Path: req.Path, Err: ctx.Err()}
		}

		if !IsRetryable(err) {
			return nil, err
		}
	}

	if maxRetries > 0 {
		c.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     req.Method,
			"path":       req.Path,
			"attempts":   maxRetries + 1,
			"duration":   time.Since(started),
		}).WithError(lastErr).Error("Backend request failed after retries")
	}

	return nil, lastErr
}

// attempt performs a single HTTP exchange
func (c *Client) attempt(ctx context.Context, req Request, target string, payload []byte, timeout time.Duration, requestID string, n int) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	fields := logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"path":       req.Path,
		"attempt":    n,
		"duration":   duration,
	}

	if err != nil {
		c.observe(req.Method, 0, duration)
		c.logger.WithFields(fields).WithError(err).Warn("Backend request got no response")
		return nil, &RequestError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	c.observe(req.Method, httpResp.StatusCode, duration)
	fields["status"] = httpResp.StatusCode

	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("Failed to read backend response")
		return nil, &RequestError{Method: req.Method, Path: req.Path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.WithFields(fields).Warn("Backend request returned error status")
		return nil, &HTTPError{
			StatusCode: httpResp.StatusCode,
			Method:     req.Method,
			Path:       req.Path,
			Body:       respBody,
		}
	}

	c.logger.WithFields(fields).Debug("Backend request completed")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) observe(method string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, status, d)
	}
}

// buildURL appends path to the base URL path and encodes the query
func (c *Client) buildURL(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// authTransport attaches the current bearer token to every outgoing request
type authTransport struct {
	base http.RoundTripper

	mu    sync.RWMutex
	token string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.getToken()
	if token == "" {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

func (t *authTransport) setToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *authTransport) getToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// decodeBody unmarshals a JSON body, unwrapping a {"data": ...} envelope
func decodeBody(body []byte, v interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		body = envelope.Data
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
