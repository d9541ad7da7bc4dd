// Package client provides the Data Garden HTTP transport: token
// authentication, JSON requests, error classification and an optional Redis
// response cache. It performs no retries and no rate limiting.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/datagarden-client/pkg/cache"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datagarden_requests_total",
		Help: "Total Data Garden API requests by method and status",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datagarden_request_duration_seconds",
		Help:    "Data Garden API request duration in seconds by method",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datagarden_errors_total",
		Help: "Total Data Garden API errors by class",
	}, []string{"class"})
)

const (
	// TokenPath is the token endpoint relative to the base URL.
	TokenPath = "user/token/"

	// HeaderRequestID carries the per-request correlation id.
	HeaderRequestID = "X-Request-ID"

	maxErrorBody = 4 << 10
)

// Client is the Data Garden API client.
//
// Token acquisition is serialised internally, so a Client may be shared by
// several goroutines.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger

	tokenMu     sync.Mutex
	accessToken string
}

// Request describes one API call.
type Request struct {
	// URLExtension is a path relative to the base URL, or an absolute URL as
	// found in pagination links.
	URLExtension string

	// Method is GET or POST.
	Method string

	// Payload is JSON-encoded as the POST body.
	Payload any

	// Params are added to the query string.
	Params url.Values
}

// New creates a new Data Garden client.
func New(cfg Config) (*Client, error) {
	cfg.BaseURL = normalizeBaseURL(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrMissingCredentials)
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		config:     cfg,
		logger:     log.With().Str("component", "datagarden-client").Logger(),
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// URL returns the absolute URL for an extension. Relative extensions get a
// trailing slash; absolute URLs are returned unchanged.
func (c *Client) URL(extension string) string {
	if strings.HasPrefix(extension, "http://") || strings.HasPrefix(extension, "https://") {
		return extension
	}
	u := c.config.BaseURL + strings.TrimPrefix(extension, "/")
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// Retrieve performs a GET or POST request and returns the raw response.
// Responses with status >= 400 are closed and returned as *APIError.
func (c *Client) Retrieve(ctx context.Context, r Request) (*http.Response, error) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, r.Method)
	}

	var body []byte
	if method == http.MethodPost && r.Payload != nil {
		var err error
		body, err = json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, method, c.URL(r.URLExtension), r.Params, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	cacheKey := cache.CacheKey{
		Method:      method,
		Endpoint:    req.URL.Path,
		QueryParams: req.URL.Query(),
		Payload:     body,
		Scope:       c.config.Email,
	}
	if c.cache != nil {
		entry, err := c.cache.Lookup(ctx, cacheKey)
		switch {
		case err == nil:
			now := time.Now()
			c.logger.Debug().
				Str("method", method).
				Str("endpoint", req.URL.Path).
				Dur("age", entry.Age(now)).
				Msg("Serving response from cache")
			requestsTotal.WithLabelValues(method, "cached").Inc()
			return entry.Response(now), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", req.URL.Path).Msg("Cache get error")
		}
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		now := time.Now()
		entry, err := cache.EntryFromResponse(resp, c.config.CacheTTL, now)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Store(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", req.URL.Path).
				Dur("ttl", entry.Remaining(now)).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// ClearCache drops every response cached for this account and returns how
// many entries were removed. Without a cache it does nothing.
func (c *Client) ClearCache(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	n, err := c.cache.Clear(ctx, c.config.Email)
	if err != nil {
		return n, fmt.Errorf("clear cache: %w", err)
	}
	c.logger.Info().Int("entries", n).Msg("Cleared response cache")
	return n, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, params url.Values, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(params) > 0 {
		q := req.URL.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req once and converts transport and HTTP failures to *APIError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	method := req.Method
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", req.URL.Path).
		Str("request_id", req.Header.Get(HeaderRequestID)).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(method, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", req.URL.Path).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Method:     method,
			URL:        req.URL.String(),
			Message:    "request failed",
			Err:        err,
		}
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", req.URL.Path).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("request_id", req.Header.Get(HeaderRequestID)).
			Msg("Data Garden request error")

		message := strings.TrimSpace(string(msg))
		if message == "" {
			message = resp.Status
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Method:     method,
			URL:        req.URL.String(),
			Message:    message,
		}
	}

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, urlExtension string, params url.Values, out any) error {
	resp, err := c.Retrieve(ctx, Request{URLExtension: urlExtension, Method: http.MethodGet, Params: params})
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// PostJSON performs a POST request with a JSON payload and decodes the JSON
// body into out.
func (c *Client) PostJSON(ctx context.Context, urlExtension string, payload any, out any) error {
	resp, err := c.Retrieve(ctx, Request{URLExtension: urlExtension, Method: http.MethodPost, Payload: payload})
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// decodeJSON closes resp. An empty body yields ErrNoContent.
func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return ErrNoContent
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close releases idle connections. A Redis client passed in Config is left
// open; it belongs to the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
