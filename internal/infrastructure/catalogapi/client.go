// Package catalogapi queries a remote product catalog over HTTP
package catalogapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/productmatch/backend/internal/domain"
)

const (
	maxAttempts      = 3
	maxResponseBytes = 1 << 20
	maxErrorBodyLog  = 512
)

// Client handles communication with a remote catalog service
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	logger      *zap.Logger
	debug       bool
}

// Option customizes a Client
type Option func(*Client)

// WithRateLimit caps outgoing requests per second
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new catalog API client
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(20), 40),
		backoff:     exponentialBackoff,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDebug enables per-request debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		c.logger.Debug(fmt.Sprintf(format, args...))
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// LookupByGTIN fetches a product by canonical code. A 404 carrying a
// NotFoundResponse for the code means not catalogued.
func (c *Client) LookupByGTIN(ctx context.Context, code string) (*domain.ProductRecord, error) {
	canonical, ok := domain.NormalizeGTIN(code)
	if !ok {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/v1/products/%s", c.baseURL, url.PathEscape(canonical))
	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		var notFound NotFoundResponse
		if err := json.Unmarshal(body, &notFound); err != nil || notFound.GTIN != canonical {
			return nil, fmt.Errorf("%w: lookup endpoint answered 404 without a not-found body, check the base URL", domain.ErrIndexUnavailable)
		}
		c.debugLog("[CATALOG] GTIN %s not catalogued", canonical)
		return nil, nil
	}

	var resp ProductResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrIndexData, err)
	}
	rec := MapToProductRecord(resp.Product)
	return &rec, nil
}

// SearchByText returns ranked candidates for the query
func (c *Client) SearchByText(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	params := url.Values{}
	params.Add("q", query)
	if limit > 0 {
		params.Add("limit", strconv.Itoa(limit))
	}
	reqURL := fmt.Sprintf("%s/v1/products/search?%s", c.baseURL, params.Encode())

	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: search endpoint not found", domain.ErrIndexUnavailable)
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrIndexData, err)
	}

	candidates, err := MapSearchResponse(&resp)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	c.debugLog("[CATALOG] %d candidates for query %q", len(candidates), query)
	return candidates, nil
}

// get performs a GET with retries on transport errors, 429 and 5xx.
// It returns the body for 200 and 404 responses.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			var reqErr *requestError
			if errors.As(err, &reqErr) {
				return nil, 0, err
			}
			c.logger.Warn("catalog request failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		switch {
		case status == http.StatusOK || status == http.StatusNotFound:
			return body, status, nil
		case status == http.StatusTooManyRequests || status >= 500:
			c.logger.Warn("catalog request retryable status",
				zap.Int("attempt", attempt),
				zap.Int("status", status))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrIndexUnavailable, status)
			continue
		default:
			snippet := body
			if len(snippet) > maxErrorBodyLog {
				snippet = snippet[:maxErrorBodyLog]
			}
			return nil, status, fmt.Errorf("%w: status %d, body: %s", domain.ErrIndexUnavailable, status, snippet)
		}
	}

	c.debugLog("[CATALOG] all retries failed for %s", reqURL)
	if !errors.Is(lastErr, domain.ErrIndexUnavailable) {
		lastErr = fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, lastErr)
	}
	return nil, 0, lastErr
}

// requestError marks failures that retrying cannot fix
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// doRequest executes an HTTP GET request with proper headers
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, &requestError{fmt.Errorf("%w: failed to create request: %v", domain.ErrIndexUnavailable, err)}
	}
	req.Header.Set("User-Agent", "ProductMatch/1.0")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.debugLog("[CATALOG] GET %s", reqURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := readLimitedBody(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
