package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/publication-aggregator/internal/domain"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// RetryDelay is the base delay between retries; the actual delay doubles
	// on each attempt.
	RetryDelay time.Duration

	// RateLimitDelay is the minimum delay after an explicit throttling
	// response (429), applied when the source sends no Retry-After header.
	// It should be longer than RetryDelay.
	RateLimitDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with rate limiting and retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client applies rate limiting before each attempt and retries transient
// failures with exponential backoff: network errors and 5xx responses use the
// base delay doubled per attempt; 429 responses honor Retry-After and
// otherwise wait at least RateLimitDelay.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	// Apply defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RateLimitDelay == 0 {
		cfg.RateLimitDelay = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-PublicationAggregator/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes an HTTP request with rate limiting and retries.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := c.waitForRetry(req.Context(), c.backoffDelay(attempt)); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, lastErr)
		}

		if c.shouldRetry(resp.StatusCode) {
			retryDelay := c.retryDelayFor(resp, attempt)

			// Drain and close the response body to free the connection.
			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			if attempt < c.config.MaxRetries {
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}

			// Max retries exhausted; classify by the final response, not by
			// earlier attempts that may have failed differently.
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, domain.NewRateLimitError(req.URL.Host, retryDelay)
			}
			return nil, fmt.Errorf("%w: max retries exhausted after %d attempts, last status: %d",
				domain.ErrSourceUnavailable, c.config.MaxRetries+1, resp.StatusCode)
		}

		// Success or non-retryable error.
		return resp, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// shouldRetry returns true if the status code indicates a retryable failure:
// 429 Too Many Requests or any 5xx server error.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// backoffDelay returns the exponential backoff delay for the given attempt:
// RetryDelay doubled per completed attempt.
func (c *HTTPClient) backoffDelay(attempt int) time.Duration {
	delay := c.config.RetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// retryDelayFor determines how long to wait before retrying a response.
// Retry-After is honored when present. Bare 429s wait at least
// RateLimitDelay; generic 5xx responses use the exponential backoff.
func (c *HTTPClient) retryDelayFor(resp *http.Response, attempt int) time.Duration {
	if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		return d
	}

	delay := c.backoffDelay(attempt)
	if resp.StatusCode == http.StatusTooManyRequests && delay < c.config.RateLimitDelay {
		return c.config.RateLimitDelay
	}
	return delay
}

// parseRetryAfter parses a Retry-After header as either seconds or HTTP date.
func parseRetryAfter(retryAfter string) (time.Duration, bool) {
	if retryAfter == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second, true
		}
		return 0, false
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay, true
		}
	}

	return 0, false
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
