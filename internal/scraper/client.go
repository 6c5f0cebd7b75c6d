// Package scraper calls the external LinkedIn-scraping workflow provider
// and translates its wire format into canonical model records.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hirewell/profile-ingest/internal/resilience"
)

// Client is a rate-limited, retrying HTTP client for the external scraper's
// profile and company endpoints.
type Client struct {
	httpClient  *http.Client
	profileURL  string
	companyURL  string
	limiter     *rate.Limiter
	retryConfig resilience.RetryConfig
}

// Config configures a Client.
type Config struct {
	ProfileURL         string
	CompanyURL         string
	TimeoutSeconds     int
	MaxRetries         int
	BackoffFactor      float64
	RateLimitPerMinute int
}

// NewClient builds a Client per §4.3/§4.8: exponential backoff with jitter
// capped at 30s, overall 300s budget, and a shared rate limiter across
// profile and company calls sized from SCRAPER_RATE_LIMIT (calls/minute).
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	limit := rate.Limit(float64(perMinute) / 60.0)

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.BackoffFactor > 0 {
		retry.Multiplier = cfg.BackoffFactor
	}
	retry.MaxBackoff = 30 * time.Second

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		profileURL:  cfg.ProfileURL,
		companyURL:  cfg.CompanyURL,
		limiter:     rate.NewLimiter(limit, perMinute),
		retryConfig: retry,
	}
}

// FetchProfile calls the scraper's profile endpoint for the given canonical
// LinkedIn profile URL and returns the raw decoded payload.
func (c *Client) FetchProfile(ctx context.Context, linkedinURL string) (map[string]any, error) {
	return c.fetch(ctx, c.profileURL, linkedinURL, "profile")
}

// FetchCompany calls the scraper's company endpoint for the given company
// LinkedIn URL and returns the raw decoded payload.
func (c *Client) FetchCompany(ctx context.Context, companyURL string) (map[string]any, error) {
	return c.fetch(ctx, c.companyURL, companyURL, "company")
}

// Ping checks that the scraper's profile endpoint is reachable, for the
// §6.1 health check. It does not consume the rate limiter or retry budget
// since it is a liveness probe, not a real fetch.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.profileURL, nil)
	if err != nil {
		return eris.Wrap(err, "build scraper health request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "scraper health request")
	}
	defer resp.Body.Close()
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint, targetURL, kind string) (map[string]any, error) {
	body, err := json.Marshal(map[string]string{"url": targetURL})
	if err != nil {
		return nil, eris.Wrap(err, "scraper: encode request")
	}

	retryCfg := c.retryConfig
	retryCfg.OnRetry = resilience.RetryLogger("scraper", "fetch_"+kind)

	// The client timeout is also the overall budget across all attempts.
	ctx, cancel := context.WithTimeout(ctx, c.httpClient.Timeout)
	defer cancel()

	payload, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (map[string]any, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "scraper: rate limiter wait")
		}

		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "scraper: build request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			zap.L().Warn("scraper request failed",
				zap.String("kind", kind), zap.String("url", targetURL), zap.Error(err), zap.Duration("elapsed", elapsed))
			return nil, resilience.NewTransientError(eris.Wrap(err, "scraper: http request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, readErr := io.ReadAll(resp.Body)
		zap.L().Info("scraper request completed",
			zap.String("kind", kind), zap.String("url", targetURL),
			zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed))

		if resp.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{URL: targetURL}
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(eris.Errorf("scraper: status %d", resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("scraper: unexpected status %d from %s", resp.StatusCode, targetURL)
		}
		if readErr != nil {
			return nil, eris.Wrap(readErr, "scraper: read response body")
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, eris.Wrap(err, "scraper: decode response json")
		}
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// NotFoundError indicates the scraper reported that the remote resource
// does not exist. It is a terminal (non-transient) condition.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return "scraper: not found: " + e.URL
}
