// Package ziplookup resolves US postal codes for addresses that lack one.
//
// The Client talks to a zipcodebase-style HTTP API, the Cache memoizes
// answers for the length of one pipeline run, and the Enricher walks an
// address column appending codes it can resolve.
package ziplookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/fuelclean/internal/logging"
)

// DefaultBaseURL is the zipcodebase city search endpoint.
const DefaultBaseURL = "https://app.zipcodebase.com/api/v1/code/city"

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxAttempts = 3
	maxBodyBytes       = 1 << 20
)

var (
	// ErrNoResult means the service answered but knows no code for the
	// city and state. It is not retried.
	ErrNoResult = errors.New("no postal code found")

	// ErrForbidden means the service rejected the API key. It is not retried.
	ErrForbidden = errors.New("lookup service rejected credentials")

	// ErrExhausted wraps the last error once every attempt has failed.
	ErrExhausted = errors.New("lookup attempts exhausted")
)

// Lookuper resolves a city and full state name to a postal code.
type Lookuper interface {
	Lookup(ctx context.Context, city, state string) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per attempt
	MaxAttempts int
	RateLimit   float64 // requests per second, 0 for no pacing

	// HTTPClient overrides the transport. Its own Timeout should be zero or
	// larger than Timeout.
	HTTPClient *http.Client
}

// Client queries the lookup service with a bounded timeout per attempt and
// immediate, constant-interval retries.
type Client struct {
	baseURL     string
	apiKey      string
	timeout     time.Duration
	maxAttempts int
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	c := &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		httpClient:  cfg.HTTPClient,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Lookup returns the first postal code the service reports for city and
// state. Timeouts, transport errors, undecodable bodies and unexpected
// statuses are retried up to the attempt limit; ErrNoResult and ErrForbidden
// end the lookup at once. Cancelling ctx also ends it.
func (c *Client) Lookup(ctx context.Context, city, state string) (string, error) {
	logger := logging.WithFields(ctx, "city", city, "state", state)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait failed: %w", err)
			}
		}

		logger.Debug("zip lookup attempt", "attempt", attempt)
		zip, err := c.attempt(ctx, city, state)
		if err == nil {
			return zip, nil
		}
		if errors.Is(err, ErrNoResult) || errors.Is(err, ErrForbidden) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		logger.Warn("zip lookup attempt failed", "attempt", attempt, "error", err)
	}

	return "", fmt.Errorf("%w: %d attempts: %w", ErrExhausted, c.maxAttempts, lastErr)
}

// lookupResponse is the subset of the service response we read.
type lookupResponse struct {
	Results []json.RawMessage `json:"results"`
}

func (c *Client) attempt(ctx context.Context, city, state string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Add("city", city)
	params.Add("country", "US")
	params.Add("state_name", state)
	params.Add("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNoResult
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(body.Results) == 0 {
		return "", ErrNoResult
	}

	zip, ok := parseResult(body.Results[0])
	if !ok {
		return "", ErrNoResult
	}
	return zip, nil
}

// parseResult accepts a bare string, a number, or an object carrying
// postal_code or code.
func parseResult(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return fmt.Sprintf("%05d", i), true
		}
		return n.String(), true
	}

	var obj struct {
		PostalCode string          `json:"postal_code"`
		Code       json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	if obj.PostalCode != "" {
		return obj.PostalCode, true
	}
	if len(obj.Code) > 0 && obj.Code[0] != '{' {
		return parseResult(obj.Code)
	}
	return "", false
}
