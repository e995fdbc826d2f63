package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://financialdata.net/api/v1"

// HTTPConfig contains configuration for creating an HTTPClient.
type HTTPConfig struct {
	// APIKey authenticates requests via the "key" query parameter.
	APIKey string
	// BaseURL overrides the production API endpoint. Used in tests.
	BaseURL string
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// RequestsPerSecond limits outbound calls. Zero disables limiting.
	RequestsPerSecond float64
	// CacheTTL is how long responses are served from the in-process cache.
	// Zero disables caching.
	CacheTTL time.Duration
}

// HTTPClient implements Client against the financialdata.net REST API.
type HTTPClient struct {
	base     string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// NewHTTPClient creates a new market data client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPClient{
		base:     base,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
		cacheTTL: cfg.CacheTTL,
		cache:    make(map[string]cacheEntry),
	}
}

// Symbols implements Client.
func (c *HTTPClient) Symbols(ctx context.Context, offset, limit int) ([]Symbol, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", fmt.Sprint(offset))
	}
	var out []Symbol
	if err := c.get(ctx, "stock-symbols", params, &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prices implements Client.
func (c *HTTPClient) Prices(ctx context.Context, symbol string) ([]Price, error) {
	params := url.Values{}
	params.Set("identifier", symbol)
	var out []Price
	if err := c.get(ctx, "stock-prices", params, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no prices for %s", ErrNotFound, symbol)
	}
	return out, nil
}

// Ratios implements Client.
func (c *HTTPClient) Ratios(ctx context.Context, symbol string) (*Ratios, error) {
	params := url.Values{}
	params.Set("identifier", symbol)
	var out []Ratios
	if err := c.get(ctx, "financial-ratios", params, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no ratios for %s", ErrNotFound, symbol)
	}
	return &out[0], nil
}

// IncomeStatements implements Client.
func (c *HTTPClient) IncomeStatements(ctx context.Context, symbol string) ([]IncomeStatement, error) {
	params := url.Values{}
	params.Set("identifier", symbol)
	params.Set("period", "annual")
	var out []IncomeStatement
	if err := c.get(ctx, "income-statements", params, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no income statements for %s", ErrNotFound, symbol)
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	cacheKey := endpoint + "?" + params.Encode()
	if body, ok := c.cached(cacheKey); ok {
		return json.Unmarshal(body, out)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	params.Set("key", c.apiKey)
	params.Set("format", "json")
	reqURL := fmt.Sprintf("%s/%s?%s", c.base, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, endpoint, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, endpoint, err)
	}

	c.store(cacheKey, body)
	return nil
}

func (c *HTTPClient) cached(key string) ([]byte, bool) {
	if c.cacheTTL == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		delete(c.cache, key)
		return nil, false
	}
	return entry.body, true
}

func (c *HTTPClient) store(key string, body []byte) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{body: body, expires: time.Now().Add(c.cacheTTL)}
}
