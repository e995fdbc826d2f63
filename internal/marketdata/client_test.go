package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(HTTPConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
}

func TestHTTPClient_Prices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock-prices" {
			t.Errorf("path = %q, want /stock-prices", r.URL.Path)
		}
		if got := r.URL.Query().Get("identifier"); got != "AAPL" {
			t.Errorf("identifier = %q, want AAPL", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q, want test-key", got)
		}
		fmt.Fprint(w, `[
			{"trading_symbol":"AAPL","date":"2026-08-27","open_price":"229.10","highest_price":"232.40","lowest_price":"228.05","close_price":"231.59","volume":51230000},
			{"trading_symbol":"AAPL","date":"2026-08-26","open_price":"227.00","highest_price":"230.00","lowest_price":"226.10","close_price":"229.31","volume":48110000}
		]`)
	})

	prices, err := client.Prices(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Prices() error = %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("len(prices) = %d, want 2", len(prices))
	}
	if prices[0].Close.String() != "231.59" {
		t.Errorf("close = %s, want 231.59", prices[0].Close)
	}
	if prices[0].Volume != 51230000 {
		t.Errorf("volume = %d, want 51230000", prices[0].Volume)
	}
}

func TestHTTPClient_Prices_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	_, err := client.Prices(context.Background(), "NOPE")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Prices() error = %v, want ErrNotFound", err)
	}
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"404 maps to NotFound", http.StatusNotFound, ErrNotFound},
		{"429 maps to RateLimited", http.StatusTooManyRequests, ErrRateLimited},
		{"500 maps to Unavailable", http.StatusInternalServerError, ErrUnavailable},
		{"503 maps to Unavailable", http.StatusServiceUnavailable, ErrUnavailable},
		{"401 maps to Unavailable", http.StatusUnauthorized, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.Ratios(context.Background(), "AAPL")
			if !errors.Is(err, tt.want) {
				t.Errorf("Ratios() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPClient_Symbols_Limit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"trading_symbol":"AAPL","registrant_name":"Apple Inc."},
			{"trading_symbol":"MSFT","registrant_name":"Microsoft Corp."},
			{"trading_symbol":"NVDA","registrant_name":"NVIDIA Corp."}
		]`)
	})

	symbols, err := client.Symbols(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("Symbols() error = %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("len(symbols) = %d, want 2", len(symbols))
	}
	if symbols[0].Symbol != "AAPL" {
		t.Errorf("first symbol = %q, want AAPL", symbols[0].Symbol)
	}
}

func TestHTTPClient_CacheServesRepeats(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"trading_symbol":"AAPL","price_earnings_ratio":"29.4"}]`)
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPConfig{
		APIKey:   "k",
		BaseURL:  srv.URL,
		CacheTTL: time.Minute,
	})

	for i := 0; i < 3; i++ {
		if _, err := client.Ratios(context.Background(), "AAPL"); err != nil {
			t.Fatalf("Ratios() call %d error = %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (cache should absorb repeats)", got)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrRateLimited) || !Retryable(ErrUnavailable) {
		t.Error("rate limited and unavailable should be retryable")
	}
	if Retryable(ErrNotFound) {
		t.Error("not found must not be retryable")
	}
}
