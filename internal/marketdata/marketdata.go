// Package marketdata provides the domain-data collaborator: structured
// financial queries (quotes, price history, statements) against a
// financialdata.net-style REST API.
package marketdata

import (
	"context"
	"errors"
)

// Kind identifies a structured query type.
type Kind string

const (
	// KindSymbols lists publicly traded symbols.
	KindSymbols Kind = "symbols"
	// KindPrices returns historical daily prices for one symbol.
	KindPrices Kind = "prices"
	// KindRatios returns the latest financial ratios for one symbol.
	KindRatios Kind = "ratios"
	// KindIncomeStatements returns income statements for one symbol.
	KindIncomeStatements Kind = "income-statements"
)

// Collaborator failure taxonomy. RateLimited and Unavailable are transient;
// NotFound is definitive and never retried.
var (
	// ErrNotFound indicates the symbol or dataset does not exist.
	ErrNotFound = errors.New("marketdata: not found")
	// ErrRateLimited indicates the provider rejected the call for quota reasons.
	ErrRateLimited = errors.New("marketdata: rate limited")
	// ErrUnavailable indicates the provider could not be reached or errored
	// server-side.
	ErrUnavailable = errors.New("marketdata: unavailable")
)

// Retryable reports whether a query error is transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// Client is the domain-data collaborator contract.
type Client interface {
	// Symbols lists up to limit traded symbols starting at offset.
	Symbols(ctx context.Context, offset, limit int) ([]Symbol, error)
	// Prices returns daily price records for the symbol, most recent first.
	Prices(ctx context.Context, symbol string) ([]Price, error)
	// Ratios returns the latest financial ratios for the symbol.
	Ratios(ctx context.Context, symbol string) (*Ratios, error)
	// IncomeStatements returns annual income statements, most recent first.
	IncomeStatements(ctx context.Context, symbol string) ([]IncomeStatement, error)
}
