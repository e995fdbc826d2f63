package marketdata

import "github.com/shopspring/decimal"

// Symbol is one entry of the traded-symbol listing.
type Symbol struct {
	Symbol string `json:"trading_symbol"`
	Name   string `json:"registrant_name"`
}

// Price is one daily price record for a symbol.
type Price struct {
	Symbol string          `json:"trading_symbol"`
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open_price"`
	High   decimal.Decimal `json:"highest_price"`
	Low    decimal.Decimal `json:"lowest_price"`
	Close  decimal.Decimal `json:"close_price"`
	Volume int64           `json:"volume"`
}

// Ratios holds the latest financial ratios for a symbol.
type Ratios struct {
	Symbol           string          `json:"trading_symbol"`
	PriceEarnings    decimal.Decimal `json:"price_earnings_ratio"`
	PriceToBook      decimal.Decimal `json:"price_book_ratio"`
	PriceToSales     decimal.Decimal `json:"price_sales_ratio"`
	DebtToEquity     decimal.Decimal `json:"debt_equity_ratio"`
	ReturnOnEquity   decimal.Decimal `json:"return_on_equity"`
	CurrentRatio     decimal.Decimal `json:"current_ratio"`
	GrossMargin      decimal.Decimal `json:"gross_margin"`
	OperatingMargin  decimal.Decimal `json:"operating_margin"`
	DividendYield    decimal.Decimal `json:"dividend_yield"`
	EarningsPerShare decimal.Decimal `json:"earnings_per_share"`
}

// IncomeStatement is one fiscal-period income statement.
type IncomeStatement struct {
	Symbol          string          `json:"trading_symbol"`
	FiscalYear      int             `json:"fiscal_year"`
	Revenue         decimal.Decimal `json:"revenue"`
	OperatingIncome decimal.Decimal `json:"operating_income"`
	NetIncome       decimal.Decimal `json:"net_income"`
}
