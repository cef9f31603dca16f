// Package exchange supplies CNY-relative exchange rates with a short-lived
// cache and a static fallback table.
package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateSource loads the latest exchange rate table. Rates are expressed
// relative to CNY: amountInCurrency = amountInCNY * rate.
type RateSource interface {
	LoadRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// FallbackRates is the static table used when no live rates have ever been
// fetched. Stale but serviceable: a missing rate must never block an
// expense submission.
var FallbackRates = map[string]decimal.Decimal{
	"CNY": decimal.NewFromInt(1),
	"USD": decimal.RequireFromString("0.14"),
	"EUR": decimal.RequireFromString("0.13"),
	"GBP": decimal.RequireFromString("0.11"),
	"JPY": decimal.RequireFromString("20.50"),
	"HKD": decimal.RequireFromString("1.09"),
	"SGD": decimal.RequireFromString("0.19"),
	"KRW": decimal.RequireFromString("185.00"),
	"THB": decimal.RequireFromString("5.00"),
	"MYR": decimal.RequireFromString("0.65"),
	"AUD": decimal.RequireFromString("0.21"),
	"CAD": decimal.RequireFromString("0.19"),
	"CHF": decimal.RequireFromString("0.12"),
	"TWD": decimal.RequireFromString("4.50"),
	"INR": decimal.RequireFromString("11.70"),
	"RUB": decimal.RequireFromString("12.50"),
}
