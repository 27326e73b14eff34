// Package money provides currency-safe financial arithmetic using integer cents.
// Amounts are stored as minor units (cents) everywhere; decimal conversion happens
// only at parse and display boundaries.
package money

import (
	"fmt"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a statement carries no currency hint.
const DefaultCurrency = "USD"

// CentsFromDecimalString converts a plain decimal string ("-45.00") to cents.
// The caller is responsible for stripping currency prefixes and thousands
// separators first; this function is strict on purpose so malformed rows
// surface as row errors instead of silently importing wrong amounts.
func CentsFromDecimalString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return CentsFromDecimal(d), nil
}

// CentsFromDecimal converts a decimal amount to cents, rounding half-up.
func CentsFromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.New(1, 2)).Round(0).IntPart()
}

// DecimalFromCents converts cents back to a two-place decimal.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents with the currency's display rules ("-$45.00").
func Format(cents int64, currencyCode string) string {
	if currencyCode == "" {
		currencyCode = DefaultCurrency
	}
	return gomoney.New(cents, currencyCode).Display()
}

// Abs returns the absolute value of an amount in cents.
func Abs(cents int64) int64 {
	if cents < 0 {
		return -cents
	}
	return cents
}
