package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/maxwell-labs/maxwells-wallet/pkg/money"
)

// SignConvention describes how a statement encodes debits.
type SignConvention string

const (
	// SignNegativePrefix: debits carry a literal minus sign (or parentheses).
	SignNegativePrefix SignConvention = "negative_prefix"
	// SignPositiveDebit: amounts are unsigned and debits are positive, either
	// in a dedicated debit column or via the Invert flag.
	SignPositiveDebit SignConvention = "positive_debit"
)

// AmountOptions configures the amount normalization pipeline.
type AmountOptions struct {
	Convention         SignConvention
	CurrencyPrefix     string // e.g. "$", "€"; stripped before parsing
	ThousandsSeparator rune   // ',' (US) or '.' (EU); 0 = none
	DecimalSeparator   rune   // '.' (US) or ',' (EU); 0 = '.'
	Invert             bool   // flip the sign after parsing (positive-debit single column)
}

// DefaultAmountOptions matches plain US-formatted signed amounts.
func DefaultAmountOptions() AmountOptions {
	return AmountOptions{
		Convention:         SignNegativePrefix,
		ThousandsSeparator: ',',
		DecimalSeparator:   '.',
	}
}

// ParseAmount normalizes an amount string to signed cents: currency prefix
// strip, thousands separator removal, decimal separator normalization, then
// exact decimal parsing.
func ParseAmount(s string, opts AmountOptions) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	if opts.CurrencyPrefix != "" {
		s = strings.TrimSpace(strings.ReplaceAll(s, opts.CurrencyPrefix, ""))
	}

	// Accounting-style negatives: (45.00)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	if opts.ThousandsSeparator != 0 {
		s = strings.ReplaceAll(s, string(opts.ThousandsSeparator), "")
	}
	if opts.DecimalSeparator != 0 && opts.DecimalSeparator != '.' {
		s = strings.ReplaceAll(s, string(opts.DecimalSeparator), ".")
	}

	cents, err := money.CentsFromDecimalString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}

	if negative {
		cents = -cents
	}
	if opts.Invert {
		cents = -cents
	}
	return cents, nil
}

// ParseDebitCredit normalizes separate debit/credit columns under the
// positive-debit convention: debits become negative, credits positive.
// Exactly one of the two is expected per row; when both are present the
// non-zero one wins, debit first.
func ParseDebitCredit(debit, credit string, opts AmountOptions) (int64, error) {
	debit = strings.TrimSpace(debit)
	credit = strings.TrimSpace(credit)
	if debit == "" && credit == "" {
		return 0, fmt.Errorf("no amount in debit or credit column")
	}

	if debit != "" {
		cents, err := ParseAmount(debit, opts)
		if err != nil {
			return 0, err
		}
		if cents != 0 {
			return -money.Abs(cents), nil
		}
	}

	cents, err := ParseAmount(credit, opts)
	if err != nil {
		return 0, err
	}
	return money.Abs(cents), nil
}

// FormatCents renders cents as a plain decimal string, the inverse of
// ParseAmount under DefaultAmountOptions without separators.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
