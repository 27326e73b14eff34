package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	opts := DefaultAmountOptions()

	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"plain", "42.50", 4250},
		{"negative prefix", "-12.00", -1200},
		{"parentheses negative", "(99.99)", -9999},
		{"thousands separator", "1,234.56", 123456},
		{"currency symbol", "$45.00", 4500},
		{"negative with symbol", "-$45.00", -4500},
		{"whole number", "7", 700},
		{"leading plus", "+3.25", 325},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmountEuropean(t *testing.T) {
	opts := DefaultAmountOptions()
	opts.ThousandsSeparator = '.'
	opts.DecimalSeparator = ','
	opts.CurrencyPrefix = "€"

	got, err := ParseAmount("€1.234,56", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), got)

	got, err = ParseAmount("-15,00", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(-1500), got)
}

func TestParseAmountInvert(t *testing.T) {
	opts := DefaultAmountOptions()
	opts.Invert = true

	got, err := ParseAmount("25.00", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(-2500), got)
}

func TestParseAmountErrors(t *testing.T) {
	opts := DefaultAmountOptions()

	for _, input := range []string{"", "abc", "12.34.56", "(12.00"} {
		_, err := ParseAmount(input, opts)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseDebitCredit(t *testing.T) {
	opts := DefaultAmountOptions()

	got, err := ParseDebitCredit("50.00", "", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), got, "debit should be negative")

	got, err = ParseDebitCredit("", "120.00", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), got, "credit should be positive")

	_, err = ParseDebitCredit("", "", opts)
	assert.Error(t, err, "both columns empty")
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "42.50", FormatCents(4250))
	assert.Equal(t, "-0.05", FormatCents(-5))
	assert.Equal(t, "0.00", FormatCents(0))
}
