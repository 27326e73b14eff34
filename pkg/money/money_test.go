package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsFromDecimalString(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"-45.00", -4500},
		{"1000.00", 100000},
		{"0.01", 1},
		{"-0.01", -1},
		{"12.345", 1235}, // rounds half-up
		{"7", 700},
	}

	for _, tt := range tests {
		cents, err := CentsFromDecimalString(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, cents, tt.input)
	}
}

func TestCentsFromDecimalString_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "12.3.4", "$45.00"} {
		_, err := CentsFromDecimalString(input)
		assert.Error(t, err, input)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, cents := range []int64{-4500, 0, 1, 99, 123456789} {
		d := DecimalFromCents(cents)
		assert.Equal(t, cents, CentsFromDecimal(d))
	}
}

func TestDecimalFromCents(t *testing.T) {
	assert.True(t, decimal.RequireFromString("-45.00").Equal(DecimalFromCents(-4500)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "-$45.00", Format(-4500, "USD"))
	assert.Equal(t, "$1,000.00", Format(100000, ""))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, int64(4500), Abs(-4500))
	assert.Equal(t, int64(4500), Abs(4500))
	assert.Equal(t, int64(0), Abs(0))
}
