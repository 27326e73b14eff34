package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "STARBUCKS STORE 1234", CleanDescription("  STARBUCKS   STORE  1234 "))
	assert.Equal(t, "", CleanDescription("   "))
}

func TestDeriveMerchant(t *testing.T) {
	opts := DefaultMerchantOptions()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"star separator", "AMAZON*MARKETPLACE 1234", "AMAZON"},
		{"hash separator", "WALMART #2271 AUSTIN TX", "WALMART"},
		{"no separator", "LOCAL COFFEE SHOP", "LOCAL COFFEE SHOP"},
		{"slash separator", "PAYPAL/STEAM GAMES", "PAYPAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveMerchant(tt.input, opts))
		})
	}
}

func TestDeriveMerchantTruncates(t *testing.T) {
	opts := MerchantOptions{Separators: "*#/", MaxLength: 10}
	got := DeriveMerchant("A VERY LONG MERCHANT NAME INDEED", opts)
	assert.LessOrEqual(t, len(got), 10)
}
