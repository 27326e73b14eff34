package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input  string
		layout string
		want   string
	}{
		{"2024-03-15", "", "2024-03-15"},
		{"15/03/2024", "02/01/2006", "2024-03-15"},
		{"03/15/2024", "01/02/2006", "2024-03-15"},
		{"15.03.2024", "", "2024-03-15"},
		{"Mar 15, 2024", "", "2024-03-15"},
		{"2024-03-15 14:30:00", "", "2024-03-15"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.input, tt.layout)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got.Format(time.DateOnly), "input %q", tt.input)
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, input := range []string{"", "not a date", "99/99/2024"} {
		_, err := ParseDate(input, "")
		assert.Error(t, err, "input %q", input)
	}
}

func TestDetectDateLayout(t *testing.T) {
	t.Run("iso", func(t *testing.T) {
		layout := DetectDateLayout([]string{"2024-01-05", "2024-01-06", "2024-02-10"})
		assert.Equal(t, "2006-01-02", layout)
	})

	t.Run("day first disambiguated by out-of-range month", func(t *testing.T) {
		layout := DetectDateLayout([]string{"13/01/2024", "25/01/2024", "02/02/2024"})
		assert.Equal(t, "02/01/2006", layout)
	})

	t.Run("no samples", func(t *testing.T) {
		assert.Empty(t, DetectDateLayout(nil))
	})
}
