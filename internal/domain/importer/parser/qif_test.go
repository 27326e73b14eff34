package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQIF = `!Type:Bank
D03/15/2024
T-42.50
PSTARBUCKS STORE 1234
LDining
^
D03/16/2024
T1500.00
PACME CORP PAYROLL
N20240316-001
^
`

func TestQIFParse(t *testing.T) {
	result, err := NewQIF("01/02/2006", DefaultMerchantOptions()).Parse([]byte(sampleQIF))
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Empty(t, result.RowErrors)
	require.Len(t, result.Records, 2)

	first := result.Records[0]
	assert.Equal(t, "2024-03-15", first.Date.Format(time.DateOnly))
	assert.Equal(t, int64(-4250), first.AmountCents)
	assert.Equal(t, "STARBUCKS STORE 1234", first.Description)
	assert.Equal(t, "Dining", first.Category)

	second := result.Records[1]
	assert.Equal(t, int64(150000), second.AmountCents)
	assert.Equal(t, "20240316-001", second.Reference)
}

func TestQIFParseMemoFallback(t *testing.T) {
	qif := "!Type:Bank\nD03/15/2024\nT-10.00\nMCARD PAYMENT REF 991\n^\n"

	result, err := NewQIF("01/02/2006", DefaultMerchantOptions()).Parse([]byte(qif))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "CARD PAYMENT REF 991", result.Records[0].Description)
}

func TestQIFParseQuirkDates(t *testing.T) {
	qif := "!Type:Bank\nD1/ 2'24\nT-5.00\nPCOFFEE\n^\n"

	result, err := NewQIF("01/02/2006", DefaultMerchantOptions()).Parse([]byte(qif))
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "2024-01-02", result.Records[0].Date.Format(time.DateOnly))
}

func TestQIFParseMissingFinalCaret(t *testing.T) {
	qif := "!Type:Bank\nD03/15/2024\nT-5.00\nPCOFFEE\n"

	result, err := NewQIF("01/02/2006", DefaultMerchantOptions()).Parse([]byte(qif))
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestQIFParseBadRecords(t *testing.T) {
	qif := "!Type:Bank\nDgarbage\nT-5.00\nPCOFFEE\n^\nD03/15/2024\nTxx\nPTEA\n^\n"

	result, err := NewQIF("01/02/2006", DefaultMerchantOptions()).Parse([]byte(qif))
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Len(t, result.RowErrors, 2)
}

func TestQIFParseEmpty(t *testing.T) {
	_, err := NewQIF("", DefaultMerchantOptions()).Parse([]byte("just some text\n"))
	assert.Error(t, err)
}
