package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer/parser"
)

const simpleCSV = `Date,Amount,Description
2024-03-15,-42.50,STARBUCKS STORE 1234
2024-03-16,1500.00,ACME CORP PAYROLL
2024-03-17,-12.99,NETFLIX.COM
`

func TestAnalyze(t *testing.T) {
	overview, err := Analyze([]byte(simpleCSV), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, ',', int32(overview.Delimiter))
	assert.Equal(t, 0, overview.SkipRows)
	assert.Equal(t, []string{"Date", "Amount", "Description"}, overview.Headers)
	assert.Len(t, overview.SampleRows, 3)
	assert.NotEmpty(t, overview.Fingerprint)
}

func TestAnalyzeEmptyFile(t *testing.T) {
	_, err := Analyze([]byte("  \n "), DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestAnalyzeMetadataPreamble(t *testing.T) {
	data := []byte("Account Statement for 12345\nExported 2024-04-01\n\n" + simpleCSV)

	overview, err := Analyze([]byte(data), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, overview.SkipRows)
	assert.Equal(t, []string{"Date", "Amount", "Description"}, overview.Headers)
}

func TestAnalyzeFingerprintStable(t *testing.T) {
	a, err := Analyze([]byte(simpleCSV), DefaultOptions())
	require.NoError(t, err)
	b, err := Analyze([]byte("date, amount, description\n2024-01-01,1.00,X\n"), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint, "fingerprint normalizes case and spacing")
}

func TestDetectSimple(t *testing.T) {
	cfg, err := Detect([]byte(simpleCSV), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.DateCol)
	assert.Equal(t, 1, cfg.AmountCol)
	assert.Equal(t, 2, cfg.DescCol)
	assert.Equal(t, "2006-01-02", cfg.DateLayout)
	assert.Equal(t, parser.SignNegativePrefix, cfg.SignConvention)
	assert.InDelta(t, 1.0, cfg.Completeness, 0.001)
}

func TestDetectDebitCredit(t *testing.T) {
	data := []byte(`Booking Date;Money Out;Money In;Details
15/03/2024;42,50;;SUPERMARKT BERLIN
16/03/2024;;1.500,00;GEHALT MAERZ
17/03/2024;9,99;;SPOTIFY AB
`)

	cfg, err := Detect(data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, ';', int32(cfg.Delimiter))
	assert.True(t, cfg.IsDoubleEntry)
	assert.Equal(t, 1, cfg.DebitCol)
	assert.Equal(t, 2, cfg.CreditCol)
	assert.Equal(t, 3, cfg.DescCol)
	assert.Equal(t, parser.SignPositiveDebit, cfg.SignConvention)
	assert.Equal(t, ',', int32(cfg.DecimalSeparator), "European decimal comma")
	assert.Equal(t, "02/01/2006", cfg.DateLayout, "day-first dates")
	assert.InDelta(t, 1.0, cfg.Completeness, 0.001)
}

func TestDetectUnhelpfulHeaders(t *testing.T) {
	data := []byte(`Col1,Col2,Col3
2024-03-15,-42.50,STARBUCKS STORE 1234
2024-03-16,1500.00,ACME CORP PAYROLL
2024-03-17,-12.99,NETFLIX.COM
`)

	cfg, err := Detect(data, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.DateCol, "date found by parse scoring")
	assert.Equal(t, 1, cfg.AmountCol, "amount found by numeric scoring")
	assert.Equal(t, 2, cfg.DescCol, "description is the textiest remaining column")
	assert.InDelta(t, 1.0, cfg.Completeness, 0.001)
}

func TestDetectOptionalRoles(t *testing.T) {
	data := []byte(`Date,Amount,Description,Reference,Category
2024-03-15,-42.50,COFFEE,REF-1,Dining
2024-03-16,-9.99,STREAMING,REF-2,Entertainment
`)

	cfg, err := Detect(data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.RefCol)
	assert.Equal(t, 4, cfg.CategoryCol)
}

func TestDetectPartialCompleteness(t *testing.T) {
	// No parseable amount anywhere: completeness drops by one role.
	data := []byte(`Date,Note,Description
2024-03-15,hello,STARBUCKS
2024-03-16,world,NETFLIX
`)

	cfg, err := Detect(data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.AmountCol)
	assert.False(t, cfg.IsDoubleEntry)
	assert.InDelta(t, 2.0/3.0, cfg.Completeness, 0.001)
}

func TestDetectCurrencyPrefix(t *testing.T) {
	data := []byte(`Date,Amount,Description
2024-03-15,-$42.50,COFFEE
2024-03-16,$1500.00,PAYROLL
`)

	cfg, err := Detect(data, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "$", cfg.CurrencyPrefix)
}

func TestDetectHeaderOverride(t *testing.T) {
	data := []byte("x\ny\nDate,Amount,Description\n2024-03-15,-1.00,A\n")

	opts := DefaultOptions()
	opts.HeaderRowIndex = 2
	cfg, err := Detect(data, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.SkipRows)
	assert.Equal(t, 0, cfg.DateCol)
}

func TestToCSVConfig(t *testing.T) {
	cfg, err := Detect([]byte(simpleCSV), DefaultOptions())
	require.NoError(t, err)

	parserCfg := cfg.ToCSVConfig(parser.DefaultMerchantOptions())
	require.NoError(t, parserCfg.Validate())

	result, err := parser.NewCSV(parserCfg).Parse([]byte(simpleCSV))
	require.NoError(t, err)
	assert.Len(t, result.Records, 3)
	assert.Empty(t, result.RowErrors)
}
