package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCSVConfig() CSVConfig {
	cfg := DefaultCSVConfig()
	cfg.DateCol = 0
	cfg.AmountCol = 1
	cfg.DescCol = 2
	cfg.DateLayout = "2006-01-02"
	return cfg
}

func TestCSVParse(t *testing.T) {
	data := []byte("Date,Amount,Description\n" +
		"2024-03-15,-42.50,STARBUCKS STORE 1234\n" +
		"2024-03-16,1500.00,PAYROLL ACME CORP\n")

	result, err := NewCSV(testCSVConfig()).Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Empty(t, result.RowErrors)
	require.Len(t, result.Records, 2)

	first := result.Records[0]
	assert.Equal(t, "2024-03-15", first.Date.Format(time.DateOnly))
	assert.Equal(t, int64(-4250), first.AmountCents)
	assert.Equal(t, "STARBUCKS STORE 1234", first.Description)
	assert.Equal(t, 2, first.Row)
}

func TestCSVParseRowErrors(t *testing.T) {
	data := []byte("Date,Amount,Description\n" +
		"2024-03-15,-42.50,COFFEE\n" +
		"not-a-date,10.00,BAD ROW\n" +
		"2024-03-17,abc,WORSE ROW\n")

	result, err := NewCSV(testCSVConfig()).Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Len(t, result.Records, 1)
	require.Len(t, result.RowErrors, 2)
	assert.Equal(t, 3, result.RowErrors[0].Row)
	assert.Contains(t, result.RowErrors[0].Reason, "bad date")
	assert.Equal(t, 4, result.RowErrors[1].Row)
	assert.Contains(t, result.RowErrors[1].Reason, "bad amount")
}

func TestCSVParseDebitCredit(t *testing.T) {
	cfg := DefaultCSVConfig()
	cfg.DateCol = 0
	cfg.DebitCol = 1
	cfg.CreditCol = 2
	cfg.DescCol = 3
	cfg.DateLayout = "2006-01-02"
	cfg.Amount.Convention = SignPositiveDebit

	data := []byte("Date,Debit,Credit,Description\n" +
		"2024-03-15,42.50,,GROCERIES\n" +
		"2024-03-16,,1500.00,SALARY\n")

	result, err := NewCSV(cfg).Parse(data)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, int64(-4250), result.Records[0].AmountCents)
	assert.Equal(t, int64(15000*10), result.Records[1].AmountCents)
}

func TestCSVParseSkipRowsAndFooter(t *testing.T) {
	cfg := testCSVConfig()
	cfg.SkipRows = 2
	cfg.SkipFooterRows = 1

	data := []byte("Account Statement\n" +
		"Generated 2024-04-01\n" +
		"Date,Amount,Description\n" +
		"2024-03-15,-10.00,COFFEE\n" +
		"2024-03-16,-20.00,LUNCH\n" +
		"Total,,-30.00\n")

	result, err := NewCSV(cfg).Parse(data)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Empty(t, result.RowErrors)
}

func TestCSVParseBOMAndCRLF(t *testing.T) {
	data := []byte("\xEF\xBB\xBFDate,Amount,Description\r\n2024-03-15,-5.00,SNACK\r\n")

	result, err := NewCSV(testCSVConfig()).Parse(data)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(-500), result.Records[0].AmountCents)
}

func TestCSVConfigValidate(t *testing.T) {
	cfg := DefaultCSVConfig()
	assert.Error(t, cfg.Validate(), "nothing mapped")

	cfg.DateCol = 0
	cfg.DescCol = 2
	assert.Error(t, cfg.Validate(), "no amount mapping")

	cfg.AmountCol = 1
	assert.NoError(t, cfg.Validate())
}

func TestParseHeaderMapped(t *testing.T) {
	data := []byte("Date,Description,Amount\n" +
		"2024-03-15,STARBUCKS,-4.50\n" +
		"2024-03-16,PAYROLL,2000.00\n")

	result, err := ParseHeaderMapped(data, DefaultAmountOptions(), DefaultMerchantOptions())
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.Equal(t, int64(-450), result.Records[0].AmountCents)
	assert.Equal(t, "STARBUCKS", result.Records[0].Description)
}
