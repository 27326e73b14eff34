package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// CSVConfig is a finalized column mapping for the custom CSV path. Column
// indices are 0-based; -1 means the column is absent.
type CSVConfig struct {
	Delimiter      rune
	SkipRows       int // metadata rows before the header
	SkipFooterRows int // trailing summary rows to drop
	HasHeader      bool

	DateCol      int
	AmountCol    int
	DebitCol     int
	CreditCol    int
	DescCol      int
	RefCol       int
	CategoryCol  int

	DateLayout string
	Amount     AmountOptions
	Merchant   MerchantOptions
}

// DefaultCSVConfig returns a mapping with all columns unassigned.
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		Delimiter:   ',',
		HasHeader:   true,
		DateCol:     -1,
		AmountCol:   -1,
		DebitCol:    -1,
		CreditCol:   -1,
		DescCol:     -1,
		RefCol:      -1,
		CategoryCol: -1,
		Amount:      DefaultAmountOptions(),
		Merchant:    DefaultMerchantOptions(),
	}
}

// Validate checks that the mapping covers the required roles.
func (c CSVConfig) Validate() error {
	if c.DateCol < 0 {
		return fmt.Errorf("date column is required")
	}
	if c.DescCol < 0 {
		return fmt.Errorf("description column is required")
	}
	if c.AmountCol < 0 && (c.DebitCol < 0 || c.CreditCol < 0) {
		return fmt.Errorf("amount column or debit/credit column pair is required")
	}
	return nil
}

// CSVParser parses custom CSV statements using an explicit column mapping.
type CSVParser struct {
	cfg CSVConfig
}

// NewCSV creates a parser for the given mapping.
func NewCSV(cfg CSVConfig) *CSVParser {
	return &CSVParser{cfg: cfg}
}

// Parse converts the file into normalized records. Rows that fail to parse
// are reported in Result.RowErrors and skipped.
func (p *CSVParser) Parse(data []byte) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	result := &Result{}

	// Metadata rows are skipped as raw lines: csv.Reader silently drops blank
	// lines, which would throw the count off in files with a preamble.
	lines := strings.Split(string(normalizeBytes(data)), "\n")
	if p.cfg.SkipRows >= len(lines) {
		return result, nil
	}
	lines = lines[p.cfg.SkipRows:]

	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	if p.cfg.Delimiter != 0 {
		reader.Comma = p.cfg.Delimiter
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rowNum := p.cfg.SkipRows
	if p.cfg.HasHeader {
		if _, err := reader.Read(); err == io.EOF {
			return result, nil
		} else if err != nil && !isCSVFieldError(err) {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		rowNum++
	}

	type rawRow struct {
		row    int
		record []string
	}
	var rows []rawRow
	for {
		record, err := reader.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		rows = append(rows, rawRow{row: rowNum, record: record})
	}

	if p.cfg.SkipFooterRows > 0 && len(rows) >= p.cfg.SkipFooterRows {
		rows = rows[:len(rows)-p.cfg.SkipFooterRows]
	}

	result.TotalRows = len(rows) + len(result.RowErrors)

	for _, raw := range rows {
		rec, rowErr := p.parseRecord(raw.record, raw.row)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, *rowErr)
			continue
		}
		result.Records = append(result.Records, *rec)
	}

	return result, nil
}

func (p *CSVParser) parseRecord(record []string, rowNum int) (*Record, *RowError) {
	getValue := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	dateStr := getValue(p.cfg.DateCol)
	if dateStr == "" {
		return nil, &RowError{Row: rowNum, Reason: "empty date"}
	}
	date, err := ParseDate(dateStr, p.cfg.DateLayout)
	if err != nil {
		return nil, &RowError{Row: rowNum, Reason: fmt.Sprintf("bad date %q: %v", dateStr, err)}
	}

	desc := CleanDescription(getValue(p.cfg.DescCol))
	if desc == "" {
		return nil, &RowError{Row: rowNum, Reason: "empty description"}
	}

	var cents int64
	if p.cfg.AmountCol >= 0 {
		amountStr := getValue(p.cfg.AmountCol)
		if amountStr == "" {
			return nil, &RowError{Row: rowNum, Reason: "empty amount"}
		}
		cents, err = ParseAmount(amountStr, p.cfg.Amount)
	} else {
		cents, err = ParseDebitCredit(getValue(p.cfg.DebitCol), getValue(p.cfg.CreditCol), p.cfg.Amount)
	}
	if err != nil {
		return nil, &RowError{Row: rowNum, Reason: fmt.Sprintf("bad amount: %v", err)}
	}

	return &Record{
		Date:        date,
		AmountCents: cents,
		Description: desc,
		Merchant:    DeriveMerchant(desc, p.cfg.Merchant),
		Reference:   getValue(p.cfg.RefCol),
		Category:    getValue(p.cfg.CategoryCol),
		Row:         rowNum,
	}, nil
}

// headerRow supports the header-name mapped path for well-known exports where
// gocsv can bind by column name without a manual mapping.
type headerRow struct {
	Date        string `csv:"date"`
	Posted      string `csv:"posted date"`
	Amount      string `csv:"amount"`
	Debit       string `csv:"debit"`
	Credit      string `csv:"credit"`
	Description string `csv:"description"`
	Memo        string `csv:"memo"`
	Payee       string `csv:"payee"`
	Reference   string `csv:"reference"`
	Category    string `csv:"category"`
}

// ParseHeaderMapped parses a CSV whose header names match the common
// conventions directly, with no explicit column mapping.
func ParseHeaderMapped(data []byte, amount AmountOptions, merchant MerchantOptions) (*Result, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		return r
	})
	gocsv.SetHeaderNormalizer(func(h string) string {
		return strings.ToLower(strings.TrimSpace(h))
	})

	var rows []headerRow
	if err := gocsv.UnmarshalBytes(normalizeBytes(data), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	result := &Result{TotalRows: len(rows)}
	for i, row := range rows {
		rowNum := i + 2 // 1-indexed plus header

		dateStr := coalesce(row.Date, row.Posted)
		date, err := ParseDate(dateStr, "")
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: fmt.Sprintf("bad date %q", dateStr)})
			continue
		}

		desc := CleanDescription(coalesce(row.Description, row.Payee, row.Memo))
		if desc == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: "empty description"})
			continue
		}

		var cents int64
		if amt := strings.TrimSpace(row.Amount); amt != "" {
			cents, err = ParseAmount(amt, amount)
		} else {
			cents, err = ParseDebitCredit(row.Debit, row.Credit, amount)
		}
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: fmt.Sprintf("bad amount: %v", err)})
			continue
		}

		result.Records = append(result.Records, Record{
			Date:        date,
			AmountCents: cents,
			Description: desc,
			Merchant:    DeriveMerchant(desc, merchant),
			Reference:   strings.TrimSpace(row.Reference),
			Category:    strings.TrimSpace(row.Category),
			Row:         rowNum,
		})
	}

	return result, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// normalizeBytes strips a UTF-8 BOM and normalizes line endings.
func normalizeBytes(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
}

func isCSVFieldError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount)
}
