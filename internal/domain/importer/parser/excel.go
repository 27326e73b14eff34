package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelParser parses XLSX statements by flattening the transaction sheet to
// string records and reusing the CSV column-mapping path.
type ExcelParser struct {
	cfg CSVConfig
}

// NewExcel creates an XLSX parser using the same column mapping as CSV.
func NewExcel(cfg CSVConfig) *ExcelParser {
	return &ExcelParser{cfg: cfg}
}

// Parse converts the first suitable sheet into normalized records.
func (p *ExcelParser) Parse(data []byte) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	result := &Result{}

	start := p.cfg.SkipRows
	if p.cfg.HasHeader {
		start++
	}
	if start >= len(rows) {
		return result, nil
	}

	dataRows := rows[start:]
	if p.cfg.SkipFooterRows > 0 && len(dataRows) >= p.cfg.SkipFooterRows {
		dataRows = dataRows[:len(dataRows)-p.cfg.SkipFooterRows]
	}

	csvParser := NewCSV(p.cfg)
	result.TotalRows = len(dataRows)
	for i, row := range dataRows {
		rowNum := start + i + 1 // 1-indexed sheet row
		rec, rowErr := csvParser.parseRecord(row, rowNum)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, *rowErr)
			continue
		}
		result.Records = append(result.Records, *rec)
	}

	return result, nil
}

// findTransactionSheet prefers a sheet named like "Transactions", falling
// back to the first sheet.
func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, s := range sheets {
		if strings.Contains(strings.ToLower(s), "transaction") {
			return s
		}
	}
	return sheets[0]
}
