package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// QIFParser parses Quicken Interchange Format statements. QIF carries one
// field per line keyed by a leading letter code, with '^' terminating each
// record; amounts are signed with debits negative, so the negative-prefix
// convention applies regardless of configuration.
type QIFParser struct {
	dateLayout string
	merchant   MerchantOptions
}

// NewQIF creates a QIF parser. dateLayout may be empty for flexible parsing;
// QIF dates are commonly MM/DD/YYYY or DD/MM/YYYY depending on locale.
func NewQIF(dateLayout string, merchant MerchantOptions) *QIFParser {
	return &QIFParser{dateLayout: dateLayout, merchant: merchant}
}

// Parse converts QIF data into normalized records.
func (p *QIFParser) Parse(data []byte) (*Result, error) {
	scanner := bufio.NewScanner(bytes.NewReader(normalizeBytes(data)))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	result := &Result{}
	var (
		dateStr, amountStr, payee, memo, ref, category string
		recordStart                                    int
		lineNum                                        int
		sawRecord                                      bool
	)

	reset := func() {
		dateStr, amountStr, payee, memo, ref, category = "", "", "", "", "", ""
		recordStart = 0
	}

	flush := func(endLine int) {
		if dateStr == "" && amountStr == "" && payee == "" && memo == "" {
			return // blank record, e.g. trailing '^'
		}
		result.TotalRows++

		row := recordStart
		if row == 0 {
			row = endLine
		}

		date, err := ParseDate(normalizeQIFDate(dateStr), p.dateLayout)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Reason: fmt.Sprintf("bad date %q", dateStr)})
			return
		}

		desc := CleanDescription(coalesce(payee, memo))
		if desc == "" {
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Reason: "empty payee and memo"})
			return
		}

		cents, err := ParseAmount(amountStr, DefaultAmountOptions())
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: row, Reason: fmt.Sprintf("bad amount: %v", err)})
			return
		}

		result.Records = append(result.Records, Record{
			Date:        date,
			AmountCents: cents,
			Description: desc,
			Merchant:    DeriveMerchant(desc, p.merchant),
			Reference:   ref,
			Category:    category,
			Row:         row,
		})
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		// Header lines like !Type:Bank and !Option:... are metadata.
		if strings.HasPrefix(line, "!") {
			continue
		}

		code, value := line[0], strings.TrimSpace(line[1:])
		if recordStart == 0 {
			recordStart = lineNum
		}

		switch code {
		case '^':
			flush(lineNum)
			reset()
			sawRecord = true
		case 'D':
			dateStr = value
		case 'T', 'U':
			amountStr = value
		case 'P':
			payee = value
		case 'M':
			memo = value
		case 'N':
			ref = value
		case 'L':
			category = strings.Trim(value, "[]")
		default:
			// Splits (S/E/$) and cleared flags (C) are ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read QIF: %w", err)
	}

	// Final record without a trailing '^'.
	flush(lineNum)

	if !sawRecord && len(result.Records) == 0 && len(result.RowErrors) == 0 {
		return nil, fmt.Errorf("no QIF records found")
	}

	return result, nil
}

// normalizeQIFDate rewrites Quicken's post-2000 date quirk "1/ 2'24" into a
// plain slash-separated date.
func normalizeQIFDate(s string) string {
	s = strings.ReplaceAll(s, "' ", "/")
	s = strings.ReplaceAll(s, "'", "/")
	s = strings.ReplaceAll(s, " ", "")
	// Expand two-digit years so the shared layouts apply.
	parts := strings.Split(s, "/")
	if len(parts) == 3 && len(parts[2]) == 2 {
		parts[2] = "20" + parts[2]
		s = strings.Join(parts, "/")
	}
	// Zero-pad day and month.
	for i, p := range parts {
		if i < 2 && len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	if len(parts) == 3 {
		s = strings.Join(parts, "/")
	}
	return s
}
