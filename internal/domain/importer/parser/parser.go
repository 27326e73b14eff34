// Package parser converts raw statement rows into normalized transaction
// records. It supports custom CSV via a finalized column mapping, plus QIF,
// OFX/QFX and XLSX statements. Row-level failures are collected as errors and
// never abort the batch.
package parser

import (
	"fmt"
	"strings"
	"time"
)

// Record is a normalized transaction row ready for import.
type Record struct {
	Date        time.Time
	AmountCents int64
	Description string
	Merchant    string
	Reference   string
	Category    string
	Row         int // 1-indexed source row, for error reporting
}

// RowError describes a row that failed to parse. The batch continues.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Result is the outcome of parsing one file.
type Result struct {
	Records   []Record
	RowErrors []RowError
	TotalRows int
}

// MerchantOptions controls how the merchant field is derived from the
// description: split on any separator rune, keep the first segment, truncate.
type MerchantOptions struct {
	Separators string
	MaxLength  int
}

// DefaultMerchantOptions matches the common bank statement shape where the
// merchant leads the description before a reference or location suffix.
func DefaultMerchantOptions() MerchantOptions {
	return MerchantOptions{Separators: "*#/", MaxLength: 60}
}

// DeriveMerchant produces the normalized merchant field from a description.
func DeriveMerchant(description string, opts MerchantOptions) string {
	m := strings.TrimSpace(description)
	if opts.Separators != "" {
		if idx := strings.IndexAny(m, opts.Separators); idx > 0 {
			m = m[:idx]
		}
	}
	m = CleanDescription(m)
	if opts.MaxLength > 0 && len(m) > opts.MaxLength {
		m = strings.TrimSpace(m[:opts.MaxLength])
	}
	return m
}

// CleanDescription trims and collapses internal whitespace.
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
