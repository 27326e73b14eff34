// Package sniffer inspects uploaded tabular statements and proposes an import
// configuration: delimiter, header row, column role assignments, date layout,
// amount dialect and sign convention, with a completeness score in [0,1].
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer/parser"
)

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// Header keyword heuristics per role. Matching is case-insensitive substring.
var (
	dateKeywords      = []string{"date", "posted", "booking"}
	descKeywords      = []string{"description", "payee", "merchant", "memo", "details", "narrative", "name"}
	amountKeywords    = []string{"amount", "value", "transaction total"}
	debitKeywords     = []string{"debit", "withdrawal", "money out", "paid out"}
	creditKeywords    = []string{"credit", "deposit", "money in", "paid in"}
	referenceKeywords = []string{"reference", "ref", "number", "cheque", "check no", "fitid"}
	categoryKeywords  = []string{"category", "type"}
)

// requiredRoles are the roles that count toward the completeness score.
const requiredRoles = 3 // date, amount, description

// scoreThreshold is the minimum sample parse-success rate for a candidate
// column to be considered assigned.
const scoreThreshold = 0.5

// Overview is the loose analysis result: structure only, no role scoring.
// It is the fallback surface when full detection is incomplete.
type Overview struct {
	Delimiter   rune       `json:"-"`
	SkipRows    int        `json:"skip_rows"`
	Headers     []string   `json:"headers"`
	SampleRows  [][]string `json:"sample_rows"`
	Fingerprint string     `json:"fingerprint"`
}

// DetectedConfig is a proposed import configuration.
type DetectedConfig struct {
	Delimiter  rune
	SkipRows   int
	Headers    []string
	SampleRows [][]string

	DateCol       int
	AmountCol     int
	DebitCol      int
	CreditCol     int
	DescCol       int
	RefCol        int
	CategoryCol   int
	IsDoubleEntry bool

	DateLayout         string
	SignConvention     parser.SignConvention
	CurrencyPrefix     string
	ThousandsSeparator rune
	DecimalSeparator   rune

	// Completeness is the fraction of required roles (date, amount,
	// description) successfully assigned.
	Completeness float64
}

// Options overrides parts of the automatic detection.
type Options struct {
	// HeaderRowIndex is the 0-based header row; -1 auto-detects. Setting it
	// bypasses header-row search entirely (files without usable headers).
	HeaderRowIndex int
	// Delimiter overrides delimiter detection when non-zero.
	Delimiter rune
	// SampleRows caps how many data rows are sampled for scoring.
	SampleRows int
}

// DefaultOptions returns fully automatic detection with a 10-row sample.
func DefaultOptions() Options {
	return Options{HeaderRowIndex: -1, SampleRows: 10}
}

// Analyze performs the loose structural pass: delimiter, header row, sample
// rows and a header fingerprint. It does not attempt role assignment.
func Analyze(data []byte, opts Options) (*Overview, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(normalize(data)), "\n")

	var (
		delimiter rune
		skipRows  int
		err       error
	)
	if opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipRows = opts.HeaderRowIndex
		delimiter = opts.Delimiter
		if delimiter == 0 {
			delimiter, _ = detectDelimiter(lines[skipRows])
			if delimiter == 0 {
				return nil, ErrInvalidDelimiter
			}
		}
	} else {
		delimiter, skipRows, err = findHeaderRow(lines)
		if err != nil {
			return nil, err
		}
		if opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		}
	}

	headerReader := csv.NewReader(strings.NewReader(lines[skipRows]))
	headerReader.Comma = delimiter
	headerReader.LazyQuotes = true
	headers, err := headerReader.Read()
	if err != nil {
		return nil, ErrNoHeadersFound
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	maxSamples := opts.SampleRows
	if maxSamples <= 0 {
		maxSamples = 10
	}

	return &Overview{
		Delimiter:   delimiter,
		SkipRows:    skipRows,
		Headers:     headers,
		SampleRows:  sampleRows(lines[skipRows+1:], delimiter, maxSamples),
		Fingerprint: fingerprint(headers),
	}, nil
}

// Detect runs full detection: the structural pass plus per-role candidate
// scoring over sampled rows. It never fails on content it cannot make sense
// of; the result simply carries a lower completeness.
func Detect(data []byte, opts Options) (*DetectedConfig, error) {
	overview, err := Analyze(data, opts)
	if err != nil {
		return nil, err
	}

	cfg := &DetectedConfig{
		Delimiter:          overview.Delimiter,
		SkipRows:           overview.SkipRows,
		Headers:            overview.Headers,
		SampleRows:         overview.SampleRows,
		DateCol:            -1,
		AmountCol:          -1,
		DebitCol:           -1,
		CreditCol:          -1,
		DescCol:            -1,
		RefCol:             -1,
		CategoryCol:        -1,
		SignConvention:     parser.SignNegativePrefix,
		ThousandsSeparator: ',',
		DecimalSeparator:   '.',
	}

	headers := lowerHeaders(overview.Headers)
	samples := overview.SampleRows

	// Date: keyword candidates first, then every column; best parse-success
	// rate wins, ties keep the first column in order.
	dateCandidates := keywordColumns(headers, dateKeywords)
	if len(dateCandidates) == 0 {
		dateCandidates = allColumns(headers)
	}
	var dateScore float64
	for _, col := range dateCandidates {
		layout := parser.DetectDateLayout(column(samples, col))
		if layout == "" {
			continue
		}
		score := parseSuccessRate(column(samples, col), func(s string) bool {
			_, err := parser.ParseDate(s, layout)
			return err == nil
		})
		if score > dateScore {
			dateScore = score
			cfg.DateCol = col
			cfg.DateLayout = layout
		}
	}
	if dateScore < scoreThreshold {
		cfg.DateCol = -1
		cfg.DateLayout = ""
	}

	// Amount: an amount-keyword column wins, then an explicit debit/credit
	// header pair, then numeric-column scoring.
	debitCols := keywordColumns(headers, debitKeywords)
	creditCols := keywordColumns(headers, creditKeywords)
	haveDoubleEntry := len(debitCols) > 0 && len(creditCols) > 0
	amountCandidates := keywordColumns(headers, amountKeywords)
	if len(amountCandidates) == 0 && !haveDoubleEntry {
		amountCandidates = numericColumns(samples, headers, cfg.DateCol)
	}

	var amountScore float64
	for _, col := range amountCandidates {
		vals := column(samples, col)
		dialect := probeAmountDialect(vals)
		score := parseSuccessRate(vals, func(s string) bool {
			_, err := parser.ParseAmount(s, dialect.options())
			return err == nil
		})
		if score > amountScore {
			amountScore = score
			cfg.AmountCol = col
			cfg.CurrencyPrefix = dialect.currencyPrefix
			cfg.ThousandsSeparator = dialect.thousandsSep
			cfg.DecimalSeparator = dialect.decimalSep
			if dialect.sawNegative {
				cfg.SignConvention = parser.SignNegativePrefix
			}
		}
	}
	if amountScore < scoreThreshold {
		cfg.AmountCol = -1
	}

	if cfg.AmountCol < 0 && haveDoubleEntry {
		cfg.DebitCol = debitCols[0]
		cfg.CreditCol = creditCols[0]
		cfg.IsDoubleEntry = true
		cfg.SignConvention = parser.SignPositiveDebit
		dialect := probeAmountDialect(append(column(samples, cfg.DebitCol), column(samples, cfg.CreditCol)...))
		cfg.CurrencyPrefix = dialect.currencyPrefix
		cfg.ThousandsSeparator = dialect.thousandsSep
		cfg.DecimalSeparator = dialect.decimalSep
	}

	// Description: keyword candidate first, else the most texty column left.
	descCandidates := keywordColumns(headers, descKeywords)
	if len(descCandidates) > 0 {
		cfg.DescCol = descCandidates[0]
	} else {
		cfg.DescCol = textiestColumn(samples, headers, cfg.DateCol, cfg.AmountCol, cfg.DebitCol, cfg.CreditCol)
	}

	// Optional roles need no scoring; keyword match suffices.
	if cols := keywordColumns(headers, referenceKeywords); len(cols) > 0 {
		cfg.RefCol = cols[0]
	}
	if cols := keywordColumns(headers, categoryKeywords); len(cols) > 0 {
		cfg.CategoryCol = cols[0]
	}

	assigned := 0
	if cfg.DateCol >= 0 {
		assigned++
	}
	if cfg.AmountCol >= 0 || cfg.IsDoubleEntry {
		assigned++
	}
	if cfg.DescCol >= 0 {
		assigned++
	}
	cfg.Completeness = float64(assigned) / requiredRoles

	return cfg, nil
}

// ToCSVConfig converts a detected configuration into a parser mapping.
func (c *DetectedConfig) ToCSVConfig(merchant parser.MerchantOptions) parser.CSVConfig {
	out := parser.DefaultCSVConfig()
	out.Delimiter = c.Delimiter
	out.SkipRows = c.SkipRows
	out.HasHeader = true
	out.DateCol = c.DateCol
	out.AmountCol = c.AmountCol
	out.DebitCol = c.DebitCol
	out.CreditCol = c.CreditCol
	out.DescCol = c.DescCol
	out.RefCol = c.RefCol
	out.CategoryCol = c.CategoryCol
	out.DateLayout = c.DateLayout
	out.Amount = parser.AmountOptions{
		Convention:         c.SignConvention,
		CurrencyPrefix:     c.CurrencyPrefix,
		ThousandsSeparator: c.ThousandsSeparator,
		DecimalSeparator:   c.DecimalSeparator,
	}
	out.Merchant = merchant
	return out
}

// ---- structural helpers ----

// findHeaderRow locates the header row and its delimiter. Lines containing
// role keywords are preferred; the line with the most columns is the
// fallback. At most the first 20 lines are searched.
func findHeaderRow(lines []string) (rune, int, error) {
	type candidate struct {
		index     int
		delimiter rune
		columns   int
		keywords  int
	}
	var keyword, fallback candidate
	keyword.index, fallback.index = -1, -1

	allKeywords := make([]string, 0, 24)
	for _, group := range [][]string{dateKeywords, descKeywords, amountKeywords, debitKeywords, creditKeywords} {
		allKeywords = append(allKeywords, group...)
	}

	for i, line := range lines {
		if i > 20 {
			break
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		lineLower := strings.ToLower(line)
		matches := 0
		for _, kw := range allKeywords {
			if strings.Contains(lineLower, kw) {
				matches++
			}
		}

		if matches > 0 {
			score := count*10 + matches
			if keyword.index == -1 || score > keyword.columns*10+keyword.keywords {
				keyword = candidate{index: i, delimiter: delimiter, columns: count, keywords: matches}
			}
		} else if count > fallback.columns {
			fallback = candidate{index: i, delimiter: delimiter, columns: count}
		}
	}

	if keyword.index >= 0 && keyword.columns >= 2 {
		return keyword.delimiter, keyword.index, nil
	}
	if fallback.columns >= 2 {
		return fallback.delimiter, fallback.index, nil
	}
	return 0, 0, ErrNoHeadersFound
}

func detectDelimiter(line string) (rune, int) {
	best := rune(0)
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best, bestCount
}

// fingerprint hashes normalized header names so repeat uploads from the same
// bank can be recognized.
func fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(sum[:])
}

func sampleRows(dataLines []string, delimiter rune, maxRows int) [][]string {
	reader := csv.NewReader(strings.NewReader(strings.Join(dataLines, "\n")))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
		if len(rows) >= maxRows {
			break
		}
	}
	return rows
}

func normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
}

// ---- scoring helpers ----

func lowerHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func keywordColumns(headers []string, keywords []string) []int {
	var cols []int
	for i, h := range headers {
		for _, kw := range keywords {
			if strings.Contains(h, kw) {
				cols = append(cols, i)
				break
			}
		}
	}
	return cols
}

func allColumns(headers []string) []int {
	cols := make([]int, len(headers))
	for i := range headers {
		cols[i] = i
	}
	return cols
}

func column(rows [][]string, idx int) []string {
	var out []string
	for _, row := range rows {
		if idx >= 0 && idx < len(row) {
			if v := strings.TrimSpace(row[idx]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func parseSuccessRate(values []string, ok func(string) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	hits := 0
	for _, v := range values {
		if ok(v) {
			hits++
		}
	}
	return float64(hits) / float64(len(values))
}

// numericColumns returns columns whose samples look numeric, excluding the
// already-assigned date column.
func numericColumns(rows [][]string, headers []string, dateCol int) []int {
	var cols []int
	for i := range headers {
		if i == dateCol {
			continue
		}
		vals := column(rows, i)
		if len(vals) == 0 {
			continue
		}
		numeric := 0
		for _, v := range vals {
			if looksNumeric(v) {
				numeric++
			}
		}
		if float64(numeric)/float64(len(vals)) >= scoreThreshold {
			cols = append(cols, i)
		}
	}
	return cols
}

func looksNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',' || r == '-' || r == '+' || r == '(' || r == ')' ||
			r == '$' || r == '€' || r == '£' || r == ' ':
		default:
			return false
		}
	}
	return digits > 0
}

// textiestColumn picks the unassigned column with the highest share of
// non-empty, non-numeric samples.
func textiestColumn(rows [][]string, headers []string, taken ...int) int {
	takenSet := make(map[int]bool, len(taken))
	for _, t := range taken {
		if t >= 0 {
			takenSet[t] = true
		}
	}

	best := -1
	bestScore := 0.0
	for i := range headers {
		if takenSet[i] {
			continue
		}
		vals := column(rows, i)
		if len(vals) == 0 {
			continue
		}
		texty := 0
		for _, v := range vals {
			if !looksNumeric(v) {
				texty++
			}
		}
		score := float64(texty) / float64(len(vals))
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if bestScore < scoreThreshold {
		return -1
	}
	return best
}

// ---- amount dialect probing ----

type amountDialect struct {
	currencyPrefix string
	thousandsSep   rune
	decimalSep     rune
	sawNegative    bool
}

func (d amountDialect) options() parser.AmountOptions {
	return parser.AmountOptions{
		Convention:         parser.SignNegativePrefix,
		CurrencyPrefix:     d.currencyPrefix,
		ThousandsSeparator: d.thousandsSep,
		DecimalSeparator:   d.decimalSep,
	}
}

// probeAmountDialect infers separators and currency prefix from samples.
// When comma and dot both appear the later one is the decimal separator;
// a lone separator with up to two trailing digits is treated as decimal.
func probeAmountDialect(values []string) amountDialect {
	d := amountDialect{thousandsSep: ',', decimalSep: '.'}

	euHints, usHints := 0, 0
	for _, v := range values {
		for _, prefix := range []string{"$", "€", "£"} {
			if strings.Contains(v, prefix) {
				d.currencyPrefix = prefix
			}
		}
		if strings.HasPrefix(strings.TrimSpace(v), "-") || strings.HasPrefix(strings.TrimSpace(v), "(") {
			d.sawNegative = true
		}

		cleaned := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == ',' || r == '.' {
				return r
			}
			return -1
		}, v)

		lastComma := strings.LastIndex(cleaned, ",")
		lastDot := strings.LastIndex(cleaned, ".")
		switch {
		case lastComma >= 0 && lastDot >= 0:
			if lastComma > lastDot {
				euHints++
			} else {
				usHints++
			}
		case lastComma >= 0:
			if len(cleaned)-lastComma-1 <= 2 {
				euHints++
			}
		case lastDot >= 0:
			if len(cleaned)-lastDot-1 <= 2 {
				usHints++
			}
		}
	}

	if euHints > usHints {
		d.thousandsSep = '.'
		d.decimalSep = ','
	}
	return d
}
