package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer/parser"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/importer/sniffer"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/rules"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/tags"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
	"github.com/maxwell-labs/maxwells-wallet/pkg/metrics"
	"github.com/maxwell-labs/maxwells-wallet/pkg/storage"
)

// Supported file formats.
const (
	FormatCSV   = "csv"
	FormatQIF   = "qif"
	FormatOFX   = "ofx"
	FormatExcel = "xlsx"
)

// MerchantResolver maps raw merchant strings to canonical names.
type MerchantResolver interface {
	Resolve(merchant string) string
}

// Service orchestrates the import pipeline: detect, parse, dedup, persist,
// auto-tag.
type Service struct {
	sessions  SessionRepository
	txnRepo   transactions.Repository
	txnSvc    *transactions.Service
	tagRepo   tags.Repository
	ruleRepo  rules.Repository
	merchants MerchantResolver
	archive   storage.Archive
	metrics   *metrics.Metrics
	logger    *slog.Logger

	sampleRows   int
	merchantOpts parser.MerchantOptions
}

// Config carries importer tuning knobs.
type Config struct {
	SampleRows     int
	MerchantMaxLen int
}

// NewService creates an import service. merchants, archive and metrics may be
// nil.
func NewService(
	sessions SessionRepository,
	txnRepo transactions.Repository,
	txnSvc *transactions.Service,
	tagRepo tags.Repository,
	ruleRepo rules.Repository,
	merchants MerchantResolver,
	archive storage.Archive,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *Service {
	merchantOpts := parser.DefaultMerchantOptions()
	if cfg.MerchantMaxLen > 0 {
		merchantOpts.MaxLength = cfg.MerchantMaxLen
	}
	sampleRows := cfg.SampleRows
	if sampleRows <= 0 {
		sampleRows = 10
	}

	return &Service{
		sessions:     sessions,
		txnRepo:      txnRepo,
		txnSvc:       txnSvc,
		tagRepo:      tagRepo,
		ruleRepo:     ruleRepo,
		merchants:    merchants,
		archive:      archive,
		metrics:      m,
		logger:       logger,
		sampleRows:   sampleRows,
		merchantOpts: merchantOpts,
	}
}

// DetectFormat infers the file format from its name.
func DetectFormat(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".qif":
		return FormatQIF
	case ".ofx", ".qfx":
		return FormatOFX
	case ".xlsx", ".xls":
		return FormatExcel
	default:
		return FormatCSV
	}
}

// DetectResult is the outcome of structure detection on an uploaded file.
type DetectResult struct {
	Format       string                  `json:"format"`
	Completeness float64                 `json:"completeness"`
	Config       *sniffer.DetectedConfig `json:"config,omitempty"`
	Headers      []string                `json:"headers,omitempty"`
	SampleRows   [][]string              `json:"sample_rows,omitempty"`
	Fingerprint  string                  `json:"fingerprint,omitempty"`
	RecordCount  int                     `json:"record_count,omitempty"`
}

// Detect proposes an import configuration for the file. Structured formats
// (QIF/OFX) are probed by parsing; tabular formats go through the sniffer.
// Unreadable files yield a zero-completeness result, not an error.
func (s *Service) Detect(ctx context.Context, fileName string, data []byte) (*DetectResult, error) {
	format := DetectFormat(fileName)
	result := &DetectResult{Format: format}

	switch format {
	case FormatQIF:
		parsed, err := parser.NewQIF("", s.merchantOpts).Parse(data)
		if err == nil && len(parsed.Records) > 0 {
			result.Completeness = 1
			result.RecordCount = len(parsed.Records)
		}
	case FormatOFX:
		parsed, err := parser.NewOFX(s.merchantOpts).Parse(data)
		if err == nil && len(parsed.Records) > 0 {
			result.Completeness = 1
			result.RecordCount = len(parsed.Records)
		}
	default:
		opts := sniffer.DefaultOptions()
		opts.SampleRows = s.sampleRows
		cfg, err := sniffer.Detect(data, opts)
		if err != nil {
			s.logger.Info("structure detection failed", "file", fileName, "error", err)
			return result, nil
		}
		result.Completeness = cfg.Completeness
		result.Config = cfg
		result.Headers = cfg.Headers
		result.SampleRows = cfg.SampleRows
		overview, err := sniffer.Analyze(data, opts)
		if err == nil {
			result.Fingerprint = overview.Fingerprint
		}
	}

	return result, nil
}

// AnalyzeResult is the loose structural pass surfaced before full detection.
type AnalyzeResult struct {
	Format      string     `json:"format"`
	SkipRows    int        `json:"skip_rows"`
	Headers     []string   `json:"headers,omitempty"`
	SampleRows  [][]string `json:"sample_rows,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Delimiter   string     `json:"delimiter,omitempty"`
}

// Analyze reports file structure without attempting column role assignment.
// Structured formats carry their own layout, so only tabular files are
// probed. Unreadable files yield an empty result, not an error.
func (s *Service) Analyze(ctx context.Context, fileName string, data []byte) (*AnalyzeResult, error) {
	format := DetectFormat(fileName)
	result := &AnalyzeResult{Format: format}
	if format != FormatCSV {
		return result, nil
	}

	opts := sniffer.DefaultOptions()
	opts.SampleRows = s.sampleRows
	overview, err := sniffer.Analyze(data, opts)
	if err != nil {
		s.logger.Info("structural analysis failed", "file", fileName, "error", err)
		return result, nil
	}
	result.SkipRows = overview.SkipRows
	result.Headers = overview.Headers
	result.SampleRows = overview.SampleRows
	result.Fingerprint = overview.Fingerprint
	result.Delimiter = string(overview.Delimiter)
	return result, nil
}

// Request describes one import or preview call.
type Request struct {
	FileName string
	Data     []byte
	// Account labels all rows for account-less formats. OFX statements carry
	// their own account ids; Account is the fallback when those are empty.
	Account string
	// Format overrides extension-based detection when set.
	Format string
	// CSV is an explicit column mapping. When nil the sniffer's detected
	// configuration is used.
	CSV *parser.CSVConfig
}

// stagedRecord is a parsed row with its resolved account, ready for hashing.
type stagedRecord struct {
	parser.Record
	Account string
}

func (s *Service) parse(req Request) ([]stagedRecord, []parser.RowError, int, error) {
	format := req.Format
	if format == "" {
		format = DetectFormat(req.FileName)
	}

	switch format {
	case FormatQIF:
		result, err := parser.NewQIF("", s.merchantOpts).Parse(req.Data)
		if err != nil {
			return nil, nil, 0, err
		}
		return s.stage(result.Records, req.Account), result.RowErrors, result.TotalRows, nil

	case FormatOFX:
		result, err := parser.NewOFX(s.merchantOpts).Parse(req.Data)
		if err != nil {
			return nil, nil, 0, err
		}
		staged := make([]stagedRecord, 0, len(result.Records))
		for _, rec := range result.Records {
			account := rec.AccountID
			if account == "" {
				account = req.Account
			}
			staged = append(staged, stagedRecord{Record: rec.Record, Account: account})
		}
		return staged, result.RowErrors, result.TotalRows, nil

	case FormatExcel:
		cfg, err := s.csvConfig(req)
		if err != nil {
			return nil, nil, 0, err
		}
		result, err := parser.NewExcel(cfg).Parse(req.Data)
		if err != nil {
			return nil, nil, 0, err
		}
		return s.stage(result.Records, req.Account), result.RowErrors, result.TotalRows, nil

	default:
		cfg, err := s.csvConfig(req)
		if err != nil {
			return nil, nil, 0, err
		}
		result, err := parser.NewCSV(cfg).Parse(req.Data)
		if err != nil {
			return nil, nil, 0, err
		}
		return s.stage(result.Records, req.Account), result.RowErrors, result.TotalRows, nil
	}
}

func (s *Service) csvConfig(req Request) (parser.CSVConfig, error) {
	if req.CSV != nil {
		cfg := *req.CSV
		cfg.Merchant = s.merchantOpts
		return cfg, cfg.Validate()
	}

	opts := sniffer.DefaultOptions()
	opts.SampleRows = s.sampleRows
	detected, err := sniffer.Detect(req.Data, opts)
	if err != nil {
		return parser.CSVConfig{}, fmt.Errorf("failed to detect file structure: %w", err)
	}
	if detected.Completeness < 1 {
		return parser.CSVConfig{}, fmt.Errorf("could not detect all required columns (completeness %.2f); supply an explicit mapping", detected.Completeness)
	}
	return detected.ToCSVConfig(s.merchantOpts), nil
}

func (s *Service) stage(records []parser.Record, account string) []stagedRecord {
	staged := make([]stagedRecord, 0, len(records))
	for _, rec := range records {
		staged = append(staged, stagedRecord{Record: rec, Account: account})
	}
	return staged
}

// resolveMerchants runs merchant aliasing over staged records.
func (s *Service) resolveMerchants(staged []stagedRecord) {
	if s.merchants == nil {
		return
	}
	for i := range staged {
		staged[i].Merchant = s.merchants.Resolve(staged[i].Merchant)
	}
}

// dedup partitions staged records into new and duplicate, checking both the
// database and earlier rows of the same batch.
func (s *Service) dedup(ctx context.Context, staged []stagedRecord) (fresh []stagedRecord, duplicates int, err error) {
	byAccount := make(map[string][]string)
	for i := range staged {
		h := transactions.ComputeContentHash(staged[i].Account, staged[i].Date, staged[i].AmountCents, staged[i].Description)
		byAccount[staged[i].Account] = append(byAccount[staged[i].Account], h)
	}

	existing := make(map[string]map[string]struct{}, len(byAccount))
	for account, hashes := range byAccount {
		known, err := s.txnRepo.ExistingHashes(ctx, account, hashes)
		if err != nil {
			return nil, 0, err
		}
		existing[account] = known
	}

	seen := make(map[string]struct{})
	for i := range staged {
		rec := staged[i]
		h := transactions.ComputeContentHash(rec.Account, rec.Date, rec.AmountCents, rec.Description)
		key := rec.Account + "|" + h

		if _, dup := existing[rec.Account][h]; dup {
			duplicates++
			continue
		}
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh, duplicates, nil
}

// PreviewResult shows what an import would do without writing anything.
type PreviewResult struct {
	Format         string                     `json:"format"`
	RowCount       int                        `json:"row_count"`
	NewCount       int                        `json:"new_count"`
	DuplicateCount int                        `json:"duplicate_count"`
	ErrorCount     int                        `json:"error_count"`
	RowErrors      []parser.RowError          `json:"row_errors,omitempty"`
	Records        []transactions.Transaction `json:"records"`
}

// Preview dry-runs the pipeline: parse, alias merchants, count duplicates.
func (s *Service) Preview(ctx context.Context, req Request) (*PreviewResult, error) {
	staged, rowErrors, totalRows, err := s.parse(req)
	if err != nil {
		return nil, err
	}
	s.resolveMerchants(staged)

	fresh, duplicates, err := s.dedup(ctx, staged)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = DetectFormat(req.FileName)
	}

	result := &PreviewResult{
		Format:         format,
		RowCount:       totalRows,
		NewCount:       len(fresh),
		DuplicateCount: duplicates,
		ErrorCount:     len(rowErrors),
		RowErrors:      rowErrors,
		Records:        make([]transactions.Transaction, 0, len(fresh)),
	}
	for _, rec := range fresh {
		result.Records = append(result.Records, toTransaction(rec, nil))
	}
	return result, nil
}

// ImportResult summarizes a finalized import.
type ImportResult struct {
	Session     Session           `json:"session"`
	TaggedCount int               `json:"tagged_count"`
	RowErrors   []parser.RowError `json:"row_errors,omitempty"`
}

// Import runs the full pipeline and persists the outcome: transactions, the
// session ledger entry, account tags and rule-assigned tags.
func (s *Service) Import(ctx context.Context, req Request) (*ImportResult, error) {
	staged, rowErrors, totalRows, err := s.parse(req)
	if err != nil {
		return nil, err
	}
	s.resolveMerchants(staged)

	fresh, duplicates, err := s.dedup(ctx, staged)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = DetectFormat(req.FileName)
	}

	session := &Session{
		ID:             uuid.New(),
		FileName:       req.FileName,
		Format:         format,
		RowCount:       totalRows,
		ImportedCount:  len(fresh),
		DuplicateCount: duplicates,
		ErrorCount:     len(rowErrors),
		Status:         StatusCompleted,
	}

	if s.archive != nil {
		info, err := s.archive.Save(ctx, req.FileName, bytes.NewReader(req.Data))
		if err != nil {
			s.logger.Warn("failed to archive statement file", "file", req.FileName, "error", err)
		} else {
			session.ArchivePath = info.Path
		}
	}

	txns := make([]*transactions.Transaction, 0, len(fresh))
	for _, rec := range fresh {
		t := toTransaction(rec, &session.ID)
		txns = append(txns, &t)

		if session.DateMin == nil || t.Date.Before(*session.DateMin) {
			d := t.Date
			session.DateMin = &d
		}
		if session.DateMax == nil || t.Date.After(*session.DateMax) {
			d := t.Date
			session.DateMax = &d
		}
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := s.txnRepo.InsertBatch(ctx, txns); err != nil {
		return nil, err
	}

	if err := s.tagAccounts(ctx, txns); err != nil {
		return nil, err
	}
	tagged, err := s.applyRules(ctx, txns)
	if err != nil {
		return nil, err
	}

	if s.txnSvc != nil {
		indexed := make([]transactions.Transaction, len(txns))
		for i, t := range txns {
			indexed[i] = *t
		}
		s.txnSvc.IndexAll(indexed)
	}

	if s.metrics != nil {
		s.metrics.ImportsTotal.Inc()
		s.metrics.RowsImported.Add(float64(len(txns)))
		s.metrics.DuplicatesTotal.Add(float64(duplicates))
	}

	s.logger.Info("import finished",
		"session", session.ID,
		"file", req.FileName,
		"format", format,
		"rows", totalRows,
		"imported", len(txns),
		"duplicates", duplicates,
		"errors", len(rowErrors),
		"tagged", tagged)

	return &ImportResult{Session: *session, TaggedCount: tagged, RowErrors: rowErrors}, nil
}

func toTransaction(rec stagedRecord, sessionID *uuid.UUID) transactions.Transaction {
	t := transactions.Transaction{
		Date:            rec.Date,
		AmountCents:     rec.AmountCents,
		Description:     rec.Description,
		Merchant:        rec.Merchant,
		Account:         rec.Account,
		ImportSessionID: sessionID,
	}
	t.RecomputeHash()
	return t
}

// tagAccounts ensures an account-namespace tag per distinct account and
// assigns it to the imported transactions.
func (s *Service) tagAccounts(ctx context.Context, txns []*transactions.Transaction) error {
	accountTags := make(map[string]uuid.UUID)
	for _, t := range txns {
		if t.Account == "" {
			continue
		}
		tagID, ok := accountTags[t.Account]
		if !ok {
			tag, err := s.tagRepo.Ensure(ctx, tags.NamespaceAccount, t.Account)
			if err != nil {
				return err
			}
			tagID = tag.ID
			accountTags[t.Account] = tagID
		}
		if err := s.tagRepo.Assign(ctx, t.ID, tagID, nil); err != nil {
			return err
		}
	}
	return nil
}

// applyRules evaluates the rule engine over the newly imported transactions.
func (s *Service) applyRules(ctx context.Context, txns []*transactions.Transaction) (int, error) {
	ruleSet, err := s.ruleRepo.List(ctx)
	if err != nil {
		return 0, err
	}
	engine := rules.NewEngine(ruleSet)

	tagged := 0
	matchCounts := make(map[uuid.UUID]int)
	for _, t := range txns {
		rule := engine.Match(t)
		if rule == nil {
			continue
		}
		if err := s.tagRepo.Assign(ctx, t.ID, rule.TagID, nil); err != nil {
			return tagged, err
		}
		matchCounts[rule.ID]++
		tagged++
	}

	if err := s.ruleRepo.RecordMatches(ctx, matchCounts); err != nil {
		s.logger.Warn("failed to record rule match counts", "error", err)
	}
	return tagged, nil
}

// Sessions lists past imports, newest first.
func (s *Service) Sessions(ctx context.Context, limit, offset int) ([]Session, error) {
	return s.sessions.List(ctx, limit, offset)
}

// Session returns one import session.
func (s *Service) Session(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.sessions.GetByID(ctx, id)
}

// ErrNoArchive is returned when a session has no archived source file.
var ErrNoArchive = errors.New("no archived file for session")

// OpenArchive streams the original statement file a session was imported
// from. The caller closes the reader.
func (s *Service) OpenArchive(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if s.archive == nil || session.ArchivePath == "" {
		return nil, nil, ErrNoArchive
	}

	rc, err := s.archive.Open(ctx, session.ArchivePath)
	if err != nil {
		return nil, nil, err
	}
	return rc, session, nil
}

// RollbackResult reports what a rollback removed.
type RollbackResult struct {
	SessionID    uuid.UUID `json:"session_id"`
	RemovedCount int64     `json:"removed_count"`
}

// Rollback deletes every transaction the session created and marks it rolled
// back. Tag assignments cascade with the transactions.
func (s *Service) Rollback(ctx context.Context, id uuid.UUID) (*RollbackResult, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == StatusRolledBack {
		return nil, ErrAlreadyRolledBack
	}

	// Collect ids first so the search index can be pruned after the delete.
	var removedIDs []uuid.UUID
	if s.txnSvc != nil {
		sessionTxns, _, err := s.txnRepo.List(ctx, transactions.ListFilter{SessionID: &id})
		if err == nil {
			for _, t := range sessionTxns {
				removedIDs = append(removedIDs, t.ID)
			}
		}
	}

	removed, err := s.txnRepo.DeleteBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.MarkRolledBack(ctx, id); err != nil {
		return nil, err
	}

	if s.txnSvc != nil {
		s.txnSvc.RemoveFromIndex(removedIDs...)
	}

	s.logger.Info("import rolled back", "session", id, "removed", removed)
	return &RollbackResult{SessionID: id, RemovedCount: removed}, nil
}
