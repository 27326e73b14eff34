package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/tags"
	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
	"github.com/maxwell-labs/maxwells-wallet/pkg/metrics"
)

const applyBatchSize = 500

// Service manages rules and applies them to transactions.
type Service struct {
	repo    Repository
	txnRepo transactions.Repository
	tagRepo tags.Repository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService creates a rule service. metrics may be nil.
func NewService(repo Repository, txnRepo transactions.Repository, tagRepo tags.Repository, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, txnRepo: txnRepo, tagRepo: tagRepo, metrics: m, logger: logger}
}

// List returns all rules in evaluation order.
func (s *Service) List(ctx context.Context) ([]Rule, error) {
	return s.repo.List(ctx)
}

// Get returns one rule.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return s.repo.GetByID(ctx, id)
}

// Validate rejects rules that could never match or would match everything.
func Validate(rule *Rule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if !rule.HasPredicate() {
		return fmt.Errorf("rule must have at least one predicate")
	}
	if rule.AmountMinCents != nil && rule.AmountMaxCents != nil && *rule.AmountMinCents > *rule.AmountMaxCents {
		return fmt.Errorf("amount_min_cents exceeds amount_max_cents")
	}
	if rule.TagID == uuid.Nil {
		return fmt.Errorf("rule must reference a tag")
	}
	return nil
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, rule *Rule) error {
	if err := Validate(rule); err != nil {
		return err
	}
	if _, err := s.tagRepo.GetByID(ctx, rule.TagID); err != nil {
		return err
	}
	return s.repo.Create(ctx, rule)
}

// Update validates and stores rule changes.
func (s *Service) Update(ctx context.Context, rule *Rule) error {
	if err := Validate(rule); err != nil {
		return err
	}
	return s.repo.Update(ctx, rule)
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Sample is a synthetic transaction used to test rules without touching data.
type Sample struct {
	Merchant    string `json:"merchant"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Account     string `json:"account"`
}

// TestResult reports which rules match a sample and which one would win.
type TestResult struct {
	Winner  *Rule  `json:"winner,omitempty"`
	Matched []Rule `json:"matched"`
}

// Test evaluates the current rule set against a sample transaction.
func (s *Service) Test(ctx context.Context, sample Sample) (*TestResult, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	txn := &transactions.Transaction{
		Merchant:    sample.Merchant,
		Description: sample.Description,
		AmountCents: sample.AmountCents,
		Account:     sample.Account,
	}

	engine := NewEngine(rules)
	result := &TestResult{Matched: engine.MatchAll(txn)}
	if result.Matched == nil {
		result.Matched = []Rule{}
	}
	if len(result.Matched) > 0 {
		result.Winner = &result.Matched[0]
	}
	return result, nil
}

const testSampleSize = 20

// TestRuleResult previews one rule against stored transactions.
type TestRuleResult struct {
	Rule    Rule                       `json:"rule"`
	Matched int                        `json:"matched"`
	Sample  []transactions.Transaction `json:"sample"`
}

// TestRule evaluates a single rule against all non-transfer transactions
// without assigning anything. Disabled rules are evaluated as if enabled so
// a rule can be previewed before switching it on.
func (s *Service) TestRule(ctx context.Context, id uuid.UUID) (*TestRuleResult, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate := *rule
	candidate.Enabled = true
	engine := NewEngine([]Rule{candidate})

	result := &TestRuleResult{Rule: *rule, Sample: []transactions.Transaction{}}
	notTransfer := false
	filter := transactions.ListFilter{IsTransfer: &notTransfer, Limit: applyBatchSize}
	for {
		batch, _, err := s.txnRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			if engine.Match(&batch[i]) == nil {
				continue
			}
			result.Matched++
			if len(result.Sample) < testSampleSize {
				result.Sample = append(result.Sample, batch[i])
			}
		}
		if len(batch) < applyBatchSize {
			break
		}
		filter.Offset += applyBatchSize
	}
	return result, nil
}

// ApplyOptions narrows an apply run.
type ApplyOptions struct {
	Account  string     `json:"account,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	DryRun   bool       `json:"dry_run,omitempty"`
}

// ApplyResult summarizes an apply run.
type ApplyResult struct {
	Scanned int `json:"scanned"`
	Tagged  int `json:"tagged"`
	Skipped int `json:"skipped"` // matched but already tagged in that namespace
}

// Apply evaluates every rule against the matching transactions and assigns
// the winning rule's tag. Transactions that already carry a tag in the
// winning rule's namespace are left alone; transfers are never tagged.
func (s *Service) Apply(ctx context.Context, opts ApplyOptions) (*ApplyResult, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	engine := NewEngine(rules)

	result := &ApplyResult{}
	matchCounts := make(map[uuid.UUID]int)

	notTransfer := false
	filter := transactions.ListFilter{
		Account:    opts.Account,
		DateFrom:   opts.DateFrom,
		DateTo:     opts.DateTo,
		IsTransfer: &notTransfer,
		Limit:      applyBatchSize,
	}

	for {
		batch, _, err := s.txnRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			txn := &batch[i]
			result.Scanned++

			rule := engine.Match(txn)
			if rule == nil {
				continue
			}
			if hasNamespaceTag(txn, rule.TagNamespace) {
				result.Skipped++
				continue
			}

			if !opts.DryRun {
				if err := s.tagRepo.Assign(ctx, txn.ID, rule.TagID, nil); err != nil {
					return nil, fmt.Errorf("failed to tag transaction %s: %w", txn.ID, err)
				}
			}
			matchCounts[rule.ID]++
			result.Tagged++
		}

		if len(batch) < applyBatchSize {
			break
		}
		filter.Offset += applyBatchSize
	}

	if !opts.DryRun {
		if err := s.repo.RecordMatches(ctx, matchCounts); err != nil {
			s.logger.Warn("failed to record rule match counts", "error", err)
		}
		if s.metrics != nil {
			s.metrics.RuleApplies.Add(float64(result.Tagged))
		}
	}

	s.logger.Info("rule apply run finished",
		"scanned", result.Scanned, "tagged", result.Tagged,
		"skipped", result.Skipped, "dry_run", opts.DryRun)
	return result, nil
}

func hasNamespaceTag(txn *transactions.Transaction, namespace string) bool {
	for _, ref := range txn.Tags {
		if ref.Namespace == namespace {
			return true
		}
	}
	return false
}
