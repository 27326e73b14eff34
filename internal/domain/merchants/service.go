package merchants

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Service manages aliases and applies them to stored transactions.
type Service struct {
	repo   Repository
	engine *Engine
	logger *slog.Logger
}

// NewService creates a merchant alias service with a compiled engine.
func NewService(ctx context.Context, repo Repository, logger *slog.Logger) (*Service, error) {
	aliases, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := NewEngine(aliases)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, engine: engine, logger: logger}, nil
}

// List returns all aliases.
func (s *Service) List(ctx context.Context) ([]Alias, error) {
	return s.repo.List(ctx)
}

func validateAlias(alias *Alias) error {
	if strings.TrimSpace(alias.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if strings.TrimSpace(alias.CanonicalName) == "" {
		return fmt.Errorf("canonical_name cannot be empty")
	}
	if !alias.MatchType.Valid() {
		return fmt.Errorf("unknown match type %q", alias.MatchType)
	}
	return nil
}

// Create validates, stores and compiles a new alias.
func (s *Service) Create(ctx context.Context, alias *Alias) error {
	if err := validateAlias(alias); err != nil {
		return err
	}
	// Compile before persisting so bad regexes are rejected up front.
	if _, err := NewEngine([]Alias{*alias}); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, alias); err != nil {
		return err
	}
	return s.rebuild(ctx)
}

// Update validates and persists alias changes.
func (s *Service) Update(ctx context.Context, alias *Alias) error {
	if err := validateAlias(alias); err != nil {
		return err
	}
	if _, err := NewEngine([]Alias{*alias}); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, alias); err != nil {
		return err
	}
	return s.rebuild(ctx)
}

// Delete removes an alias.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.rebuild(ctx)
}

func (s *Service) rebuild(ctx context.Context) error {
	aliases, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	return s.engine.Rebuild(aliases)
}

// Resolve maps a raw merchant string to its canonical name, or returns the
// input unchanged when no alias matches.
func (s *Service) Resolve(merchant string) string {
	if canonical, alias := s.engine.Resolve(merchant); alias != nil {
		return canonical
	}
	return merchant
}

// ApplyResult summarizes an alias apply run.
type ApplyResult struct {
	MerchantsSeen       int   `json:"merchants_seen"`
	MerchantsRewritten  int   `json:"merchants_rewritten"`
	TransactionsTouched int64 `json:"transactions_touched"`
}

// Apply rewrites stored transaction merchants through the alias engine.
func (s *Service) Apply(ctx context.Context) (*ApplyResult, error) {
	merchants, err := s.repo.DistinctMerchants(ctx)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{MerchantsSeen: len(merchants)}
	for _, m := range merchants {
		canonical, alias := s.engine.Resolve(m)
		if alias == nil || canonical == m {
			continue
		}
		touched, err := s.repo.RenameMerchant(ctx, m, canonical)
		if err != nil {
			return nil, err
		}
		result.MerchantsRewritten++
		result.TransactionsTouched += touched
	}

	s.logger.Info("merchant alias apply run finished",
		"seen", result.MerchantsSeen,
		"rewritten", result.MerchantsRewritten,
		"transactions", result.TransactionsTouched)
	return result, nil
}

// Suggest fuzzy-ranks existing canonical names for a raw merchant string.
func (s *Service) Suggest(ctx context.Context, merchant string, limit int) ([]string, error) {
	aliases, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var canonical []string
	for _, a := range aliases {
		if !seen[a.CanonicalName] {
			seen[a.CanonicalName] = true
			canonical = append(canonical, a.CanonicalName)
		}
	}
	return SuggestCanonical(merchant, canonical, limit), nil
}
