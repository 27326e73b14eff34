package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service wraps the repository with hash maintenance and search indexing.
type Service struct {
	repo   Repository
	search *SearchIndex
	logger *slog.Logger
}

// NewService creates a transaction service. search may be nil to disable
// full-text indexing.
func NewService(repo Repository, search *SearchIndex, logger *slog.Logger) *Service {
	return &Service{repo: repo, search: search, logger: logger}
}

// List returns transactions matching the filter and the unpaginated total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Get returns one transaction with its tags.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

// Patch applies a partial update. Touching date, amount, description or
// account re-derives the content hash so dedup stays consistent.
func (s *Service) Patch(ctx context.Context, id uuid.UUID, patch Patch) (*Transaction, error) {
	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	identityChanged := false
	if patch.Date != nil {
		txn.Date = *patch.Date
		identityChanged = true
	}
	if patch.AmountCents != nil {
		txn.AmountCents = *patch.AmountCents
		identityChanged = true
	}
	if patch.Description != nil {
		txn.Description = *patch.Description
		identityChanged = true
	}
	if patch.Account != nil {
		txn.Account = *patch.Account
		identityChanged = true
	}
	if patch.Merchant != nil {
		txn.Merchant = *patch.Merchant
	}

	if identityChanged {
		txn.RecomputeHash()
	}

	if err := s.repo.Update(ctx, txn); err != nil {
		return nil, err
	}
	s.reindex(*txn)
	return txn, nil
}

// Delete removes a transaction and its search document.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.Remove(id); err != nil {
			s.logger.Warn("failed to remove transaction from search index", "id", id, "error", err)
		}
	}
	return nil
}

// Stats aggregates a date range. A zero range defaults to the last 30 days.
func (s *Service) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	if from.IsZero() && to.IsZero() {
		to = time.Now()
		from = to.AddDate(0, 0, -30)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: end before start")
	}
	return s.repo.Stats(ctx, from, to)
}

// Search resolves full-text hits back to full transactions, preserving rank.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Transaction, error) {
	if s.search == nil {
		return nil, fmt.Errorf("search index is not enabled")
	}

	hits, err := s.search.Search(query, limit)
	if err != nil {
		return nil, err
	}

	txns := make([]Transaction, 0, len(hits))
	for _, hit := range hits {
		txn, err := s.repo.GetByID(ctx, hit.ID)
		if err != nil {
			// Index can lag behind deletes.
			continue
		}
		txns = append(txns, *txn)
	}
	return txns, nil
}

// RemoveFromIndex drops ids from the search index after bulk deletes.
func (s *Service) RemoveFromIndex(ids ...uuid.UUID) {
	if s.search == nil || len(ids) == 0 {
		return
	}
	if err := s.search.Remove(ids...); err != nil {
		s.logger.Warn("failed to remove transactions from search index", "count", len(ids), "error", err)
	}
}

// IndexAll feeds a batch into the search index, used after imports.
func (s *Service) IndexAll(txns []Transaction) {
	if s.search == nil || len(txns) == 0 {
		return
	}
	if err := s.search.Index(txns...); err != nil {
		s.logger.Warn("failed to index transactions", "count", len(txns), "error", err)
	}
}

func (s *Service) reindex(txn Transaction) {
	if s.search == nil {
		return
	}
	if err := s.search.Index(txn); err != nil {
		s.logger.Warn("failed to reindex transaction", "id", txn.ID, "error", err)
	}
}
