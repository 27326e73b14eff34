package transfers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/pkg/metrics"
)

// Service produces transfer suggestions and manages marks.
type Service struct {
	repo       Repository
	windowDays int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService creates a transfer service. metrics may be nil.
func NewService(repo Repository, windowDays int, m *metrics.Metrics, logger *slog.Logger) *Service {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Service{repo: repo, windowDays: windowDays, metrics: m, logger: logger}
}

// Suggestions scans unmarked transactions for offsetting pairs.
func (s *Service) Suggestions(ctx context.Context, from, to *time.Time, limit int) ([]Suggestion, error) {
	candidates, err := s.repo.Candidates(ctx, from, to)
	if err != nil {
		return nil, err
	}

	suggestions := FindPairs(candidates, s.windowDays)
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// Mark links two transactions as a transfer pair.
func (s *Service) Mark(ctx context.Context, aID, bID uuid.UUID) error {
	if err := s.repo.Link(ctx, aID, bID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.TransfersMarked.Inc()
	}
	s.logger.Info("marked transfer pair", "a", aID, "b", bID)
	return nil
}

// Unmark clears a transfer mark from a transaction and its partner.
func (s *Service) Unmark(ctx context.Context, id uuid.UUID) error {
	return s.repo.Unlink(ctx, id)
}

// Stats summarizes marked transfers.
func (s *Service) Stats(ctx context.Context) (*TransferStats, error) {
	return s.repo.Stats(ctx)
}
