package tags

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
	"github.com/maxwell-labs/maxwells-wallet/pkg/money"
)

// Service validates tag operations and split allocations.
type Service struct {
	repo    Repository
	txnRepo transactions.Repository
	logger  *slog.Logger
}

// NewService creates a tag service.
func NewService(repo Repository, txnRepo transactions.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, txnRepo: txnRepo, logger: logger}
}

// List returns tags with usage counts, optionally filtered by namespace.
func (s *Service) List(ctx context.Context, namespace string) ([]Tag, error) {
	ns := Namespace(namespace)
	if namespace != "" && !ns.Valid() {
		return nil, fmt.Errorf("unknown namespace %q", namespace)
	}
	return s.repo.List(ctx, ns)
}

// Create validates and inserts a new tag. Values are trimmed; empty values
// and unknown namespaces are rejected.
func (s *Service) Create(ctx context.Context, namespace, value string) (*Tag, error) {
	ns := Namespace(namespace)
	if !ns.Valid() {
		return nil, fmt.Errorf("unknown namespace %q", namespace)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("tag value cannot be empty")
	}

	tag := &Tag{Namespace: ns, Value: value}
	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Ensure returns namespace:value, creating the tag if needed.
func (s *Service) Ensure(ctx context.Context, namespace Namespace, value string) (*Tag, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("tag value cannot be empty")
	}
	return s.repo.Ensure(ctx, namespace, value)
}

// Get returns one tag.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tag, error) {
	return s.repo.GetByID(ctx, id)
}

// Rename changes a tag's value. The namespace is immutable; retagging across
// namespaces means creating a new tag.
func (s *Service) Rename(ctx context.Context, id uuid.UUID, value string) (*Tag, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("tag value cannot be empty")
	}
	if err := s.repo.Rename(ctx, id, value); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a tag and all its assignments.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Assign tags a transaction. A non-nil amount creates a split allocation;
// split amounts must carry the transaction's sign and the absolute sum of all
// splits for the namespace may not exceed the transaction amount.
func (s *Service) Assign(ctx context.Context, txnID uuid.UUID, namespace, value string, amountCents *int64) (*Tag, error) {
	ns := Namespace(namespace)
	if !ns.Valid() {
		return nil, fmt.Errorf("unknown namespace %q", namespace)
	}

	txn, err := s.txnRepo.GetByID(ctx, txnID)
	if err != nil {
		return nil, err
	}

	if amountCents != nil {
		if err := s.validateSplit(ctx, txn, ns, *amountCents); err != nil {
			return nil, err
		}
	}

	tag, err := s.Ensure(ctx, ns, value)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Assign(ctx, txnID, tag.ID, amountCents); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *Service) validateSplit(ctx context.Context, txn *transactions.Transaction, ns Namespace, amountCents int64) error {
	if amountCents == 0 {
		return fmt.Errorf("split amount cannot be zero")
	}
	if txn.AmountCents > 0 && amountCents < 0 || txn.AmountCents < 0 && amountCents > 0 {
		return fmt.Errorf("split amount must match the transaction sign")
	}

	existing, err := s.repo.Assignments(ctx, txn.ID)
	if err != nil {
		return err
	}

	var allocated int64
	for _, a := range existing {
		if a.Namespace == ns && a.AmountCents != nil {
			allocated += *a.AmountCents
		}
	}
	if money.Abs(allocated+amountCents) > money.Abs(txn.AmountCents) {
		return fmt.Errorf("split allocations exceed the transaction amount")
	}
	return nil
}

// Unassign removes a tag from a transaction.
func (s *Service) Unassign(ctx context.Context, txnID, tagID uuid.UUID) error {
	return s.repo.Unassign(ctx, txnID, tagID)
}

// Assignments lists the tags on a transaction.
func (s *Service) Assignments(ctx context.Context, txnID uuid.UUID) ([]Assignment, error) {
	return s.repo.Assignments(ctx, txnID)
}
