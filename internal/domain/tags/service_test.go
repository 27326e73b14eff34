package tags

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
)

type fakeTagRepo struct {
	tags        map[uuid.UUID]*Tag
	assignments map[uuid.UUID][]Assignment
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{
		tags:        make(map[uuid.UUID]*Tag),
		assignments: make(map[uuid.UUID][]Assignment),
	}
}

func (f *fakeTagRepo) List(ctx context.Context, namespace Namespace) ([]Tag, error) {
	var out []Tag
	for _, t := range f.tags {
		if namespace == "" || t.Namespace == namespace {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTagRepo) GetByID(ctx context.Context, id uuid.UUID) (*Tag, error) {
	t, ok := f.tags[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeTagRepo) Create(ctx context.Context, tag *Tag) error {
	for _, t := range f.tags {
		if t.Namespace == tag.Namespace && t.Value == tag.Value {
			return ErrDuplicateTag
		}
	}
	tag.ID = uuid.New()
	f.tags[tag.ID] = tag
	return nil
}

func (f *fakeTagRepo) Ensure(ctx context.Context, namespace Namespace, value string) (*Tag, error) {
	for _, t := range f.tags {
		if t.Namespace == namespace && t.Value == value {
			return t, nil
		}
	}
	t := &Tag{ID: uuid.New(), Namespace: namespace, Value: value}
	f.tags[t.ID] = t
	return t, nil
}

func (f *fakeTagRepo) Rename(ctx context.Context, id uuid.UUID, value string) error {
	t, ok := f.tags[id]
	if !ok {
		return sql.ErrNoRows
	}
	for _, other := range f.tags {
		if other.ID != id && other.Namespace == t.Namespace && other.Value == value {
			return ErrDuplicateTag
		}
	}
	t.Value = value
	return nil
}

func (f *fakeTagRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.tags, id)
	return nil
}

func (f *fakeTagRepo) Assign(ctx context.Context, txnID, tagID uuid.UUID, amountCents *int64) error {
	tag := f.tags[tagID]
	f.assignments[txnID] = append(f.assignments[txnID], Assignment{
		TransactionID: txnID,
		TagID:         tagID,
		Namespace:     tag.Namespace,
		Value:         tag.Value,
		AmountCents:   amountCents,
	})
	return nil
}

func (f *fakeTagRepo) Unassign(ctx context.Context, txnID, tagID uuid.UUID) error {
	kept := f.assignments[txnID][:0]
	for _, a := range f.assignments[txnID] {
		if a.TagID != tagID {
			kept = append(kept, a)
		}
	}
	f.assignments[txnID] = kept
	return nil
}

func (f *fakeTagRepo) Assignments(ctx context.Context, txnID uuid.UUID) ([]Assignment, error) {
	return f.assignments[txnID], nil
}

type fakeTxnRepo struct {
	txns map[uuid.UUID]*transactions.Transaction
}

func (f *fakeTxnRepo) InsertBatch(ctx context.Context, txns []*transactions.Transaction) error {
	return nil
}

func (f *fakeTxnRepo) ExistingHashes(ctx context.Context, account string, hashes []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (f *fakeTxnRepo) List(ctx context.Context, filter transactions.ListFilter) ([]transactions.Transaction, int, error) {
	return nil, 0, nil
}

func (f *fakeTxnRepo) GetByID(ctx context.Context, id uuid.UUID) (*transactions.Transaction, error) {
	t, ok := f.txns[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeTxnRepo) Update(ctx context.Context, txn *transactions.Transaction) error { return nil }
func (f *fakeTxnRepo) Delete(ctx context.Context, id uuid.UUID) error                  { return nil }
func (f *fakeTxnRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeTxnRepo) Stats(ctx context.Context, from, to time.Time) (*transactions.Stats, error) {
	return &transactions.Stats{}, nil
}

func newTestService(t *testing.T) (*Service, *fakeTagRepo, *transactions.Transaction) {
	t.Helper()
	tagRepo := newFakeTagRepo()
	txn := &transactions.Transaction{
		ID:          uuid.New(),
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		AmountCents: -10000,
		Description: "COSTCO WHOLESALE",
		Account:     "checking",
	}
	txnRepo := &fakeTxnRepo{txns: map[uuid.UUID]*transactions.Transaction{txn.ID: txn}}
	svc := NewService(tagRepo, txnRepo, slog.Default())
	return svc, tagRepo, txn
}

func i64(v int64) *int64 { return &v }

func TestCreateRejectsUnknownNamespace(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "color", "red")
	assert.Error(t, err)

	_, err = svc.Create(context.Background(), "bucket", "   ")
	assert.Error(t, err, "blank values are rejected")
}

func TestAssignWithoutSplit(t *testing.T) {
	svc, repo, txn := newTestService(t)

	tag, err := svc.Assign(context.Background(), txn.ID, "bucket", "groceries", nil)
	require.NoError(t, err)
	assert.Equal(t, NamespaceBucket, tag.Namespace)

	assignments, err := repo.Assignments(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Nil(t, assignments[0].AmountCents)
}

func TestSplitSignMustMatchTransaction(t *testing.T) {
	svc, _, txn := newTestService(t)

	// txn is -100.00; a positive split contradicts it.
	_, err := svc.Assign(context.Background(), txn.ID, "bucket", "groceries", i64(4000))
	assert.Error(t, err)

	_, err = svc.Assign(context.Background(), txn.ID, "bucket", "groceries", i64(0))
	assert.Error(t, err, "zero splits are meaningless")

	_, err = svc.Assign(context.Background(), txn.ID, "bucket", "groceries", i64(-4000))
	assert.NoError(t, err)
}

func TestSplitsCannotExceedTransactionAmount(t *testing.T) {
	svc, _, txn := newTestService(t)

	_, err := svc.Assign(context.Background(), txn.ID, "bucket", "groceries", i64(-7000))
	require.NoError(t, err)

	// 70 + 40 would overshoot the 100.00 transaction.
	_, err = svc.Assign(context.Background(), txn.ID, "bucket", "household", i64(-4000))
	assert.Error(t, err)

	// 70 + 30 covers it exactly.
	_, err = svc.Assign(context.Background(), txn.ID, "bucket", "household", i64(-3000))
	assert.NoError(t, err)
}

func TestSplitBudgetIsPerNamespace(t *testing.T) {
	svc, _, txn := newTestService(t)

	_, err := svc.Assign(context.Background(), txn.ID, "bucket", "groceries", i64(-10000))
	require.NoError(t, err)

	// A different namespace has its own allocation budget.
	_, err = svc.Assign(context.Background(), txn.ID, "occasion", "road-trip", i64(-10000))
	assert.NoError(t, err)
}

func TestAssignUnknownTransaction(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Assign(context.Background(), uuid.New(), "bucket", "groceries", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRenameTag(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tag, err := svc.Create(ctx, "bucket", "grocceries")
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, tag.ID, "  groceries ")
	require.NoError(t, err)
	assert.Equal(t, "groceries", renamed.Value, "value is trimmed")
	assert.Equal(t, NamespaceBucket, renamed.Namespace)

	_, err = svc.Rename(ctx, tag.ID, "   ")
	assert.Error(t, err, "blank values are rejected")

	_, err = svc.Rename(ctx, uuid.New(), "dining")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRenameTagToExistingValue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "bucket", "groceries")
	require.NoError(t, err)
	tag, err := svc.Create(ctx, "bucket", "dining")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, tag.ID, "groceries")
	assert.ErrorIs(t, err, ErrDuplicateTag)
}
