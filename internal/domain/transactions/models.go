// Package transactions holds the core transaction model shared by the import,
// tagging and transfer flows, plus its persistence and query surface.
package transactions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transaction is a single ledger entry. Amounts are signed cents: spending is
// negative, income positive.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	Date            time.Time  `json:"date"`
	AmountCents     int64      `json:"amount_cents"`
	Description     string     `json:"description"`
	Merchant        string     `json:"merchant"`
	Account         string     `json:"account"`
	ContentHash     string     `json:"content_hash"`
	IsTransfer      bool       `json:"is_transfer"`
	LinkedID        *uuid.UUID `json:"linked_transaction_id,omitempty"`
	ImportSessionID *uuid.UUID `json:"import_session_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Tags []TagRef `json:"tags,omitempty"`
}

// TagRef is a tag assignment as seen from a transaction. AmountCents is set
// only for split assignments covering part of the amount.
type TagRef struct {
	TagID       uuid.UUID `json:"tag_id"`
	Namespace   string    `json:"namespace"`
	Value       string    `json:"value"`
	AmountCents *int64    `json:"amount_cents,omitempty"`
}

// ComputeContentHash derives the stable duplicate-detection hash from the
// identity fields. The description is case-folded and whitespace-normalized
// so cosmetic differences between exports of the same statement do not defeat
// dedup.
func ComputeContentHash(account string, date time.Time, amountCents int64, description string) string {
	desc := strings.ToUpper(strings.Join(strings.Fields(description), " "))
	payload := fmt.Sprintf("%s|%s|%d|%s", account, date.Format(time.DateOnly), amountCents, desc)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// RecomputeHash refreshes ContentHash after identity fields changed.
func (t *Transaction) RecomputeHash() {
	t.ContentHash = ComputeContentHash(t.Account, t.Date, t.AmountCents, t.Description)
}

// ListFilter narrows List queries. Nil/zero fields are ignored.
type ListFilter struct {
	Account      string
	DateFrom     *time.Time
	DateTo       *time.Time
	MinCents     *int64
	MaxCents     *int64
	Search       string // substring on description and merchant
	TagNamespace string
	TagValue     string
	Untagged     bool // only transactions with no tag in TagNamespace
	IsTransfer   *bool
	SessionID    *uuid.UUID
	Limit        int
	Offset       int
}

// Patch is a partial update; nil fields are left untouched. Changing any of
// the identity fields re-derives the content hash.
type Patch struct {
	Date        *time.Time `json:"date,omitempty"`
	AmountCents *int64     `json:"amount_cents,omitempty"`
	Description *string    `json:"description,omitempty"`
	Merchant    *string    `json:"merchant,omitempty"`
	Account     *string    `json:"account,omitempty"`
}

// BucketStat aggregates spending per bucket tag value over a period.
type BucketStat struct {
	Bucket     string `json:"bucket"`
	Count      int    `json:"count"`
	TotalCents int64  `json:"total_cents"`
}

// Stats summarizes a period.
type Stats struct {
	From          time.Time    `json:"from"`
	To            time.Time    `json:"to"`
	Count         int          `json:"count"`
	IncomeCents   int64        `json:"income_cents"`
	ExpenseCents  int64        `json:"expense_cents"`
	UntaggedCount int          `json:"untagged_count"`
	Buckets       []BucketStat `json:"buckets"`
}
