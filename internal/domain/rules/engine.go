// Package rules implements the tag rule engine: declarative predicates that
// assign tags to transactions during import or on demand.
package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
)

// Rule assigns a tag when its predicates match. A predicate left nil/empty is
// absent. With MatchAll every present predicate must hold; otherwise one is
// enough. Amount bounds are inclusive and in signed cents.
type Rule struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	MerchantPattern    *string    `json:"merchant_pattern,omitempty"`
	DescriptionPattern *string    `json:"description_pattern,omitempty"`
	AmountMinCents     *int64     `json:"amount_min_cents,omitempty"`
	AmountMaxCents     *int64     `json:"amount_max_cents,omitempty"`
	Account            *string    `json:"account,omitempty"`
	MatchAll           bool       `json:"match_all"`
	Priority           int        `json:"priority"`
	Enabled            bool       `json:"enabled"`
	TagID              uuid.UUID  `json:"tag_id"`
	TagNamespace       string     `json:"tag_namespace,omitempty"`
	TagValue           string     `json:"tag_value,omitempty"`
	MatchCount         int        `json:"match_count"`
	LastMatchedAt      *time.Time `json:"last_matched_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// HasPredicate reports whether at least one predicate is present.
func (r *Rule) HasPredicate() bool {
	return r.MerchantPattern != nil && strings.TrimSpace(*r.MerchantPattern) != "" ||
		r.DescriptionPattern != nil && strings.TrimSpace(*r.DescriptionPattern) != "" ||
		r.AmountMinCents != nil ||
		r.AmountMaxCents != nil ||
		r.Account != nil && strings.TrimSpace(*r.Account) != ""
}

// Matches evaluates the rule against a transaction. Pattern predicates are
// case-insensitive substring matches.
func (r *Rule) Matches(txn *transactions.Transaction) bool {
	type check struct {
		present bool
		ok      bool
	}

	checks := []check{
		{
			present: r.MerchantPattern != nil && *r.MerchantPattern != "",
			ok: r.MerchantPattern != nil &&
				containsFold(txn.Merchant, *r.MerchantPattern),
		},
		{
			present: r.DescriptionPattern != nil && *r.DescriptionPattern != "",
			ok: r.DescriptionPattern != nil &&
				containsFold(txn.Description, *r.DescriptionPattern),
		},
		{
			present: r.AmountMinCents != nil,
			ok:      r.AmountMinCents != nil && txn.AmountCents >= *r.AmountMinCents,
		},
		{
			present: r.AmountMaxCents != nil,
			ok:      r.AmountMaxCents != nil && txn.AmountCents <= *r.AmountMaxCents,
		},
		{
			present: r.Account != nil && *r.Account != "",
			ok:      r.Account != nil && strings.EqualFold(txn.Account, *r.Account),
		},
	}

	anyPresent := false
	for _, c := range checks {
		if !c.present {
			continue
		}
		anyPresent = true
		if r.MatchAll && !c.ok {
			return false
		}
		if !r.MatchAll && c.ok {
			return true
		}
	}
	if !anyPresent {
		return false
	}
	return r.MatchAll
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Engine evaluates an ordered rule set. First match wins.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine from the given rules. Disabled rules are dropped
// and the rest ordered by priority descending, then creation order.
func NewEngine(rules []Rule) *Engine {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID.String() < active[j].ID.String()
	})
	return &Engine{rules: active}
}

// Match returns the first matching rule, or nil.
func (e *Engine) Match(txn *transactions.Transaction) *Rule {
	for i := range e.rules {
		if e.rules[i].Matches(txn) {
			return &e.rules[i]
		}
	}
	return nil
}

// MatchAll returns every matching rule in evaluation order, for rule testing
// and diagnostics.
func (e *Engine) MatchAll(txn *transactions.Transaction) []Rule {
	var matched []Rule
	for i := range e.rules {
		if e.rules[i].Matches(txn) {
			matched = append(matched, e.rules[i])
		}
	}
	return matched
}

// Rules returns the active rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}
