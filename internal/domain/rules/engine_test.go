package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func txn(merchant, desc string, cents int64, account string) *transactions.Transaction {
	return &transactions.Transaction{
		Merchant:    merchant,
		Description: desc,
		AmountCents: cents,
		Account:     account,
	}
}

func TestRuleMatchesSubstringCaseInsensitive(t *testing.T) {
	rule := Rule{MerchantPattern: strPtr("starbucks"), MatchAll: true, Enabled: true}

	assert.True(t, rule.Matches(txn("STARBUCKS STORE 1234", "", -450, "checking")))
	assert.True(t, rule.Matches(txn("Starbucks Coffee", "", -450, "checking")))
	assert.False(t, rule.Matches(txn("DUNKIN DONUTS", "", -450, "checking")))
}

func TestRuleMatchAllRequiresEveryPredicate(t *testing.T) {
	rule := Rule{
		MerchantPattern: strPtr("amazon"),
		AmountMaxCents:  i64Ptr(-5000),
		MatchAll:        true,
		Enabled:         true,
	}

	assert.True(t, rule.Matches(txn("AMAZON MARKETPLACE", "", -7500, "cc")))
	assert.False(t, rule.Matches(txn("AMAZON MARKETPLACE", "", -1000, "cc")), "amount predicate fails")
	assert.False(t, rule.Matches(txn("TARGET", "", -7500, "cc")), "merchant predicate fails")
}

func TestRuleMatchAnyNeedsOnePredicate(t *testing.T) {
	rule := Rule{
		MerchantPattern:    strPtr("uber"),
		DescriptionPattern: strPtr("lyft"),
		MatchAll:           false,
		Enabled:            true,
	}

	assert.True(t, rule.Matches(txn("UBER TRIP", "", -1200, "cc")))
	assert.True(t, rule.Matches(txn("SOMETHING", "LYFT RIDE THU", -900, "cc")))
	assert.False(t, rule.Matches(txn("TAXI CO", "CAB FARE", -900, "cc")))
}

func TestRuleAmountBoundsInclusive(t *testing.T) {
	rule := Rule{
		AmountMinCents: i64Ptr(-10000),
		AmountMaxCents: i64Ptr(-5000),
		MatchAll:       true,
		Enabled:        true,
	}

	assert.True(t, rule.Matches(txn("", "X", -5000, "")), "upper bound inclusive")
	assert.True(t, rule.Matches(txn("", "X", -10000, "")), "lower bound inclusive")
	assert.False(t, rule.Matches(txn("", "X", -4999, "")))
	assert.False(t, rule.Matches(txn("", "X", -10001, "")))
}

func TestRuleAccountPredicate(t *testing.T) {
	rule := Rule{Account: strPtr("Checking"), MatchAll: true, Enabled: true}

	assert.True(t, rule.Matches(txn("X", "X", -100, "checking")))
	assert.False(t, rule.Matches(txn("X", "X", -100, "savings")))
}

func TestRuleNoPredicatesNeverMatches(t *testing.T) {
	rule := Rule{MatchAll: true, Enabled: true}
	assert.False(t, rule.Matches(txn("ANYTHING", "ANYTHING", -1, "any")))
	assert.False(t, rule.HasPredicate())
}

func TestEnginePriorityOrder(t *testing.T) {
	base := time.Now()
	low := Rule{
		ID:              uuid.New(),
		Name:            "generic coffee",
		MerchantPattern: strPtr("coffee"),
		Priority:        1,
		Enabled:         true,
		CreatedAt:       base,
		TagValue:        "dining",
	}
	high := Rule{
		ID:              uuid.New(),
		Name:            "office coffee",
		MerchantPattern: strPtr("coffee"),
		Priority:        10,
		Enabled:         true,
		CreatedAt:       base.Add(time.Minute),
		TagValue:        "work",
	}

	engine := NewEngine([]Rule{low, high})
	winner := engine.Match(txn("COFFEE CORNER", "", -300, ""))
	require.NotNil(t, winner)
	assert.Equal(t, "office coffee", winner.Name, "higher priority wins")
}

func TestEngineCreationOrderBreaksTies(t *testing.T) {
	base := time.Now()
	first := Rule{
		ID:              uuid.New(),
		Name:            "first",
		MerchantPattern: strPtr("shop"),
		Priority:        5,
		Enabled:         true,
		CreatedAt:       base,
	}
	second := Rule{
		ID:              uuid.New(),
		Name:            "second",
		MerchantPattern: strPtr("shop"),
		Priority:        5,
		Enabled:         true,
		CreatedAt:       base.Add(time.Second),
	}

	// Input order must not matter.
	engine := NewEngine([]Rule{second, first})
	winner := engine.Match(txn("SHOP RITE", "", -100, ""))
	require.NotNil(t, winner)
	assert.Equal(t, "first", winner.Name)
}

func TestEngineSkipsDisabledRules(t *testing.T) {
	disabled := Rule{
		ID:              uuid.New(),
		Name:            "disabled",
		MerchantPattern: strPtr("netflix"),
		Priority:        100,
		Enabled:         false,
	}
	enabled := Rule{
		ID:              uuid.New(),
		Name:            "enabled",
		MerchantPattern: strPtr("netflix"),
		Priority:        1,
		Enabled:         true,
	}

	engine := NewEngine([]Rule{disabled, enabled})
	winner := engine.Match(txn("NETFLIX.COM", "", -1299, ""))
	require.NotNil(t, winner)
	assert.Equal(t, "enabled", winner.Name)
}

func TestEngineNoMatch(t *testing.T) {
	engine := NewEngine([]Rule{{
		ID:              uuid.New(),
		MerchantPattern: strPtr("spotify"),
		Enabled:         true,
	}})
	assert.Nil(t, engine.Match(txn("APPLE.COM", "", -999, "")))
}

func TestEngineMatchAllReturnsEvaluationOrder(t *testing.T) {
	a := Rule{ID: uuid.New(), Name: "a", MerchantPattern: strPtr("store"), Priority: 10, Enabled: true}
	b := Rule{ID: uuid.New(), Name: "b", DescriptionPattern: strPtr("store"), Priority: 5, Enabled: true}

	engine := NewEngine([]Rule{b, a})
	matched := engine.MatchAll(txn("STORE ONE", "STORE ONE PURCHASE", -100, ""))
	require.Len(t, matched, 2)
	assert.Equal(t, "a", matched[0].Name)
	assert.Equal(t, "b", matched[1].Name)
}

func TestValidate(t *testing.T) {
	tagID := uuid.New()

	valid := &Rule{Name: "ok", MerchantPattern: strPtr("x"), TagID: tagID}
	assert.NoError(t, Validate(valid))

	assert.Error(t, Validate(&Rule{Name: "", MerchantPattern: strPtr("x"), TagID: tagID}))
	assert.Error(t, Validate(&Rule{Name: "no predicates", TagID: tagID}))
	assert.Error(t, Validate(&Rule{Name: "no tag", MerchantPattern: strPtr("x")}))
	assert.Error(t, Validate(&Rule{
		Name:           "inverted bounds",
		AmountMinCents: i64Ptr(100),
		AmountMaxCents: i64Ptr(-100),
		TagID:          tagID,
	}))
}
