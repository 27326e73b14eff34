// Package transfers detects offsetting transaction pairs that represent
// money moving between the user's own accounts, so they can be excluded from
// spending statistics. Suggestions are never applied automatically.
package transfers

import (
	"fmt"
	"sort"
	"time"

	"github.com/maxwell-labs/maxwells-wallet/internal/domain/transactions"
	"github.com/maxwell-labs/maxwells-wallet/pkg/money"
)

// DefaultWindowDays is how far apart the two sides of a transfer may post.
const DefaultWindowDays = 2

// Suggestion is a candidate transfer pair. Out is the negative side, In the
// positive side.
type Suggestion struct {
	Out           transactions.Transaction `json:"out"`
	In            transactions.Transaction `json:"in"`
	DateDeltaDays int                      `json:"date_delta_days"`
	Reason        string                   `json:"reason"`
}

// FindPairs scans unmarked transactions for offsetting pairs: exactly negated
// amounts, different accounts, posted within windowDays of each other. Each
// transaction appears in at most one suggestion; closer dates win, then
// larger amounts. The result is deterministic for a given input.
func FindPairs(txns []transactions.Transaction, windowDays int) []Suggestion {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	inflows := make(map[int64][]*transactions.Transaction)
	var outflows []*transactions.Transaction
	for i := range txns {
		t := &txns[i]
		if t.IsTransfer || t.AmountCents == 0 {
			continue
		}
		if t.AmountCents > 0 {
			inflows[t.AmountCents] = append(inflows[t.AmountCents], t)
		} else {
			outflows = append(outflows, t)
		}
	}

	type candidate struct {
		out   *transactions.Transaction
		in    *transactions.Transaction
		delta int
	}
	var candidates []candidate

	for _, out := range outflows {
		for _, in := range inflows[-out.AmountCents] {
			if in.Account == out.Account {
				continue
			}
			delta := daysApart(out.Date, in.Date)
			if delta > windowDays {
				continue
			}
			candidates = append(candidates, candidate{out: out, in: in, delta: delta})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].delta != candidates[j].delta {
			return candidates[i].delta < candidates[j].delta
		}
		if candidates[i].out.AmountCents != candidates[j].out.AmountCents {
			// More negative first: bigger transfers surface earlier.
			return candidates[i].out.AmountCents < candidates[j].out.AmountCents
		}
		return candidates[i].out.Date.Before(candidates[j].out.Date)
	})

	used := make(map[string]bool)
	var suggestions []Suggestion
	for _, c := range candidates {
		if used[c.out.ID.String()] || used[c.in.ID.String()] {
			continue
		}
		used[c.out.ID.String()] = true
		used[c.in.ID.String()] = true

		suggestions = append(suggestions, Suggestion{
			Out:           *c.out,
			In:            *c.in,
			DateDeltaDays: c.delta,
			Reason:        matchReason(c.out.AmountCents, c.delta),
		})
	}
	return suggestions
}

func daysApart(a, b time.Time) int {
	da := a.Truncate(24 * time.Hour)
	db := b.Truncate(24 * time.Hour)
	days := int(db.Sub(da).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func matchReason(outCents int64, deltaDays int) string {
	amount := money.Format(money.Abs(outCents), money.DefaultCurrency)
	switch deltaDays {
	case 0:
		return fmt.Sprintf("offsetting %s on the same day", amount)
	case 1:
		return fmt.Sprintf("offsetting %s, 1 day apart", amount)
	default:
		return fmt.Sprintf("offsetting %s, %d days apart", amount, deltaDays)
	}
}
