// Package merchants normalizes raw statement merchant strings to canonical
// names via user-defined aliases: exact matches, substring patterns compiled
// into an Aho-Corasick trie, and regular expressions.
package merchants

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// MatchType selects how an alias pattern is applied.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchRegex    MatchType = "regex"
)

// Valid reports whether the match type is known.
func (m MatchType) Valid() bool {
	switch m {
	case MatchExact, MatchContains, MatchRegex:
		return true
	}
	return false
}

// Alias maps a merchant pattern to its canonical display name.
type Alias struct {
	ID            uuid.UUID `json:"id"`
	Pattern       string    `json:"pattern"`
	MatchType     MatchType `json:"match_type"`
	CanonicalName string    `json:"canonical_name"`
	Priority      int       `json:"priority"`
	CreatedAt     time.Time `json:"created_at"`
}

// Engine resolves merchant strings against a compiled alias set. Matching is
// case-insensitive; the highest-priority alias wins, exact before contains
// before regex at equal priority.
type Engine struct {
	mu sync.RWMutex

	exact    map[string]*Alias
	matcher  *ahocorasick.Matcher
	contains []*Alias // same order as the matcher dictionary
	regex    []compiledRegex
}

type compiledRegex struct {
	alias *Alias
	re    *regexp.Regexp
}

// NewEngine compiles an alias set. Invalid regex aliases are reported, not
// silently dropped.
func NewEngine(aliases []Alias) (*Engine, error) {
	e := &Engine{}
	if err := e.Rebuild(aliases); err != nil {
		return nil, err
	}
	return e, nil
}

// Rebuild recompiles the engine from a fresh alias set.
func (e *Engine) Rebuild(aliases []Alias) error {
	exact := make(map[string]*Alias)
	var contains []*Alias
	var regexes []compiledRegex

	sorted := make([]Alias, len(aliases))
	copy(sorted, aliases)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for i := range sorted {
		a := &sorted[i]
		switch a.MatchType {
		case MatchExact:
			key := strings.ToLower(strings.TrimSpace(a.Pattern))
			// Priority order means the first writer wins.
			if _, ok := exact[key]; !ok {
				exact[key] = a
			}
		case MatchContains:
			contains = append(contains, a)
		case MatchRegex:
			re, err := regexp.Compile("(?i)" + a.Pattern)
			if err != nil {
				return fmt.Errorf("alias %q has invalid regex: %w", a.Pattern, err)
			}
			regexes = append(regexes, compiledRegex{alias: a, re: re})
		default:
			return fmt.Errorf("alias %q has unknown match type %q", a.Pattern, a.MatchType)
		}
	}

	var matcher *ahocorasick.Matcher
	if len(contains) > 0 {
		patterns := make([][]byte, len(contains))
		for i, a := range contains {
			patterns[i] = []byte(strings.ToLower(a.Pattern))
		}
		matcher = ahocorasick.NewMatcher(patterns)
	}

	e.mu.Lock()
	e.exact = exact
	e.matcher = matcher
	e.contains = contains
	e.regex = regexes
	e.mu.Unlock()
	return nil
}

// Resolve returns the canonical name for a merchant string and the alias that
// produced it, or ("", nil) when nothing matches.
func (e *Engine) Resolve(merchant string) (string, *Alias) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	normalized := strings.ToLower(strings.TrimSpace(merchant))
	if normalized == "" {
		return "", nil
	}

	var best *Alias
	bestTier := 0
	consider := func(a *Alias, tier int) {
		if best == nil || a.Priority > best.Priority ||
			a.Priority == best.Priority && tier < bestTier {
			best = a
			bestTier = tier
		}
	}

	if a, ok := e.exact[normalized]; ok {
		consider(a, 0)
	}
	if e.matcher != nil {
		for _, idx := range e.matcher.Match([]byte(normalized)) {
			consider(e.contains[idx], 1)
		}
	}
	for _, cr := range e.regex {
		if cr.re.MatchString(merchant) {
			consider(cr.alias, 2)
		}
	}

	if best == nil {
		return "", nil
	}
	return best.CanonicalName, best
}

// SuggestCanonical fuzzy-ranks known canonical names against a raw merchant
// string, for alias-creation UIs. Lower rank distance is better.
func SuggestCanonical(merchant string, canonical []string, limit int) []string {
	if limit <= 0 {
		limit = 5
	}

	type ranked struct {
		name string
		rank int
	}
	var hits []ranked
	for _, name := range canonical {
		if r := fuzzy.RankMatchNormalizedFold(name, merchant); r >= 0 {
			hits = append(hits, ranked{name: name, rank: r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })

	suggestions := make([]string, 0, limit)
	for _, h := range hits {
		suggestions = append(suggestions, h.name)
		if len(suggestions) >= limit {
			break
		}
	}
	return suggestions
}
