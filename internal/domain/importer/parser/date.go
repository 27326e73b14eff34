package parser

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order when no explicit layout is configured.
// Day-first layouts come before month-first so European statements win ties
// only when the day is unambiguous; DetectDateLayout resolves the rest.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
	"2006/01/02",
	"02.01.2006",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"01/02/2006 15:04",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate parses a date string. A configured layout is tried first; the
// common layouts are the fallback.
func ParseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %s", s)
}

// DetectDateLayout picks the layout that parses the largest share of the
// samples. Ties keep the earlier layout in the list. Returns "" when nothing
// parses at all.
func DetectDateLayout(samples []string) string {
	best := ""
	bestHits := 0
	for _, layout := range dateLayouts {
		hits := 0
		for _, s := range samples {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, err := time.Parse(layout, s); err == nil {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best = layout
		}
	}
	return best
}
