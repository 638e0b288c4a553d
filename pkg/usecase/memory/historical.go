package memory

import "strings"

// historicalMarkers are phrases that signal the user is asking about
// their own past rather than their present state. Matching is lexical
// and intentionally cheap; it runs on every chat turn.
var historicalMarkers = []string{
	"before",
	"previously",
	"used to",
	"old",
	"past",
	"prior",
	"earlier",
	"last time",
	"back then",
	"formerly",
	"previous",
	"history",
	"what was",
	"where did i",
	"who did i",
	"when did i",
	"what did i",
}

// IsHistoricalQuery reports whether the query asks about past state.
// Historical queries widen retrieval to include superseded memories so
// questions like "where did I live before?" can be answered from
// records that are no longer current.
func IsHistoricalQuery(query string) bool {
	q := strings.ToLower(query)
	for _, marker := range historicalMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}
