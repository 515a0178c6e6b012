// Package rank re-orders retrieval candidates under a user's topic
// preferences. Rank is a pure function of its inputs; all state it needs
// arrives as arguments, which keeps it trivially testable.
package rank

import (
	"sort"
	"strings"

	"github.com/mementohq/memento-go/core"
)

// Policy constants. Only the monotonicity properties are load-bearing, the
// magnitudes are tuning:
//
//   - a boosted hit multiplies similarity by BoostMultiplier;
//   - a suppressed hit subtracts SuppressPenalty, so a fully suppressed
//     candidate at similarity 1.0 lands at 0.7 and still sorts below any
//     neutral candidate at or above that floor. Suppression demotes, it
//     never guarantees exclusion.
const (
	BoostMultiplier = 1.25
	SuppressPenalty = 0.3
)

// Rank returns a new slice ordered by adjusted score descending:
//
//	adjusted = similarity × boost − penalty
//
// where boost applies when any boosted topic occurs in the candidate text
// (case-insensitive substring) and penalty when any suppressed topic does.
// Ties break like the vector index: newer memory first, then chunk id.
func Rank(candidates []core.Candidate, prefs core.UserPreference) []core.Candidate {
	boost := lowerAll(prefs.BoostTopics)
	suppress := lowerAll(prefs.SuppressTopics)

	ranked := make([]core.Candidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		text := strings.ToLower(ranked[i].Text)
		score := ranked[i].Similarity
		if containsAny(text, boost) {
			score *= BoostMultiplier
		}
		if containsAny(text, suppress) {
			score -= SuppressPenalty
		}
		ranked[i].AdjustedScore = score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.AdjustedScore != b.AdjustedScore {
			return a.AdjustedScore > b.AdjustedScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ChunkID < b.ChunkID
	})

	return ranked
}

func lowerAll(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(text string, topics []string) bool {
	for _, t := range topics {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
