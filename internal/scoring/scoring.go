// Package scoring computes similarity between an original prompt and a
// guess, and awards points per image, grounded on the teacher's
// internal/game/score.go habit of small pure functions operating on
// snapshotted data (CalculateGuessPoints took a difficulty/speed/position
// multiplier; here the formula is spec-defined directly).
package scoring

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

var tokenBoundary = regexp.MustCompile(`[^\w\s]`)

// Similarity returns s(original, guess) in [0,100] per spec §4.3:
// 1. Lowercase+trim both; equal strings score 100.
// 2. Tokenize by replacing non-word/non-whitespace runs with a space, then
//    splitting on whitespace.
// 3. Jaccard similarity over the token sets.
// 4. Normalized Levenshtein distance over the full (lowercased, trimmed)
//    strings.
// 5. Weighted combination 0.6*jaccard + 0.4*levenshtein, rounded, clamped.
func Similarity(original, guess string) int {
	a := strings.ToLower(strings.TrimSpace(original))
	b := strings.ToLower(strings.TrimSpace(guess))
	if a == b {
		return 100
	}

	k := jaccard(tokenize(a), tokenize(b))
	l := normalizedLevenshtein(a, b)

	score := 100 * (0.6*k + 0.4*l)
	return clamp(roundHalfUp(score), 0, 100)
}

func tokenize(s string) map[string]struct{} {
	normalized := tokenBoundary.ReplaceAllString(s, " ")
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func normalizedLevenshtein(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein.Distance(a, b, nil)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

func roundHalfUp(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GuessScore pairs a guesser with the similarity score they earned, used
// by AwardPoints to compute per-image totals in one pass.
type GuessScore struct {
	PlayerId string
	Score    int
}

// AwardResult is the per-image outcome of AwardPoints.
type AwardResult struct {
	// PointsByGuesser mirrors scores: each guesser earns round(score)
	// points for their guess on this image.
	PointsByGuesser map[string]int
	// StumperBonus is 50 when mean(scores) < 40, else 0.
	StumperBonus int
}

// AwardPoints computes the per-guesser point award and stumper bonus for
// one image's guesses, per spec §4.3. An empty scores slice yields no
// points and no bonus.
func AwardPoints(scores []GuessScore) AwardResult {
	result := AwardResult{PointsByGuesser: make(map[string]int, len(scores))}
	if len(scores) == 0 {
		return result
	}

	total := 0
	for _, gs := range scores {
		result.PointsByGuesser[gs.PlayerId] = gs.Score
		total += gs.Score
	}

	mean := float64(total) / float64(len(scores))
	if mean < 40 {
		result.StumperBonus = 50
	}
	return result
}
