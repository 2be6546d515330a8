// Package trust derives pairwise and personal trust scores from the click log.
//
// Scoring rule: for every unordered pair of participants, the pair scores 1.0
// when clicks exist in both directions, 0.5 when only one direction exists,
// and 0.0 otherwise. A participant's personal score is the arithmetic mean of
// every pair score it appears in. Both derivations are pure and recompute in
// full from their inputs each call.
package trust

import (
	"sort"

	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/internal/domain/types"
)

// Pair score values.
const (
	scoreMutual   = 1.0
	scoreOneWay   = 0.5
	scoreNoneSeen = 0.0
)

// Participants extracts the sorted, deduplicated participant set from the
// click log. Identities are normalized; rows with an empty side are skipped.
func Participants(clicks []model.Click) []string {
	seen := make(map[string]struct{})
	for _, c := range clicks {
		src := types.NormalizeID(c.Source)
		dst := types.NormalizeID(c.Target)
		if src != "" {
			seen[src] = struct{}{}
		}
		if dst != "" {
			seen[dst] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PairScores computes the canonical pair score for every unordered pair of
// participants. The output ordering follows the sorted participant set, outer
// index first, so identical inputs always produce identical output.
func PairScores(clicks []model.Click, participants []string) []types.PairScore {
	type directed struct{ from, to string }
	index := make(map[directed]struct{}, len(clicks))
	for _, c := range clicks {
		src := types.NormalizeID(c.Source)
		dst := types.NormalizeID(c.Target)
		if src == "" || dst == "" {
			continue
		}
		index[directed{from: src, to: dst}] = struct{}{}
	}

	var out []types.PairScore
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			a, b := participants[i], participants[j]
			_, aToB := index[directed{from: a, to: b}]
			_, bToA := index[directed{from: b, to: a}]

			score := scoreNoneSeen
			switch {
			case aToB && bToA:
				score = scoreMutual
			case aToB || bToA:
				score = scoreOneWay
			}
			out = append(out, types.PairScore{A: a, B: b, Score: score})
		}
	}
	return out
}

// PairParticipants extracts the sorted, deduplicated participant set from
// pair score rows.
func PairParticipants(pairs []types.PairScore) []string {
	seen := make(map[string]struct{})
	for _, p := range pairs {
		if p.A != "" {
			seen[p.A] = struct{}{}
		}
		if p.B != "" {
			seen[p.B] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PersonalScores averages every pair score incident to each participant.
// Participants with no incident pairs score 0.0. One row per participant,
// in the given (sorted) ordering.
func PersonalScores(pairs []types.PairScore, participants []string) []types.PersonalScore {
	sums := make(map[string]float64, len(participants))
	counts := make(map[string]int, len(participants))
	for _, p := range pairs {
		sums[p.A] += p.Score
		counts[p.A]++
		sums[p.B] += p.Score
		counts[p.B]++
	}

	out := make([]types.PersonalScore, 0, len(participants))
	for _, id := range participants {
		score := 0.0
		if n := counts[id]; n > 0 {
			score = sums[id] / float64(n)
		}
		out = append(out, types.PersonalScore{ID: id, Score: score})
	}
	return out
}
