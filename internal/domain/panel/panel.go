// Package panel selects the validator panel for a verification session.
package panel

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/vouch/internal/domain/types"
)

// Panel size tiers by scored population size.
const (
	smallPopulation  = 4   // below this, everyone serves
	mediumPopulation = 10  // 4..10 -> 3 validators
	largePopulation  = 99  // 11..99 -> 5 validators
	mediumPanel      = 3   //
	largePanel       = 5   //
	maxPanel         = 10  // 100+ participants
	defaultMinScore  = 0.5 // confirm score eligibility threshold
)

// ConfirmScoreSource yields the externally computed confirm score feed.
// How the scores are produced is not this package's concern.
type ConfirmScoreSource interface {
	Scores(ctx context.Context) ([]types.ConfirmScore, error)
}

// Population answers whether the participant registry knows anyone at all.
// Selection fails closed: with no known population there are no validators.
type Population interface {
	HasParticipants(ctx context.Context) (bool, error)
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithMinScore overrides the confirm score eligibility threshold.
func WithMinScore(min float64) Option {
	return func(s *Selector) {
		if min > 0 {
			s.minScore = min
		}
	}
}

// Selector ranks eligible participants by confirm score and picks a panel
// sized by population. Selection is pure apart from reading the two feeds.
type Selector struct {
	source     ConfirmScoreSource
	population Population
	minScore   float64
}

// NewSelector creates a Selector over the given feeds.
func NewSelector(source ConfirmScoreSource, population Population, opts ...Option) *Selector {
	s := &Selector{
		source:     source,
		population: population,
		minScore:   defaultMinScore,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size returns the target panel size for a scored population of n.
func Size(n int) int {
	switch {
	case n < smallPopulation:
		return n
	case n <= mediumPopulation:
		return mediumPanel
	case n <= largePopulation:
		return largePanel
	default:
		return maxPanel
	}
}

// Select returns the validator panel: scored participants sorted by score
// descending (id ascending on ties), filtered to the eligibility threshold,
// truncated to the population-size tier. The panel may legitimately be empty.
func (s *Selector) Select(ctx context.Context) ([]types.Validator, error) {
	known, err := s.population.HasParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("check population: %w", err)
	}
	if !known {
		return []types.Validator{}, nil
	}

	scores, err := s.source.Scores(ctx)
	if err != nil {
		return nil, fmt.Errorf("read confirm scores: %w", err)
	}

	members := make([]types.Validator, 0, len(scores))
	for _, cs := range scores {
		id := types.NormalizeID(cs.ID)
		if id == "" {
			continue
		}
		members = append(members, types.Validator{ID: id, Score: cs.Score})
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].ID < members[j].ID
	})

	k := Size(len(members))
	out := make([]types.Validator, 0, k)
	for _, m := range members {
		if m.Score < s.minScore {
			continue
		}
		out = append(out, m)
		if len(out) == k {
			break
		}
	}
	return out, nil
}
