// Package ballot tabulates ranked ballots into point awards.
//
// Tabulation is additive: a candidate's score is the sum, over all ballots,
// of the weight attached to whatever rank the candidate received on that
// ballot, and zero for ballots that leave the candidate unranked. Weights
// are strictly decreasing from first place; ranks beyond the weight table
// earn nothing.
package ballot

import (
	"sort"

	"github.com/okian/tally/internal/domain/model"
)

// Default rank weights: first, second and third choice.
var defaultWeights = []int64{8, 5, 3}

// Option applies a configuration option to the Tabulator.
type Option func(*Tabulator)

// WithWeights replaces the rank weight table. The table is ignored unless
// every weight is positive and strictly decreasing.
func WithWeights(weights []int64) Option {
	return func(t *Tabulator) {
		if !validWeights(weights) {
			return
		}
		t.weights = append([]int64(nil), weights...)
	}
}

func validWeights(weights []int64) bool {
	if len(weights) == 0 {
		return false
	}
	for i, w := range weights {
		if w <= 0 {
			return false
		}
		if i > 0 && w >= weights[i-1] {
			return false
		}
	}
	return true
}

// Award is one candidate's total ballot-derived score.
type Award struct {
	Entity model.EntityRef
	Points int64
}

// Tabulator turns ranked ballots into awards.
type Tabulator struct {
	weights []int64
}

// New creates a Tabulator with configuration options.
func New(opts ...Option) *Tabulator {
	t := &Tabulator{
		weights: append([]int64(nil), defaultWeights...),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Weights returns a copy of the active rank weight table.
func (t *Tabulator) Weights() []int64 {
	return append([]int64(nil), t.weights...)
}

// Tabulate sums rank weights across ballots. The result is ordered by
// points descending, then entity kind and id ascending, so equal scores
// always come back in the same order.
func (t *Tabulator) Tabulate(ballots []model.Ballot) []Award {
	totals := make(map[model.EntityRef]int64)
	for _, b := range ballots {
		for pos, candidate := range b.Ranking {
			if pos >= len(t.weights) {
				break
			}
			if !candidate.Valid() {
				continue
			}
			totals[candidate] += t.weights[pos]
		}
	}

	awards := make([]Award, 0, len(totals))
	for entity, points := range totals {
		awards = append(awards, Award{Entity: entity, Points: points})
	}
	sort.Slice(awards, func(i, j int) bool {
		if awards[i].Points != awards[j].Points {
			return awards[i].Points > awards[j].Points
		}
		if awards[i].Entity.Kind != awards[j].Entity.Kind {
			return awards[i].Entity.Kind < awards[j].Entity.Kind
		}
		return awards[i].Entity.ID < awards[j].Entity.ID
	})
	return awards
}
