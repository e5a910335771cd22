// Package fusion merges independently ranked lists with Reciprocal Rank Fusion.
package fusion

import (
	"sort"

	"github.com/jasonherngwang/peoples-court/internal/domain/search"
)

// Default fusion parameters.
const (
	DefaultC            = 60
	DefaultTopRankBonus = 0.01
)

// Candidate is one fused result.
type Candidate struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// RRF scores each document sum(1/(C+rank)) over the lists it appears in,
// plus Bonus for every list where it ranks first.
type RRF struct {
	C     float64
	Bonus float64
}

// New returns an RRF with the given constant and top-rank bonus. A
// non-positive c or negative bonus falls back to the defaults.
func New(c, bonus float64) RRF {
	if c <= 0 {
		c = DefaultC
	}
	if bonus < 0 {
		bonus = DefaultTopRankBonus
	}
	return RRF{C: c, Bonus: bonus}
}

// Fuse combines lists and returns every candidate ordered by fused score
// descending, ties broken by lower id. Ranks within a list are 1-based; a
// document repeated inside one list only counts at its best rank.
func (f RRF) Fuse(lists ...[]search.Hit) []Candidate {
	scores := make(map[string]float64)
	for _, list := range lists {
		seen := make(map[string]struct{}, len(list))
		for i, h := range list {
			if _, dup := seen[h.ID]; dup {
				continue
			}
			seen[h.ID] = struct{}{}
			rank := h.Rank
			if rank <= 0 {
				rank = i + 1
			}
			s := 1 / (f.C + float64(rank))
			if rank == 1 {
				s += f.Bonus
			}
			scores[h.ID] += s
		}
	}

	out := make([]Candidate, 0, len(scores))
	for id, s := range scores {
		out = append(out, Candidate{ID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top returns at most k candidates.
func Top(c []Candidate, k int) []Candidate {
	if k >= 0 && len(c) > k {
		return c[:k]
	}
	return c
}
