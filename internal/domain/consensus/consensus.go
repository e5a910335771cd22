// Package consensus defines the pre-deliberation jury poll: a probability
// distribution over the four indexable verdicts produced by an external
// classifier.
package consensus

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// Order is the classifier's label order, also used when rendering.
var Order = []verdict.Label{verdict.NTA, verdict.YTA, verdict.ESH, verdict.NAH}

// Distribution holds one probability per verdict. A zero Distribution means
// the poll was unavailable.
type Distribution struct {
	YTA float64 `json:"YTA"`
	NTA float64 `json:"NTA"`
	ESH float64 `json:"ESH"`
	NAH float64 `json:"NAH"`
}

// Get returns the probability recorded for l.
func (d Distribution) Get(l verdict.Label) float64 {
	switch l {
	case verdict.YTA:
		return d.YTA
	case verdict.NTA:
		return d.NTA
	case verdict.ESH:
		return d.ESH
	case verdict.NAH:
		return d.NAH
	}
	return 0
}

func (d *Distribution) set(l verdict.Label, v float64) {
	switch l {
	case verdict.YTA:
		d.YTA = v
	case verdict.NTA:
		d.NTA = v
	case verdict.ESH:
		d.ESH = v
	case verdict.NAH:
		d.NAH = v
	}
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 { return d.YTA + d.NTA + d.ESH + d.NAH }

// Top returns the most likely verdict; ties go to the earlier label in Order.
func (d Distribution) Top() verdict.Label {
	best, bestP := Order[0], d.Get(Order[0])
	for _, l := range Order[1:] {
		if p := d.Get(l); p > bestP {
			best, bestP = l, p
		}
	}
	return best
}

// Score is one classifier output.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// FromScores maps classifier output onto a Distribution. Labels match
// case-insensitively and unknown labels are ignored. With logits set the
// scores are passed through softmax first. The result always sums to 1; a
// negative or non-finite probability, or no mass at all, is an upstream error.
func FromScores(scores []Score, logits bool) (Distribution, error) {
	var (
		d     Distribution
		found []verdict.Label
		vals  []float64
	)
	for _, s := range scores {
		l := verdict.Label(strings.ToUpper(strings.TrimSpace(s.Label)))
		if !l.Indexable() {
			continue
		}
		found = append(found, l)
		vals = append(vals, s.Score)
	}
	if len(found) == 0 {
		return Distribution{}, errs.WrapKind("consensus.scores", errs.ErrUpstream,
			fmt.Errorf("no known labels in %d scores", len(scores)))
	}
	if logits {
		vals = softmax(vals)
	}
	for i, l := range found {
		v := vals[i]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Distribution{}, errs.WrapKind("consensus.scores", errs.ErrUpstream,
				fmt.Errorf("invalid probability %v for %s", v, l))
		}
		d.set(l, v)
	}
	return Renormalize(d)
}

// Renormalize scales d so its probabilities sum to 1.
func Renormalize(d Distribution) (Distribution, error) {
	for _, l := range Order {
		if d.Get(l) < 0 {
			return Distribution{}, errs.WrapKind("consensus.renormalize", errs.ErrUpstream,
				fmt.Errorf("negative probability %v for %s", d.Get(l), l))
		}
	}
	sum := d.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return Distribution{}, errs.WrapKind("consensus.renormalize", errs.ErrUpstream,
			fmt.Errorf("probabilities sum to %v", sum))
	}
	for _, l := range Order {
		d.set(l, d.Get(l)/sum)
	}
	return d, nil
}

func softmax(v []float64) []float64 {
	hi := math.Inf(-1)
	for _, x := range v {
		if x > hi {
			hi = x
		}
	}
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Classifier polls the jury for a scenario.
type Classifier interface {
	// Poll returns the verdict distribution, honoring ctx for cancellation.
	Poll(ctx context.Context, scenario string) (Distribution, error)
}
