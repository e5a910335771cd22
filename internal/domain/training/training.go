// Package training draws a class-balanced sample of labeled submissions for
// fine-tuning the verdict classifier.
package training

import (
	"bufio"
	"encoding/json"
	"io"
	"math/rand/v2"

	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
)

// DefaultMaxPerClass caps each verdict class.
const DefaultMaxPerClass = 15000

// Example is one training row.
type Example struct {
	Text  string        `json:"text"`
	Label verdict.Label `json:"label"`
}

// FromSubmission builds the training row for a labeled submission.
func FromSubmission(s model.Submission) (Example, bool) {
	if !s.Verdict.Indexable() {
		return Example{}, false
	}
	return Example{Text: s.Text(), Label: s.Verdict}, true
}

// Sampler keeps a uniform random sample of at most max examples per class
// while streaming, using one reservoir per class.
type Sampler struct {
	max  int
	rng  *rand.Rand
	res  map[verdict.Label][]Example
	seen map[verdict.Label]int
}

// NewSampler creates a Sampler seeded with seed.
func NewSampler(maxPerClass int, seed uint64) *Sampler {
	if maxPerClass <= 0 {
		maxPerClass = DefaultMaxPerClass
	}
	return &Sampler{
		max:  maxPerClass,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		res:  make(map[verdict.Label][]Example),
		seen: make(map[verdict.Label]int),
	}
}

// Offer considers ex for the sample. Non-indexable labels are ignored.
func (s *Sampler) Offer(ex Example) {
	if !ex.Label.Indexable() {
		return
	}
	s.seen[ex.Label]++
	r := s.res[ex.Label]
	if len(r) < s.max {
		s.res[ex.Label] = append(r, ex)
		return
	}
	if j := s.rng.IntN(s.seen[ex.Label]); j < s.max {
		r[j] = ex
	}
}

// Seen returns how many examples of l were offered.
func (s *Sampler) Seen(l verdict.Label) int { return s.seen[l] }

// Counts returns the sampled size per class.
func (s *Sampler) Counts() map[verdict.Label]int {
	out := make(map[verdict.Label]int, len(s.res))
	for l, r := range s.res {
		out[l] = len(r)
	}
	return out
}

// Examples returns the union of every class sample, shuffled.
func (s *Sampler) Examples() []Example {
	var out []Example
	for _, l := range verdict.Labels {
		out = append(out, s.res[l]...)
	}
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(w io.Writer, examples []Example) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return err
		}
	}
	return bw.Flush()
}
