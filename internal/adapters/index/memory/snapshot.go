// Package memory implements an in-process dual index: exact cosine search
// over unit vectors and a two-field BM25F inverted index. A built Snapshot is
// immutable and safe for concurrent readers.
package memory

import (
	"fmt"
	"math"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/embedding"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// BM25 holds the sparse scoring parameters.
type BM25 struct {
	K1          float64
	B           float64
	TitleWeight float64
	BodyWeight  float64
}

// DefaultBM25 returns k1 1.2, b 0.75 and a title field weighted twice the body.
func DefaultBM25() BM25 {
	return BM25{K1: 1.2, B: 0.75, TitleWeight: 2, BodyWeight: 1}
}

type posting struct {
	doc   int32
	title uint16
	body  uint16
}

// Snapshot is one immutable index generation.
type Snapshot struct {
	dim   int
	ids   []string
	vecs  []float32 // len(ids)*dim, unit length rows
	terms map[string][]posting

	titleLen []uint32
	bodyLen  []uint32
	avgTitle float64
	avgBody  float64
	params   BM25

	builtAt time.Time
}

// Builder accumulates documents into a Snapshot.
type Builder struct {
	snap *Snapshot
	seen map[string]struct{}
}

// NewBuilder starts a Snapshot of vectors with dim entries.
func NewBuilder(dim int, params BM25) *Builder {
	return &Builder{
		snap: &Snapshot{dim: dim, terms: make(map[string][]posting), params: params},
		seen: make(map[string]struct{}),
	}
}

// Add indexes doc. A vector of the wrong length is a consistency error; a
// repeated id is ignored.
func (b *Builder) Add(doc search.Document) error {
	s := b.snap
	if len(doc.Embedding) != s.dim {
		return errs.WrapKind("memory.build", errs.ErrConsistency,
			fmt.Errorf("submission %s has %d dimensions, index configured %d", doc.ID, len(doc.Embedding), s.dim))
	}
	if _, dup := b.seen[doc.ID]; dup {
		return nil
	}
	b.seen[doc.ID] = struct{}{}

	n := int32(len(s.ids))
	s.ids = append(s.ids, doc.ID)
	s.vecs = append(s.vecs, embedding.Normalize(doc.Embedding)...)

	counts := make(map[string]*posting)
	title := search.Tokenize(doc.Title)
	body := search.Tokenize(doc.Body)
	for _, t := range title {
		p := counts[t]
		if p == nil {
			p = &posting{doc: n}
			counts[t] = p
		}
		if p.title < math.MaxUint16 {
			p.title++
		}
	}
	for _, t := range body {
		p := counts[t]
		if p == nil {
			p = &posting{doc: n}
			counts[t] = p
		}
		if p.body < math.MaxUint16 {
			p.body++
		}
	}
	for t, p := range counts {
		s.terms[t] = append(s.terms[t], *p)
	}
	s.titleLen = append(s.titleLen, uint32(len(title)))
	s.bodyLen = append(s.bodyLen, uint32(len(body)))
	return nil
}

// Finish seals the Snapshot. The Builder must not be used afterwards.
func (b *Builder) Finish() *Snapshot {
	s := b.snap
	if n := len(s.ids); n > 0 {
		var tl, bl uint64
		for i := 0; i < n; i++ {
			tl += uint64(s.titleLen[i])
			bl += uint64(s.bodyLen[i])
		}
		s.avgTitle = float64(tl) / float64(n)
		s.avgBody = float64(bl) / float64(n)
	}
	s.builtAt = time.Now()
	b.snap = nil
	return s
}

// Len returns the number of documents.
func (s *Snapshot) Len() int { return len(s.ids) }

// Dim returns the vector dimension.
func (s *Snapshot) Dim() int { return s.dim }

// BuiltAt returns when the Snapshot was sealed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Dense returns the n documents with the highest cosine similarity to vec.
func (s *Snapshot) Dense(vec []float32, n int) ([]search.Hit, error) {
	if len(vec) != s.dim {
		return nil, errs.WrapKind("memory.dense", errs.ErrConsistency,
			fmt.Errorf("query has %d dimensions, index built with %d", len(vec), s.dim))
	}
	if n <= 0 || len(s.ids) == 0 {
		return nil, nil
	}
	q := embedding.Normalize(vec)
	hits := make([]search.Hit, len(s.ids))
	for i, id := range s.ids {
		row := s.vecs[i*s.dim : (i+1)*s.dim]
		hits[i] = search.Hit{ID: id, Score: embedding.Dot(q, row)}
	}
	return search.Rank(hits, n), nil
}

// Sparse returns the n best BM25F matches for query. Documents that match
// no query term are not returned.
func (s *Snapshot) Sparse(query string, n int) []search.Hit {
	if n <= 0 || len(s.ids) == 0 {
		return nil
	}
	p := s.params
	total := float64(len(s.ids))
	scores := make(map[int32]float64)
	seen := make(map[string]struct{})
	for _, t := range search.Tokenize(query) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		list := s.terms[t]
		if len(list) == 0 {
			continue
		}
		df := float64(len(list))
		idf := math.Log(1 + (total-df+0.5)/(df+0.5))
		for _, post := range list {
			var tf float64
			if post.title > 0 {
				tf += p.TitleWeight * float64(post.title) / s.norm(s.titleLen[post.doc], s.avgTitle)
			}
			if post.body > 0 {
				tf += p.BodyWeight * float64(post.body) / s.norm(s.bodyLen[post.doc], s.avgBody)
			}
			scores[post.doc] += idf * tf / (p.K1 + tf)
		}
	}
	hits := make([]search.Hit, 0, len(scores))
	for doc, score := range scores {
		hits = append(hits, search.Hit{ID: s.ids[doc], Score: score})
	}
	return search.Rank(hits, n)
}

func (s *Snapshot) norm(length uint32, avg float64) float64 {
	if avg == 0 {
		return 1
	}
	return 1 - s.params.B + s.params.B*float64(length)/avg
}
