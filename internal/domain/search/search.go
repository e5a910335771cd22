// Package search defines the dense and sparse retrieval contracts shared by
// the index backends and the retrieval engine.
package search

import (
	"context"
	"sort"
	"time"
)

// Hit is one ranked search result.
type Hit struct {
	ID    string  `json:"id"`
	Rank  int     `json:"rank"` // 1-based
	Score float64 `json:"score"`
}

// Document is what a backend indexes: the sparse fields and the dense vector.
type Document struct {
	ID        string
	Title     string
	Body      string
	Embedding []float32
}

// BuildInfo describes a completed index build.
type BuildInfo struct {
	Documents int           `json:"documents"`
	Dim       int           `json:"dim"`
	Took      time.Duration `json:"-"`
	BuiltAt   time.Time     `json:"built_at"`
}

// Dense ranks documents by vector similarity.
type Dense interface {
	// Dense returns at most n hits for vec. vec must have Dim() entries.
	Dense(ctx context.Context, vec []float32, n int) ([]Hit, error)
	// Dim is the vector dimension the index was built with.
	Dim() int
}

// Sparse ranks documents by lexical relevance of title and body.
type Sparse interface {
	Sparse(ctx context.Context, query string, n int) ([]Hit, error)
}

// Index is a dual dense + sparse index that can be rebuilt in place.
type Index interface {
	Dense
	Sparse
	// Rebuild reloads the corpus and publishes a new generation. Readers keep
	// the previous generation until the swap.
	Rebuild(ctx context.Context) (BuildInfo, error)
	// Size is the number of documents in the published generation.
	Size() int
	Close() error
}

// Loader streams the indexable corpus to fn in submission id order.
type Loader interface {
	Documents(ctx context.Context, fn func(Document) error) error
}

// Rank orders hits by score descending then id ascending, keeps the first n
// and assigns ranks 1..n. hits is sorted in place.
func Rank(hits []Hit, n int) []Hit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if n >= 0 && len(hits) > n {
		hits = hits[:n]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits
}
