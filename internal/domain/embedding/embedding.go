// Package embedding turns text into fixed-length vectors with Matryoshka
// prefix truncation. The same Truncator must serve indexing and querying.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// Encoder produces nominal-dimension vectors, one per input text, in order.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Truncator keeps the leading dims of each vector.
type Truncator struct {
	dim int
}

// NewTruncator creates a Truncator for dim > 0.
func NewTruncator(dim int) (Truncator, error) {
	if dim <= 0 {
		return Truncator{}, errs.WrapKind("embedding.truncator", errs.ErrValidation, fmt.Errorf("dimension must be positive, got %d", dim))
	}
	return Truncator{dim: dim}, nil
}

// Dim returns the truncated dimension.
func (t Truncator) Dim() int { return t.dim }

// Truncate returns the dim-prefix of every vector. It fails with a consistency
// error if the provider returned a different number of vectors than inputs,
// or a vector shorter than dim.
func (t Truncator) Truncate(vecs [][]float32, inputs int) ([][]float32, error) {
	if len(vecs) != inputs {
		return nil, errs.WrapKind("embedding.truncate", errs.ErrConsistency,
			fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), inputs))
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		if len(v) < t.dim {
			return nil, errs.WrapKind("embedding.truncate", errs.ErrConsistency,
				fmt.Errorf("provider returned %d dimensions, configured %d", len(v), t.dim))
		}
		out[i] = append([]float32(nil), v[:t.dim]...)
	}
	return out, nil
}

// Embedder encodes texts and truncates the result.
type Embedder struct {
	enc   Encoder
	trunc Truncator
}

// NewEmbedder pairs an Encoder with a Truncator.
func NewEmbedder(enc Encoder, trunc Truncator) *Embedder {
	return &Embedder{enc: enc, trunc: trunc}
}

// Dim returns the dimension of the vectors Embed produces.
func (e *Embedder) Dim() int { return e.trunc.Dim() }

// Embed encodes texts into truncated vectors.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := e.enc.Embed(ctx, texts)
	if err != nil {
		if errs.KindOf(err) != nil {
			return nil, err
		}
		return nil, errs.WrapKind("embedding.embed", errs.ErrUpstream, err)
	}
	return e.trunc.Truncate(raw, len(texts))
}

// EmbedOne encodes a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Normalize returns v scaled to unit length; a zero vector is returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Dot returns the inner product of equal-length vectors.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
