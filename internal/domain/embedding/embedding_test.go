package embedding_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/jasonherngwang/peoples-court/internal/domain/embedding"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedEncoder struct {
	vecs [][]float32
	err  error
}

func (f fixedEncoder) Embed(context.Context, []string) ([][]float32, error) { return f.vecs, f.err }

func TestTruncator(t *testing.T) {
	Convey("Given a truncator of dimension 2", t, func() {
		tr, err := embedding.NewTruncator(2)
		So(err, ShouldBeNil)

		Convey("When vectors are long enough", func() {
			in := [][]float32{{1, 2, 3}, {4, 5, 6}}
			out, err := tr.Truncate(in, 2)

			Convey("Then the leading prefix is kept and inputs are not aliased", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, [][]float32{{1, 2}, {4, 5}})
				out[0][0] = 99
				So(in[0][0], ShouldEqual, 1)
			})
		})

		Convey("When a vector is too short", func() {
			_, err := tr.Truncate([][]float32{{1}}, 1)
			So(errs.IsConsistency(err), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "returned 1 dimensions, configured 2")
		})

		Convey("When the vector count differs from the input count", func() {
			_, err := tr.Truncate([][]float32{{1, 2}}, 2)
			So(errs.IsConsistency(err), ShouldBeTrue)
		})
	})

	Convey("Given a non-positive dimension", t, func() {
		_, err := embedding.NewTruncator(0)
		So(errs.IsValidation(err), ShouldBeTrue)
	})
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	tr, _ := embedding.NewTruncator(2)

	Convey("Given an embedder", t, func() {
		Convey("When the encoder fails without a kind", func() {
			e := embedding.NewEmbedder(fixedEncoder{err: errors.New("connection refused")}, tr)
			_, err := e.EmbedOne(ctx, "scenario")

			So(errs.IsUpstream(err), ShouldBeTrue)
		})

		Convey("When the encoder succeeds", func() {
			e := embedding.NewEmbedder(fixedEncoder{vecs: [][]float32{{3, 4, 5}}}, tr)
			v, err := e.EmbedOne(ctx, "scenario")

			So(err, ShouldBeNil)
			So(v, ShouldResemble, []float32{3, 4})
			So(e.Dim(), ShouldEqual, 2)
		})

		Convey("When there is nothing to embed", func() {
			e := embedding.NewEmbedder(fixedEncoder{}, tr)
			v, err := e.Embed(ctx, nil)
			So(err, ShouldBeNil)
			So(v, ShouldBeEmpty)
		})
	})
}

// matryoshka builds vectors whose leading dims carry most of the signal.
func matryoshka(seed []float64, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		decay := math.Pow(0.5, float64(i))
		v[i] = float32(seed[i%len(seed)] * decay)
	}
	return v
}

func TestTruncationPreservesNeighbourOrder(t *testing.T) {
	Convey("Given a corpus of Matryoshka-style vectors", t, func() {
		const nominal = 16
		query := matryoshka([]float64{1, 0.8, -0.3, 0.5}, nominal)
		corpus := [][]float32{
			matryoshka([]float64{1, 0.7, -0.2, 0.4}, nominal),
			matryoshka([]float64{0.2, 1, 0.9, -0.6}, nominal),
			matryoshka([]float64{-1, -0.5, 0.3, 0.1}, nominal),
			matryoshka([]float64{0.6, 0.9, -0.4, 0.8}, nominal),
		}

		rank := func(dim int) []int {
			tr, _ := embedding.NewTruncator(dim)
			q, _ := tr.Truncate([][]float32{query}, 1)
			docs, _ := tr.Truncate(corpus, len(corpus))
			order := []int{0, 1, 2, 3}
			sort.SliceStable(order, func(i, j int) bool {
				return embedding.Cosine(q[0], docs[order[i]]) > embedding.Cosine(q[0], docs[order[j]])
			})
			return order
		}

		Convey("Then ranking at two truncation lengths agrees", func() {
			So(rank(4), ShouldResemble, rank(8))
			So(rank(8), ShouldResemble, rank(nominal))
			So(rank(4)[0], ShouldEqual, 0)
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given vectors to normalise", t, func() {
		v := embedding.Normalize([]float32{3, 4})
		So(v[0], ShouldAlmostEqual, 0.6, 1e-6)
		So(v[1], ShouldAlmostEqual, 0.8, 1e-6)
		So(embedding.Dot(v, v), ShouldAlmostEqual, 1, 1e-6)
		So(embedding.Normalize([]float32{0, 0}), ShouldResemble, []float32{0, 0})
		So(embedding.Cosine([]float32{0, 0}, []float32{1, 0}), ShouldEqual, 0)
	})
}
