package fusion

import (
	"testing"

	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	. "github.com/smartystreets/goconvey/convey"
)

func ranked(ids ...string) []search.Hit {
	out := make([]search.Hit, len(ids))
	for i, id := range ids {
		out[i] = search.Hit{ID: id, Rank: i + 1, Score: float64(len(ids) - i)}
	}
	return out
}

func order(c []Candidate) []string {
	out := make([]string, len(c))
	for i, x := range c {
		out[i] = x.ID
	}
	return out
}

func TestFuse(t *testing.T) {
	f := New(60, 0.01)

	Convey("Given a document ranked first in both lists", t, func() {
		got := f.Fuse(ranked("a", "b"), ranked("a", "c"))

		Convey("Then it leads with both reciprocal terms and both bonuses", func() {
			So(got[0].ID, ShouldEqual, "a")
			So(got[0].Score, ShouldAlmostEqual, 2.0/61+0.02, 1e-12)
			So(got[0].Rank, ShouldEqual, 1)
		})
	})

	Convey("Given an empty sparse list", t, func() {
		dense := ranked("d3", "d1", "d2", "d0")
		got := f.Fuse(dense, nil)

		Convey("Then the fused order equals the dense order", func() {
			So(order(got), ShouldResemble, []string{"d3", "d1", "d2", "d0"})
			So(got[0].Score, ShouldAlmostEqual, 1.0/61+0.01, 1e-12)
			So(got[1].Score, ShouldAlmostEqual, 1.0/62, 1e-12)
		})
	})

	Convey("Given a document found by both lists below the top", t, func() {
		got := f.Fuse(ranked("a", "b"), ranked("b", "c"))

		Convey("Then agreement outranks a single first place", func() {
			So(order(got), ShouldResemble, []string{"b", "a", "c"})
		})
	})

	Convey("Given equal fused scores", t, func() {
		got := f.Fuse(ranked("m"), ranked("d"))

		Convey("Then the lower id wins", func() {
			So(order(got), ShouldResemble, []string{"d", "m"})
			So(got[0].Score, ShouldEqual, got[1].Score)
		})
	})

	Convey("Given the same inputs fused repeatedly", t, func() {
		dense := ranked("q", "w", "e", "r", "t", "y")
		sparse := ranked("y", "t", "x", "q", "z")
		first := f.Fuse(dense, sparse)

		Convey("Then the output is identical every time", func() {
			for i := 0; i < 50; i++ {
				So(f.Fuse(dense, sparse), ShouldResemble, first)
			}
		})
	})

	Convey("Given empty lists", t, func() {
		So(f.Fuse(nil, nil), ShouldBeEmpty)
	})

	Convey("Given a list that repeats an id", t, func() {
		got := f.Fuse([]search.Hit{{ID: "a", Rank: 1}, {ID: "a", Rank: 2}})
		So(got, ShouldHaveLength, 1)
		So(got[0].Score, ShouldAlmostEqual, 1.0/61+0.01, 1e-12)
	})
}

func TestTopAndDefaults(t *testing.T) {
	Convey("Given fused candidates", t, func() {
		c := New(60, 0.01).Fuse(ranked("a", "b", "c"))
		So(Top(c, 2), ShouldHaveLength, 2)
		So(Top(c, 10), ShouldHaveLength, 3)
	})

	Convey("Given invalid parameters", t, func() {
		f := New(0, -1)
		So(f.C, ShouldEqual, DefaultC)
		So(f.Bonus, ShouldEqual, DefaultTopRankBonus)
		So(New(10, 0).Bonus, ShouldEqual, 0)
	})
}
