package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	. "github.com/smartystreets/goconvey/convey"
)

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	s, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty corpus", t, func() {
		s := openStore(t)
		created := time.Unix(1700000000, 0).UTC()

		n, err := s.InsertSubmissions(ctx, []model.Submission{
			{ID: "a", Author: "alice", Title: "AITA for A", Body: "body a", Score: 100, CreatedUTC: created},
			{ID: "b", Author: "bob", Title: "AITA for B", Body: "body b", Score: 60, Flair: "Asshole"},
			{ID: "c", Author: "carol", Title: "AITA for C", Body: "body c", Score: 70},
		})
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 3)

		Convey("When the same ids are inserted again", func() {
			n, err := s.InsertSubmissions(ctx, []model.Submission{{ID: "a", Title: "changed"}, {ID: "d", Title: "new"}})

			Convey("Then existing rows are ignored", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				got, err := s.Get(ctx, []string{"a"})
				So(err, ShouldBeNil)
				So(got["a"].Title, ShouldEqual, "AITA for A")
				So(got["a"].CreatedUTC.Unix(), ShouldEqual, created.Unix())
			})
		})

		Convey("When comments are replaced", func() {
			So(s.ReplaceComments(ctx, []model.Comment{
				{ID: "c1", SubmissionID: "a", Author: "u1", Body: "NTA", Score: 9, Rank: 1},
				{ID: "c2", SubmissionID: "a", Author: "u2", Body: "YTA", Score: 3, Rank: 2, IsSubmitter: true},
			}), ShouldBeNil)
			So(s.ReplaceComments(ctx, []model.Comment{
				{ID: "c3", SubmissionID: "a", Author: "u3", Body: "ESH", Score: 12, Rank: 1},
			}), ShouldBeNil)

			Convey("Then only the latest set remains", func() {
				got, err := s.Get(ctx, []string{"a", "missing"})
				So(err, ShouldBeNil)
				So(got, ShouldNotContainKey, "missing")
				So(got["a"].Comments, ShouldHaveLength, 1)
				So(got["a"].Comments[0].ID, ShouldEqual, "c3")
			})
		})

		Convey("When comments reference an unknown submission", func() {
			err := s.ReplaceComments(ctx, []model.Comment{{ID: "x", SubmissionID: "nope", Rank: 1}})
			So(err, ShouldNotBeNil)
		})

		Convey("When labels are written", func() {
			written, err := s.SetLabels(ctx, []repository.LabelUpdate{
				{ID: "a", Label: verdict.NTA, Status: verdict.StatusComments},
				{ID: "b", Label: verdict.YTA, Status: verdict.StatusFlair},
				{ID: "c", Status: verdict.StatusTie},
			})
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 3)

			Convey("Then labels are immutable", func() {
				again, err := s.SetLabels(ctx, []repository.LabelUpdate{{ID: "a", Label: verdict.YTA, Status: verdict.StatusFlair}})
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)

				got, _ := s.Get(ctx, []string{"a", "c"})
				So(got["a"].Verdict, ShouldEqual, verdict.NTA)
				So(got["c"].Verdict, ShouldEqual, verdict.Label(""))
				So(got["c"].LabelStatus, ShouldEqual, verdict.StatusTie)
			})

			Convey("Then unlabeled pages are empty", func() {
				page, err := s.Page(ctx, repository.PageQuery{Selection: repository.SelectUnlabeled, Limit: 10})
				So(err, ShouldBeNil)
				So(page, ShouldBeEmpty)
			})

			Convey("Then new comments reopen an undecided submission but not a labeled one", func() {
				So(s.ReplaceComments(ctx, []model.Comment{
					{ID: "c7", SubmissionID: "c", Author: "u7", Body: "NTA", Score: 40, Rank: 1},
					{ID: "c8", SubmissionID: "a", Author: "u8", Body: "YTA", Score: 90, Rank: 1},
				}), ShouldBeNil)

				page, err := s.Page(ctx, repository.PageQuery{Selection: repository.SelectUnlabeled, Limit: 10, WithComments: true})
				So(err, ShouldBeNil)
				So(page, ShouldHaveLength, 1)
				So(page[0].ID, ShouldEqual, "c")
				So(page[0].Comments, ShouldHaveLength, 1)

				got, _ := s.Get(ctx, []string{"a"})
				So(got["a"].Verdict, ShouldEqual, verdict.NTA)
				So(got["a"].LabelStatus, ShouldEqual, verdict.StatusComments)
			})

			Convey("Then only labeled submissions accept vectors, once", func() {
				written, err := s.SetEmbeddings(ctx, []repository.VectorUpdate{
					{ID: "a", Embedding: []float32{0.5, -0.25, 1}},
					{ID: "c", Embedding: []float32{1, 1, 1}},
				})
				So(err, ShouldBeNil)
				So(written, ShouldEqual, 1)

				again, err := s.SetEmbeddings(ctx, []repository.VectorUpdate{{ID: "a", Embedding: []float32{9, 9, 9}}})
				So(err, ShouldBeNil)
				So(again, ShouldEqual, 0)

				pending, err := s.Page(ctx, repository.PageQuery{Selection: repository.SelectPendingEmbedding, Limit: 10})
				So(err, ShouldBeNil)
				So(pending, ShouldHaveLength, 1)
				So(pending[0].ID, ShouldEqual, "b")

				indexable, err := s.Page(ctx, repository.PageQuery{Selection: repository.SelectIndexable, Limit: 10})
				So(err, ShouldBeNil)
				So(indexable, ShouldHaveLength, 1)
				So(indexable[0].Embedding, ShouldResemble, []float32{0.5, -0.25, 1})
			})

			Convey("Then stats count labels and statuses", func() {
				st, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.Submissions, ShouldEqual, 3)
				So(st.Labeled, ShouldEqual, 2)
				So(st.ByLabel["NTA"], ShouldEqual, 1)
				So(st.ByStatus["tie"], ShouldEqual, 1)
			})
		})

		Convey("When paging with a keyset cursor", func() {
			first, err := s.Page(ctx, repository.PageQuery{Selection: repository.SelectAll, Limit: 2})
			So(err, ShouldBeNil)
			So(first, ShouldHaveLength, 2)

			rest, err := s.Page(ctx, repository.PageQuery{Selection: repository.SelectAll, AfterID: first[1].ID, Limit: 2})
			So(err, ShouldBeNil)
			So(rest, ShouldHaveLength, 1)
			So(rest[0].ID, ShouldEqual, "c")
		})

		Convey("When the page limit is invalid", func() {
			_, err := s.Page(ctx, repository.PageQuery{Limit: 0})
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("When listing ids", func() {
			ids, err := s.SubmissionIDs(ctx)
			So(err, ShouldBeNil)
			So(ids, ShouldHaveLength, 3)
		})
	})
}
