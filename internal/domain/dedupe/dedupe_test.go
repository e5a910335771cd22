package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/jasonherngwang/peoples-court/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When recording ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then a new id is recorded and a repeat is reported", func() {
				So(d.SeenAndRecord(ctx, "t3_abc"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "t3_abc"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording ids", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "a")
			d.Unrecord(ctx, "a")
			d.Unrecord(ctx, "missing")

			Convey("Then the id can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When using bounded mode at capacity", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"a", "b", "c"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}
			So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)

			Convey("Then the oldest id is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
			})
		})

		Convey("When an id is unrecorded in bounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "a")
			d.SeenAndRecord(ctx, "b")
			d.Unrecord(ctx, "a")
			d.SeenAndRecord(ctx, "c")

			Convey("Then its freed slot is reused without evicting others", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			})
		})

		Convey("When the empty id is recorded in bounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, ""), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "x"), ShouldBeFalse)

			So(d.Size(), ShouldEqual, 1)
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, n)
				So(d.SeenAndRecord(ctx, "id-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a bounded deduper shared by goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const workers, perWorker = 10, 100

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					d.SeenAndRecord(context.Background(), fmt.Sprintf("id-%d-%d", w, j))
				}
			}(i)
		}
		wg.Wait()

		So(d.Size(), ShouldEqual, workers*perWorker)
	})
}
