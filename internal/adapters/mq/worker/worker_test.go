package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/adapters/mq/queue"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	logger.Init(logger.WithWriter(io.Discard))
}

func TestPool(t *testing.T) {
	Convey("Given a pool draining a closed queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ctx := context.Background()
		var texts atomic.Int64
		h := HandlerFunc(func(_ context.Context, j queue.Job) error {
			if j.Seq%5 == 0 {
				return errors.New("provider down")
			}
			texts.Add(int64(len(j.Texts)))
			return nil
		})

		p := NewPool(3, q, h)
		So(p.Size(), ShouldEqual, 3)
		p.Start(ctx)
		for i := 1; i <= 10; i++ {
			So(q.Put(ctx, queue.Job{Seq: i, IDs: []string{"a", "b"}, Texts: []string{"a", "b"}}), ShouldBeNil)
		}
		So(q.Close(), ShouldBeNil)
		stats := p.Wait()

		Convey("Then every job is handled once and failures are counted", func() {
			So(stats.Processed, ShouldEqual, 8)
			So(stats.Failed, ShouldEqual, 2)
			So(texts.Load(), ShouldEqual, 16)
		})
	})

	Convey("Given a pool shut down while idle", t, func() {
		q := queue.NewInMemoryQueue()
		p := NewPool(0, q, HandlerFunc(func(context.Context, queue.Job) error { return nil }))
		So(p.Size(), ShouldEqual, defaultWorkerCount)
		p.Start(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		So(p.Shutdown(ctx), ShouldBeNil)
		So(q.IsClosed(), ShouldBeTrue)
		So(p.Wait(), ShouldResemble, Stats{})
	})
}

func TestWorkerShutdown(t *testing.T) {
	Convey("Given a worker stuck in a job", t, func() {
		q := queue.NewInMemoryQueue()
		release := make(chan struct{})
		w := NewInMemoryWorker(q, HandlerFunc(func(context.Context, queue.Job) error {
			<-release
			return nil
		}), WithName("slow"))
		go w.Run(context.Background())
		So(q.Put(context.Background(), queue.Job{Seq: 1}), ShouldBeNil)
		time.Sleep(20 * time.Millisecond)

		Convey("Then shutdown times out until the job returns", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			So(w.Shutdown(ctx), ShouldNotBeNil)

			close(release)
			So(w.Shutdown(context.Background()), ShouldBeNil)
			So(w.Stats().Processed, ShouldEqual, 1)
		})
	})
}
