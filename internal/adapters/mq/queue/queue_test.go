package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func job(seq int) Job {
	id := fmt.Sprintf("s%d", seq)
	return Job{Seq: seq, IDs: []string{id}, Texts: []string{"text of " + id}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, job(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Seq != 1 || j.Len() != 1 || j.IDs[0] != "s1" {
		t.Errorf("unexpected job %+v", j)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(1)) || !q.Enqueue(ctx, job(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, job(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_PutBlocksUntilRoom(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.Put(ctx, job(1)); err != nil {
		t.Fatalf("put: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Put(short, job(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Put(ctx, job(3)) }()

	out := q.Dequeue(ctx)
	if j := <-out; j.Seq != 1 {
		t.Errorf("expected job 1, got %d", j.Seq)
	}
	if err := <-done; err != nil {
		t.Errorf("blocked put: %v", err)
	}
	if j := <-out; j.Seq != 3 {
		t.Errorf("expected job 3, got %d", j.Seq)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx := context.Background()
	producers, perProducer := 10, 50

	var consumed sync.Map
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range q.Dequeue(ctx) {
				consumed.Store(j.Seq, true)
			}
		}()
	}

	var pw sync.WaitGroup
	for p := 0; p < producers; p++ {
		pw.Add(1)
		go func(p int) {
			defer pw.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Put(ctx, job(p*perProducer+i)); err != nil {
					t.Errorf("put: %v", err)
				}
			}
		}(p)
	}
	pw.Wait()
	_ = q.Close()
	wg.Wait()

	n := 0
	consumed.Range(func(_, _ any) bool { n++; return true })
	if n != producers*perProducer {
		t.Errorf("expected %d jobs consumed, got %d", producers*perProducer, n)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, job(1)) || !q.Enqueue(ctx, job(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, job(3)) {
		t.Error("expected enqueue to fail after closing")
	}
	if err := q.Put(ctx, job(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Queued jobs drain before the channel closes.
	var got []int
	timeout := time.After(time.Second)
	out := q.Dequeue(ctx)
	for {
		select {
		case j, ok := <-out:
			if !ok {
				if len(got) != 2 {
					t.Errorf("expected 2 drained jobs, got %v", got)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			got = append(got, j.Seq)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
