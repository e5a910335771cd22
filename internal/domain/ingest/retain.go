package ingest

import (
	"container/heap"
	"sort"

	"github.com/jasonherngwang/peoples-court/internal/domain/model"
)

type retained struct {
	comment model.Comment
	seq     uint64
}

// commentHeap is a min-heap: the root is the comment that would be evicted
// first (lowest score; among equal scores, the latest observed).
type commentHeap []retained

func (h commentHeap) Len() int { return len(h) }
func (h commentHeap) Less(i, j int) bool {
	if h[i].comment.Score != h[j].comment.Score {
		return h[i].comment.Score < h[j].comment.Score
	}
	return h[i].seq > h[j].seq
}
func (h commentHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *commentHeap) Push(x any)   { *h = append(*h, x.(retained)) }
func (h *commentHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Retainer keeps the top-N comments per submission by score, ties going to
// the earlier observed comment.
type Retainer struct {
	capacity int
	seq      uint64
	heaps    map[string]*commentHeap
}

// NewRetainer creates a Retainer keeping at most capacity comments per submission.
func NewRetainer(capacity int) *Retainer {
	if capacity <= 0 {
		capacity = model.MaxComments
	}
	return &Retainer{capacity: capacity, heaps: make(map[string]*commentHeap)}
}

// Offer considers c for its submission and reports whether it is retained.
// A full submission replaces its minimum only when c scores strictly higher.
func (r *Retainer) Offer(c model.Comment) bool {
	r.seq++
	h, ok := r.heaps[c.SubmissionID]
	if !ok {
		h = &commentHeap{}
		r.heaps[c.SubmissionID] = h
	}
	item := retained{comment: c, seq: r.seq}
	if h.Len() < r.capacity {
		heap.Push(h, item)
		return true
	}
	if c.Score <= (*h)[0].comment.Score {
		return false
	}
	(*h)[0] = item
	heap.Fix(h, 0)
	return true
}

// Holds reports whether comment id is currently retained for submissionID.
// Comments that were rejected or evicted are not remembered, so a repeat of
// one is offered again on its score.
func (r *Retainer) Holds(submissionID, id string) bool {
	h, ok := r.heaps[submissionID]
	if !ok {
		return false
	}
	for _, it := range *h {
		if it.comment.ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of comments currently tracked for a submission.
func (r *Retainer) Len(submissionID string) int {
	if h, ok := r.heaps[submissionID]; ok {
		return h.Len()
	}
	return 0
}

// Retained returns the comments kept for a submission, highest score first,
// with Rank assigned from 1.
func (r *Retainer) Retained(submissionID string) []model.Comment {
	h, ok := r.heaps[submissionID]
	if !ok {
		return nil
	}
	items := append([]retained(nil), (*h)...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].comment.Score != items[j].comment.Score {
			return items[i].comment.Score > items[j].comment.Score
		}
		return items[i].seq < items[j].seq
	})
	out := make([]model.Comment, len(items))
	for i, it := range items {
		out[i] = it.comment
		out[i].Rank = i + 1
	}
	return out
}

// Submissions returns the ids that have at least one retained comment, sorted.
func (r *Retainer) Submissions() []string {
	ids := make([]string, 0, len(r.heaps))
	for id := range r.heaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Total returns the number of retained comments across all submissions.
func (r *Retainer) Total() int {
	n := 0
	for _, h := range r.heaps {
		n += h.Len()
	}
	return n
}
