// Package repository persists the working corpus.
package repository

import (
	"context"

	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
)

// Selection names a subset of submissions for paging.
type Selection int

const (
	// SelectAll pages every submission.
	SelectAll Selection = iota
	// SelectUnlabeled pages submissions the labeler has not looked at yet.
	SelectUnlabeled
	// SelectLabeled pages submissions carrying a verdict.
	SelectLabeled
	// SelectPendingEmbedding pages labeled submissions without a vector.
	SelectPendingEmbedding
	// SelectIndexable pages labeled submissions with a vector.
	SelectIndexable
)

// PageQuery selects one keyset page ordered by submission id.
type PageQuery struct {
	Selection    Selection
	AfterID      string
	Limit        int
	WithComments bool
}

// LabelUpdate is one labeler decision.
type LabelUpdate struct {
	ID     string
	Label  verdict.Label // empty when Status is not a labeled status
	Status verdict.Status
}

// VectorUpdate is one embedding write.
type VectorUpdate struct {
	ID        string
	Embedding []float32
}

// Stats summarises corpus contents.
type Stats struct {
	Submissions int            `json:"submissions"`
	Comments    int            `json:"comments"`
	Labeled     int            `json:"labeled"`
	Embedded    int            `json:"embedded"`
	ByLabel     map[string]int `json:"by_label"`
	ByStatus    map[string]int `json:"by_status"`
}

// Store provides read/write access to the corpus.
type Store interface {
	SubmissionIDs(ctx context.Context) ([]string, error)
	InsertSubmissions(ctx context.Context, subs []model.Submission) (int, error)
	// ReplaceComments swaps in new comments per submission. A submission
	// left undecided by its old comments (no_signal, tie or info) is reopened
	// for the labeler.
	ReplaceComments(ctx context.Context, comments []model.Comment) error

	// SetLabels records labeler decisions. Submissions that already carry a
	// status are left untouched; the return value counts rows written.
	SetLabels(ctx context.Context, updates []LabelUpdate) (int, error)
	// SetEmbeddings stores vectors for labeled submissions that have none yet.
	SetEmbeddings(ctx context.Context, updates []VectorUpdate) (int, error)

	Page(ctx context.Context, q PageQuery) ([]model.Submission, error)
	// Get returns the requested submissions with comments; unknown ids are absent.
	Get(ctx context.Context, ids []string) (map[string]model.Submission, error)
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
