// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
)

// MaxComments is the default number of comments retained per submission.
const MaxComments = 3

// Submission is a community post in the working corpus.
type Submission struct {
	ID         string
	Author     string
	Title      string
	Body       string
	Score      int
	CreatedUTC time.Time
	Flair      string
	Permalink  string

	Comments []Comment // retained top comments, ordered by Rank

	Verdict     verdict.Label  // empty until labeled
	LabelStatus verdict.Status // empty until the labeler has looked at the submission
	Embedding   []float32      // nil until embedded
}

// Text is the document text used for embedding and training export.
func (s Submission) Text() string { return s.Title + "\n\n" + s.Body }

// Indexable reports whether the submission may appear in a retrieval index.
func (s Submission) Indexable() bool {
	return s.Verdict.Indexable() && len(s.Embedding) > 0
}

// Comment is a retained top-level comment.
type Comment struct {
	ID           string
	SubmissionID string
	Author       string
	Body         string
	Score        int
	IsSubmitter  bool
	Rank         int // 1-based position among retained comments
}

// Precedent is a submission surfaced by retrieval, with its fused rank and score.
type Precedent struct {
	Submission
	Rank  int
	Score float64
}
