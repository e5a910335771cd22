package ingest

import (
	"strings"

	"github.com/jasonherngwang/peoples-court/internal/domain/model"
)

// Reason names why a record was skipped.
type Reason string

const (
	ReasonMalformed   Reason = "malformed"
	ReasonMissingID   Reason = "missing_id"
	ReasonDuplicate   Reason = "duplicate"
	ReasonBotAuthor   Reason = "bot_author"
	ReasonEmptyBody   Reason = "empty_body"
	ReasonLinkPost    Reason = "link_post"
	ReasonLowScore    Reason = "low_score"
	ReasonNotTopLevel Reason = "not_top_level"
	ReasonOrphan      Reason = "orphan"
	ReasonWriteFailed Reason = "write_failed"
)

var botAuthors = map[string]struct{}{
	"AutoModerator":    {},
	"AITA-Bot":         {},
	"JudgementBot":     {},
	"AITA-Verdict-Bot": {},
	"[deleted]":        {},
	"[removed]":        {},
}

// IsBot reports whether author is a moderator bot or a deleted account.
func IsBot(author string) bool {
	_, ok := botAuthors[author]
	return ok
}

// IsRemoved reports whether a body is empty or a removal marker.
func IsRemoved(body string) bool {
	switch strings.TrimSpace(body) {
	case "", "[removed]", "[deleted]":
		return true
	}
	return false
}

// Filter applies the submission quality rules.
type Filter struct {
	MinScore int
}

// Post validates a raw post and converts it. The returned reason is empty
// when the post is accepted. Duplicate detection is left to the caller.
func (f Filter) Post(p RawPost) (model.Submission, Reason) {
	body := deref(p.Selftext)
	switch {
	case p.ID == "":
		return model.Submission{}, ReasonMissingID
	case IsBot(p.Author):
		return model.Submission{}, ReasonBotAuthor
	case IsRemoved(body):
		return model.Submission{}, ReasonEmptyBody
	case !p.IsSelf:
		return model.Submission{}, ReasonLinkPost
	case int(p.Score) < f.MinScore:
		return model.Submission{}, ReasonLowScore
	}
	return model.Submission{
		ID:         p.ID,
		Author:     p.Author,
		Title:      p.Title,
		Body:       body,
		Score:      int(p.Score),
		CreatedUTC: p.CreatedUTC.time(),
		Flair:      deref(p.Flair),
		Permalink:  p.Permalink,
	}, ""
}

// Comment validates a raw comment and converts it. Orphan and duplicate
// detection is left to the caller.
func (f Filter) Comment(c RawComment) (model.Comment, Reason) {
	body := deref(c.Body)
	switch {
	case c.ID == "":
		return model.Comment{}, ReasonMissingID
	case IsBot(c.Author):
		return model.Comment{}, ReasonBotAuthor
	case IsRemoved(body):
		return model.Comment{}, ReasonEmptyBody
	case !c.TopLevel():
		return model.Comment{}, ReasonNotTopLevel
	}
	return model.Comment{
		ID:           c.ID,
		SubmissionID: c.SubmissionID(),
		Author:       c.Author,
		Body:         body,
		Score:        int(c.Score),
		IsSubmitter:  c.IsSubmitter,
	}, ""
}
