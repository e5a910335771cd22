// Package assembly packages a scenario, the jury poll and the retrieved
// precedents into the brief handed to a judge. It performs no adjudication.
package assembly

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
)

// Default excerpt bounds, in runes.
const (
	DefaultBodyChars    = 1000
	DefaultCommentChars = 200
)

const ellipsis = "..."

// Testimony is an excerpt of one retained comment.
type Testimony struct {
	Author  string `json:"author"`
	Score   int    `json:"score"`
	Excerpt string `json:"excerpt"`
}

// Exhibit is one precedent as presented to the judge.
type Exhibit struct {
	Rank      int           `json:"rank"`
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Verdict   verdict.Label `json:"verdict"`
	Facts     string        `json:"facts"`
	Testimony []Testimony   `json:"testimony"`
}

// Brief is the complete judge input.
type Brief struct {
	Scenario           string                 `json:"scenario"`
	Consensus          consensus.Distribution `json:"consensus"`
	ConsensusAvailable bool                   `json:"consensus_available"`
	Exhibits           []Exhibit              `json:"exhibits"`
}

// Assembler builds Briefs with fixed excerpt bounds.
type Assembler struct {
	bodyChars    int
	commentChars int
}

// New creates an Assembler. Non-positive bounds use the defaults.
func New(bodyChars, commentChars int) Assembler {
	if bodyChars <= 0 {
		bodyChars = DefaultBodyChars
	}
	if commentChars <= 0 {
		commentChars = DefaultCommentChars
	}
	return Assembler{bodyChars: bodyChars, commentChars: commentChars}
}

// Assemble builds the Brief. Precedents keep their order.
func (a Assembler) Assemble(scenario string, poll consensus.Distribution, pollAvailable bool, precedents []model.Precedent) Brief {
	b := Brief{
		Scenario:           scenario,
		Consensus:          poll,
		ConsensusAvailable: pollAvailable,
		Exhibits:           make([]Exhibit, 0, len(precedents)),
	}
	for i, p := range precedents {
		ex := Exhibit{
			Rank:      i + 1,
			ID:        p.ID,
			Title:     p.Title,
			Verdict:   p.Verdict,
			Facts:     Excerpt(p.Body, a.bodyChars),
			Testimony: make([]Testimony, 0, len(p.Comments)),
		}
		for _, c := range p.Comments {
			ex.Testimony = append(ex.Testimony, Testimony{
				Author:  c.Author,
				Score:   c.Score,
				Excerpt: Excerpt(c.Body, a.commentChars),
			})
		}
		b.Exhibits = append(b.Exhibits, ex)
	}
	return b
}

// Excerpt returns the first n runes of s, followed by "..." only when
// something was cut.
func Excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + ellipsis
		}
		count++
	}
	return s
}

// Exhibit returns the exhibit with the given case id.
func (b Brief) Exhibit(id string) (Exhibit, bool) {
	for _, e := range b.Exhibits {
		if e.ID == id {
			return e, true
		}
	}
	return Exhibit{}, false
}

// Render produces the textual brief.
func (b Brief) Render() string {
	var sb strings.Builder
	sb.WriteString("### CURRENT EVIDENCE PROVIDED BY THE PLAINTIFF:\n\n")
	sb.WriteString(b.Scenario)
	sb.WriteString("\n\n")

	sb.WriteString("### PRE-DELIBERATION JURY POLLING:\n")
	if b.ConsensusAvailable {
		for _, l := range consensus.Order {
			fmt.Fprintf(&sb, "- %s: %.2f%%\n", l, b.Consensus.Get(l)*100)
		}
	} else {
		sb.WriteString("- unavailable\n")
	}
	sb.WriteString("\n")

	sb.WriteString("### RELEVANT CASE LAW (PRECEDENTS):\n\n")
	for _, e := range b.Exhibits {
		fmt.Fprintf(&sb, "CASE %d: ID `%s` - Title: %s\n", e.Rank, e.ID, e.Title)
		fmt.Fprintf(&sb, "Official Reddit Verdict: %s\n", e.Verdict)
		fmt.Fprintf(&sb, "Facts: %s\n", e.Facts)
		sb.WriteString("Top Judgments from the Jury:\n")
		for _, t := range e.Testimony {
			fmt.Fprintf(&sb, "- %s (Score %d): %s\n", t.Author, t.Score, t.Excerpt)
		}
		sb.WriteString("\n---\n")
	}
	return sb.String()
}
