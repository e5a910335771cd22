// Package verdict assigns canonical verdict labels to submissions.
//
// A label comes from the post flair when the flair maps to one of the four
// verdicts; otherwise retained comments vote with the first verdict acronym
// they contain, weighted by comment score.
package verdict

import "strings"

// Label is a canonical verdict.
type Label string

// Verdict labels. INFO is recognised in comments but is never indexable.
const (
	YTA  Label = "YTA"
	NTA  Label = "NTA"
	ESH  Label = "ESH"
	NAH  Label = "NAH"
	INFO Label = "INFO"
)

// Labels lists the indexable labels in their canonical order.
var Labels = []Label{YTA, NTA, ESH, NAH}

// Indexable reports whether l is one of the four verdicts a precedent may carry.
func (l Label) Indexable() bool {
	switch l {
	case YTA, NTA, ESH, NAH:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (l Label) String() string { return string(l) }

// Parse returns the indexable label named by s, ignoring case and surrounding space.
func Parse(s string) (Label, bool) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	return l, l.Indexable()
}

// Status records how the labeler reached its decision.
type Status string

const (
	StatusFlair    Status = "flair"
	StatusComments Status = "comments"
	StatusJunk     Status = "junk"
	StatusTie      Status = "tie"
	StatusInfo     Status = "info"
	StatusNoSignal Status = "no_signal"
)

// Labeled reports whether a submission with this status carries a label.
func (s Status) Labeled() bool { return s == StatusFlair || s == StatusComments }
