package verdict

// Comment is a retained comment as seen by the labeler.
type Comment struct {
	Body        string
	Score       int
	IsSubmitter bool
}

// Result is the labeler decision for one submission. Label is empty unless
// Status.Labeled() is true.
type Result struct {
	Label  Label
	Status Status
	Tally  map[Label]int
}

// Labeler resolves a verdict from flair and comment votes.
type Labeler struct {
	weightCap int
}

// Option configures a Labeler.
type Option func(*Labeler)

// WithWeightCap clamps each comment vote to [1, limit]. Zero or less counts raw scores.
func WithWeightCap(limit int) Option {
	return func(l *Labeler) {
		if limit > 0 {
			l.weightCap = limit
		}
	}
}

// NewLabeler creates a Labeler.
func NewLabeler(opts ...Option) *Labeler {
	l := &Labeler{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Label decides the verdict for a submission.
func (l *Labeler) Label(title, flair string, comments []Comment) Result {
	if IsJunk(title, flair) {
		return Result{Status: StatusJunk}
	}
	if label, ok := FlairLabel(flair); ok {
		return Result{Label: label, Status: StatusFlair}
	}

	tally := make(map[Label]int)
	for _, c := range comments {
		if c.IsSubmitter {
			continue
		}
		label, ok := Match(c.Body)
		if !ok {
			continue
		}
		tally[label] += l.weight(c.Score)
	}
	if len(tally) == 0 {
		return Result{Status: StatusNoSignal}
	}

	var (
		winner Label
		best   int
		tied   bool
		first  = true
	)
	for label, score := range tally {
		switch {
		case first || score > best:
			winner, best, tied, first = label, score, false, false
		case score == best:
			tied = true
		}
	}

	switch {
	case tied:
		return Result{Status: StatusTie, Tally: tally}
	case winner == INFO:
		return Result{Status: StatusInfo, Tally: tally}
	default:
		return Result{Label: winner, Status: StatusComments, Tally: tally}
	}
}

func (l *Labeler) weight(score int) int {
	if l.weightCap <= 0 {
		return score
	}
	return max(1, min(score, l.weightCap))
}
