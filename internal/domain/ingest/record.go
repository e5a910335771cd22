package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// RawPost is a submission line of a Pushshift-style dump.
type RawPost struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Title      string  `json:"title"`
	Selftext   *string `json:"selftext"`
	Score      flexInt `json:"score"`
	CreatedUTC flexInt `json:"created_utc"`
	Flair      *string `json:"link_flair_text"`
	Permalink  string  `json:"permalink"`
	IsSelf     bool    `json:"is_self"`
}

// RawComment is a comment line of a Pushshift-style dump.
type RawComment struct {
	ID          string  `json:"id"`
	Author      string  `json:"author"`
	Body        *string `json:"body"`
	Score       flexInt `json:"score"`
	LinkID      string  `json:"link_id"`
	ParentID    string  `json:"parent_id"`
	IsSubmitter bool    `json:"is_submitter"`
	CreatedUTC  flexInt `json:"created_utc"`
}

// SubmissionID returns the parent submission id without its t3_ prefix.
func (c RawComment) SubmissionID() string { return strings.TrimPrefix(c.LinkID, threadPrefix) }

// TopLevel reports whether the comment replies to the submission itself.
func (c RawComment) TopLevel() bool { return strings.HasPrefix(c.ParentID, threadPrefix) }

const threadPrefix = "t3_"

// DecodePost parses one NDJSON line.
func DecodePost(line []byte) (RawPost, error) {
	var p RawPost
	if err := json.Unmarshal(line, &p); err != nil {
		return RawPost{}, errs.WrapKind("ingest.decode_post", errs.ErrValidation, err)
	}
	return p, nil
}

// DecodeComment parses one NDJSON line.
func DecodeComment(line []byte) (RawComment, error) {
	var c RawComment
	if err := json.Unmarshal(line, &c); err != nil {
		return RawComment{}, errs.WrapKind("ingest.decode_comment", errs.ErrValidation, err)
	}
	return c, nil
}

// flexInt accepts dump fields that are numbers in some years and strings in others.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
		if len(b) == 0 {
			*f = 0
			return nil
		}
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

func (f flexInt) time() time.Time {
	if f == 0 {
		return time.Time{}
	}
	return time.Unix(int64(f), 0).UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
