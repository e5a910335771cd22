package judge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jasonherngwang/peoples-court/internal/domain/assembly"
	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	. "github.com/smartystreets/goconvey/convey"
)

const opinionJSON = `{"verdict":"nta","opening_statement":"Order.","facts":"Rent.","precedents":[{"case_id":"p1","case_name":"The Case of the Late Rent","comparison":"Same landlord."},{"case_id":"ghost","comparison":"Invented."}],"deliberation":"Not at fault."}`

func brief() assembly.Brief {
	return assembly.New(0, 0).Assemble("AITA for paying rent late?", consensus.Distribution{NTA: 1}, true,
		[]model.Precedent{{Submission: model.Submission{ID: "p1", Title: "Rent", Verdict: verdict.NTA}}})
}

func TestOpenAIJudge(t *testing.T) {
	Convey("Given a chat completion server", t, func() {
		var prompt string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
				ResponseFormat struct {
					Type string `json:"type"`
				} `json:"response_format"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Messages) == 2 && req.ResponseFormat.Type == "json_object" {
				prompt = req.Messages[1].Content
			}
			content, _ := json.Marshal(opinionJSON)
			_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":`+string(content)+`},"finish_reason":"stop"}]}`)
		}))
		defer srv.Close()

		j, err := NewOpenAI("sk-test", srv.URL, "")
		So(err, ShouldBeNil)
		op, err := j.Deliberate(context.Background(), brief())

		Convey("Then the opinion is decoded and the verdict canonicalised", func() {
			So(err, ShouldBeNil)
			So(op.Verdict, ShouldEqual, verdict.NTA)
			So(op.Precedents, ShouldHaveLength, 2)
			So(op.Precedents[0].CaseName, ShouldEqual, "The Case of the Late Rent")
			So(prompt, ShouldContainSubstring, "CASE 1: ID `p1` - Title: Rent")
		})
	})

	Convey("Given a server returning a non-verdict", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"verdict\":\"INFO\"}"}}]}`)
		}))
		defer srv.Close()

		j, _ := NewOpenAI("sk-test", srv.URL, "")
		_, err := j.Deliberate(context.Background(), brief())
		So(errs.IsUpstream(err), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, `"INFO"`)
	})
}

func TestGeminiJudge(t *testing.T) {
	Convey("Given a Gemini API server", t, func() {
		var path string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			text, _ := json.Marshal(opinionJSON)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":`+string(text)+`}]}}]}`)
		}))
		defer srv.Close()

		j, err := NewGemini(context.Background(), "key", "", srv.URL)
		So(err, ShouldBeNil)
		op, err := j.Deliberate(context.Background(), brief())

		So(err, ShouldBeNil)
		So(op.Verdict, ShouldEqual, verdict.NTA)
		So(strings.HasSuffix(path, "gemini-2.5-flash:generateContent"), ShouldBeTrue)
	})

	Convey("Given no api key", t, func() {
		_, err := NewGemini(context.Background(), "", "", "")
		So(errs.IsValidation(err), ShouldBeTrue)
	})
}

func TestCite(t *testing.T) {
	Convey("Given citations of a known and an unknown case", t, func() {
		op, err := parseOpinion("test", "```json\n"+opinionJSON+"\n```")
		So(err, ShouldBeNil)

		precedents := []model.Precedent{{Submission: model.Submission{ID: "p1", Title: "Rent"}, Rank: 1}}
		cited := Cite(op, precedents)

		So(cited, ShouldHaveLength, 2)
		So(cited[0].Precedent, ShouldNotBeNil)
		So(cited[0].Precedent.Title, ShouldEqual, "Rent")
		So(cited[0].Comparison, ShouldEqual, "Same landlord.")
		So(cited[1].CaseID, ShouldEqual, "ghost")
		So(cited[1].Precedent, ShouldBeNil)
	})
}

func TestFactory(t *testing.T) {
	Convey("Given provider names", t, func() {
		_, err := New(context.Background(), Config{Provider: "none"})
		So(errors.Is(err, ErrDisabled), ShouldBeTrue)

		j, err := New(context.Background(), Config{Provider: "openai", APIKey: "k"})
		So(err, ShouldBeNil)
		So(j, ShouldHaveSameTypeAs, &OpenAI{})

		_, err = New(context.Background(), Config{Provider: "claude"})
		So(err.Error(), ShouldContainSubstring, "unknown judge provider")
	})

	Convey("Given the prompt", t, func() {
		p := Prompt(brief())
		So(p, ShouldStartWith, "You are the Judge of 'The People's Court'.")
		So(p, ShouldContainSubstring, "### PRE-DELIBERATION JURY POLLING:")
	})
}
