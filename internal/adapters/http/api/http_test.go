package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/adapters/http/api"
	"github.com/jasonherngwang/peoples-court/internal/adapters/judge"
	"github.com/jasonherngwang/peoples-court/internal/adapters/ratelimit"
	service "github.com/jasonherngwang/peoples-court/internal/app"
	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/retrieval"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

// Mock implementations for testing
type mockDependencies struct {
	result        retrieval.Result
	retrieveErr   error
	ruling        service.Ruling
	deliberateErr error
	judge         bool
	limiter       ratelimit.Limiter
	rebuilds      int

	lastRequest retrieval.Request
}

func (m *mockDependencies) Retrieve(_ context.Context, req retrieval.Request) (retrieval.Result, error) {
	m.lastRequest = req
	if m.retrieveErr != nil {
		return retrieval.Result{}, m.retrieveErr
	}
	return m.result, nil
}

func (m *mockDependencies) Deliberate(context.Context, string, retrieval.Result) (service.Ruling, error) {
	if m.deliberateErr != nil {
		return service.Ruling{}, m.deliberateErr
	}
	return m.ruling, nil
}

func (m *mockDependencies) Adjudicate(ctx context.Context, req retrieval.Request) (service.Adjudication, error) {
	if !m.judge {
		return service.Adjudication{}, service.ErrJudgeDisabled
	}
	res, err := m.Retrieve(ctx, req)
	if err != nil {
		return service.Adjudication{}, err
	}
	out := service.Adjudication{Retrieval: res}
	if len(res.Precedents) == 0 {
		return out, service.ErrNoPrecedents
	}
	out.Ruling, err = m.Deliberate(ctx, req.Scenario, res)
	return out, err
}

func (m *mockDependencies) JudgeEnabled() bool { return m.judge }

func (m *mockDependencies) Rebuild(context.Context) (search.BuildInfo, error) {
	m.rebuilds++
	return search.BuildInfo{Documents: 2, Dim: 256, Took: 1500 * time.Microsecond, BuiltAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, nil
}

func (m *mockDependencies) Health(context.Context) service.Health {
	return service.Health{Started: true, IndexBackend: "memory", IndexDocuments: 2, IndexDim: 256, Judge: m.judge}
}

func (m *mockDependencies) Limiter() ratelimit.Limiter {
	if m.limiter == nil {
		return ratelimit.Unlimited{}
	}
	return m.limiter
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func precedent(id string, rank int) model.Precedent {
	return model.Precedent{
		Submission: model.Submission{
			ID:      id,
			Title:   "AITA for " + id,
			Body:    "Story " + id,
			Verdict: verdict.NTA,
			Comments: []model.Comment{
				{Author: "judy", Body: "NTA, obviously.", Score: 900, Rank: 1},
			},
		},
		Rank:  rank,
		Score: 0.03,
	}
}

func newDeps() *mockDependencies {
	precedents := []model.Precedent{precedent("a", 1), precedent("b", 2)}
	return &mockDependencies{
		result: retrieval.Result{
			Precedents:         precedents,
			Consensus:          consensus.Distribution{NTA: 0.7, YTA: 0.1, ESH: 0.1, NAH: 0.1},
			ConsensusAvailable: true,
			Status:             retrieval.StatusOK,
		},
		ruling: service.Ruling{
			Opinion: judge.Opinion{
				Verdict:          verdict.NTA,
				OpeningStatement: "Order in the court.",
				Facts:            "Rent was refused.",
				Deliberation:     "As in The Case of the Unpaid Rent, NTA.",
			},
			Citations: []judge.Cited{
				{Citation: judge.Citation{CaseID: "a", CaseName: "The Case of the Unpaid Rent", Comparison: "Same."}, Precedent: &precedents[0]},
				{Citation: judge.Citation{CaseID: "zz", Comparison: "Unknown."}},
			},
		},
		judge: true,
	}
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, true).Register(context.Background(), mux)
	return mux
}

func post(mux http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(newDeps())

		Convey("Then health reports the index", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["status"], ShouldEqual, "ok")
			So(body["index"].(map[string]any)["documents"], ShouldEqual, 2.0)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("Then stats are served", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then stats reject POST", func() {
			req := httptest.NewRequest(http.MethodPost, "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, "GET, HEAD")
		})

		Convey("Then metrics are served", func() {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then case endpoints reject GET", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/retrieve", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRetrieve(t *testing.T) {
	Convey("Given a retrieve endpoint", t, func() {
		deps := newDeps()
		mux := newMux(deps)

		Convey("When a scenario is posted", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/retrieve",
				strings.NewReader(`{"scenario":"  I refused to pay rent  ","k_precedents":2,"include_diagnostics":true}`))
			req.Header.Set("X-Request-ID", "req-42")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then precedents, comments and the poll are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["request_id"], ShouldEqual, "req-42")
				So(body["status"], ShouldEqual, "ok")
				So(body["consensus_available"], ShouldEqual, true)
				So(body["consensus"].(map[string]any)["NTA"], ShouldEqual, 0.7)
				So(body["warnings"], ShouldResemble, []any{})

				ps := body["precedents"].([]any)
				So(ps, ShouldHaveLength, 2)
				first := ps[0].(map[string]any)
				So(first["id"], ShouldEqual, "a")
				So(first["text"], ShouldEqual, "Story a")
				So(first["verdict"], ShouldEqual, "NTA")
				So(first["rank"], ShouldEqual, 1.0)
				comments := first["comments"].([]any)
				So(comments[0].(map[string]any)["author"], ShouldEqual, "judy")
			})

			Convey("Then the request reaches the engine normalised", func() {
				So(deps.lastRequest, ShouldResemble, retrieval.Request{Scenario: "I refused to pay rent", K: 2, Diagnostics: true})
			})
		})

		Convey("When the poll is unavailable", func() {
			deps.result.ConsensusAvailable = false
			deps.result.Status = retrieval.StatusPartial
			deps.result.Warnings = []string{"consensus unavailable: timeout"}
			w := post(mux, "/v1/retrieve", `{"scenario":"x"}`)

			Convey("Then consensus is null and the result is partial", func() {
				body := decode(w)
				So(body["consensus"], ShouldBeNil)
				So(body["consensus_available"], ShouldEqual, false)
				So(body["status"], ShouldEqual, "partial")
				So(body["warnings"], ShouldHaveLength, 1)
			})
		})

		Convey("When the request is invalid", func() {
			for _, body := range []string{`{"scenario":"   "}`, `{"scenario":"x","k_precedents":-1}`, `not json`} {
				w := post(mux, "/v1/retrieve", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "validation_error")
			}
		})

		Convey("When the engine fails", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{errs.WrapKind("retrieval.validate", errs.ErrValidation, retrieval.ErrInvalidK), http.StatusBadRequest, "validation_error"},
				{errs.WrapKind("retrieval.dense", errs.ErrUpstream, errors.New("ollama down")), http.StatusBadGateway, "upstream_error"},
				{errs.WrapKind("retrieval.dense", errs.ErrConsistency, errors.New("dims")), http.StatusInternalServerError, "consistency_error"},
				{service.ErrNotStarted, http.StatusServiceUnavailable, "not_ready"},
			}
			for _, c := range cases {
				deps.retrieveErr = c.err
				w := post(mux, "/v1/retrieve", `{"scenario":"x"}`)
				So(w.Code, ShouldEqual, c.status)
				body := decode(w)
				So(body["code"], ShouldEqual, c.code)
				So(body["request_id"], ShouldNotBeEmpty)
			}
		})
	})
}

func TestAdjudicate(t *testing.T) {
	Convey("Given an adjudicate endpoint", t, func() {
		deps := newDeps()
		mux := newMux(deps)

		Convey("When a case is posted", func() {
			w := post(mux, "/v1/adjudicate", `{"scenario":"I refused to pay rent","k_precedents":2}`)

			Convey("Then the ruling is merged with the precedents", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["verdict"], ShouldEqual, "NTA")
				So(body["opening_statement"], ShouldEqual, "Order in the court.")
				So(body["status"], ShouldEqual, "ok")
				So(body["consensus_available"], ShouldEqual, true)

				cited := body["precedents"].([]any)
				So(cited, ShouldHaveLength, 2)
				first := cited[0].(map[string]any)
				So(first["case_name"], ShouldEqual, "The Case of the Unpaid Rent")
				So(first["precedent"].(map[string]any)["title"], ShouldEqual, "AITA for a")
				So(cited[1].(map[string]any), ShouldNotContainKey, "precedent")
			})
		})

		Convey("When nothing is retrieved", func() {
			deps.result.Precedents = nil
			w := post(mux, "/v1/adjudicate", `{"scenario":"x"}`)

			Convey("Then 404 carries the poll", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				body := decode(w)
				So(body["code"], ShouldEqual, "no_precedents")
				So(body["consensus"].(map[string]any)["NTA"], ShouldEqual, 0.7)
			})
		})

		Convey("When no judge is configured", func() {
			deps.judge = false
			w := post(mux, "/v1/adjudicate", `{"scenario":"x"}`)

			Convey("Then the endpoint is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["code"], ShouldEqual, "judge_unavailable")
			})
		})
	})
}

type streamFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func frames(w *httptest.ResponseRecorder) []streamFrame {
	var out []streamFrame
	sc := bufio.NewScanner(w.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f streamFrame
		So(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f), ShouldBeNil)
		out = append(out, f)
	}
	return out
}

func events(fs []streamFrame) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Event
	}
	return out
}

func TestAdjudicateStream(t *testing.T) {
	Convey("Given a streaming adjudicate endpoint", t, func() {
		deps := newDeps()
		mux := newMux(deps)

		Convey("When a case is streamed", func() {
			w := post(mux, "/v1/adjudicate/stream", `{"scenario":"x"}`)

			Convey("Then events arrive in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "text/event-stream")
				fs := frames(w)
				So(events(fs), ShouldResemble, []string{"status", "consensus", "precedents", "status", "opinion", "done"})

				var op struct {
					Verdict string `json:"verdict"`
				}
				So(json.Unmarshal(fs[4].Data, &op), ShouldBeNil)
				So(op.Verdict, ShouldEqual, "NTA")
			})
		})

		Convey("When the judge fails mid-stream", func() {
			deps.deliberateErr = errs.WrapKind("judge.gemini", errs.ErrUpstream, errors.New("quota"))
			fs := frames(post(mux, "/v1/adjudicate/stream", `{"scenario":"x"}`))

			Convey("Then an error event precedes done", func() {
				So(events(fs), ShouldResemble, []string{"status", "consensus", "precedents", "status", "error", "done"})
				var e struct {
					Code string `json:"code"`
				}
				So(json.Unmarshal(fs[4].Data, &e), ShouldBeNil)
				So(e.Code, ShouldEqual, "upstream_error")
			})
		})

		Convey("When nothing is retrieved", func() {
			deps.result.Precedents = nil
			fs := frames(post(mux, "/v1/adjudicate/stream", `{"scenario":"x"}`))

			Convey("Then the poll is still streamed", func() {
				So(events(fs), ShouldResemble, []string{"status", "consensus", "precedents", "error", "done"})
			})
		})

		Convey("When the request is invalid", func() {
			w := post(mux, "/v1/adjudicate/stream", `{}`)

			Convey("Then it fails before streaming", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode(w)["code"], ShouldEqual, "validation_error")
			})
		})

		Convey("When no judge is configured", func() {
			deps.judge = false
			w := post(mux, "/v1/adjudicate/stream", `{"scenario":"x"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestRebuild(t *testing.T) {
	Convey("Given a rebuild endpoint", t, func() {
		deps := newDeps()
		w := post(newMux(deps), "/v1/index/rebuild", "")

		Convey("Then the build summary is returned", func() {
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["documents"], ShouldEqual, 2.0)
			So(body["took_ms"], ShouldEqual, 1.5)
			So(body["built_at"], ShouldEqual, "2026-01-02T03:04:05Z")
			So(deps.rebuilds, ShouldEqual, 1)
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a limit of one request per window", t, func() {
		deps := newDeps()
		deps.limiter = ratelimit.New(1, time.Minute)
		mux := newMux(deps)

		send := func(client string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", strings.NewReader(`{"scenario":"x"}`))
			req.Header.Set("X-Forwarded-For", client+", 10.0.0.1")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		So(send("203.0.113.7").Code, ShouldEqual, http.StatusOK)

		Convey("Then the second request from the client is rejected", func() {
			w := send("203.0.113.7")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Header().Get("Retry-After"), ShouldNotBeEmpty)
			So(decode(w)["code"], ShouldEqual, "rate_limited")
		})

		Convey("Then other clients are unaffected", func() {
			So(send("198.51.100.9").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then health checks are never limited", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}
