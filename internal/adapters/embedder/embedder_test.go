package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jasonherngwang/peoples-court/pkg/errs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOllama(t *testing.T) {
	Convey("Given an Ollama server", t, func() {
		var got ollamaRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/embed" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3],[0.4,0.5,0.6]]}`))
		}))
		defer srv.Close()

		enc := NewOllama(srv.URL+"/", "nomic-embed-text", 0)

		Convey("When two texts are embedded", func() {
			vecs, err := enc.Embed(context.Background(), []string{"a", "b"})

			Convey("Then vectors come back in order", func() {
				So(err, ShouldBeNil)
				So(vecs, ShouldHaveLength, 2)
				So(vecs[1][0], ShouldAlmostEqual, 0.4, 1e-6)
				So(got.Model, ShouldEqual, "nomic-embed-text")
				So(got.Input, ShouldResemble, []string{"a", "b"})
			})
		})
	})

	Convey("Given an Ollama server that fails", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewOllama(srv.URL, "missing", 0).Embed(context.Background(), []string{"a"})

		So(err, ShouldNotBeNil)
		So(errs.IsUpstream(err), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "model not found")
	})

	Convey("Given no endpoint", t, func() {
		So(NewOllama("", "m", 0).baseURL, ShouldEqual, DefaultOllamaURL)
	})
}

func TestOpenAI(t *testing.T) {
	Convey("Given an OpenAI-compatible server returning data out of order", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/embeddings" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[` +
				`{"object":"embedding","index":1,"embedding":[2,2]},` +
				`{"object":"embedding","index":0,"embedding":[1,1]}]}`))
		}))
		defer srv.Close()

		enc, err := NewOpenAI("sk-test", srv.URL, "", 0)
		So(err, ShouldBeNil)

		vecs, err := enc.Embed(context.Background(), []string{"first", "second"})

		So(err, ShouldBeNil)
		So(vecs, ShouldResemble, [][]float32{{1, 1}, {2, 2}})
	})

	Convey("Given a server returning an error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		}))
		defer srv.Close()

		enc, err := NewOpenAI("sk-test", srv.URL, "", 0)
		So(err, ShouldBeNil)
		_, err = enc.Embed(context.Background(), []string{"x"})

		So(errs.IsUpstream(err), ShouldBeTrue)
	})

	Convey("Given no api key", t, func() {
		_, err := NewOpenAI("", "", "", 0)
		So(errs.IsValidation(err), ShouldBeTrue)
	})
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) Dim() int { return 1 }

func TestCached(t *testing.T) {
	Convey("Given a cached embedder", t, func() {
		inner := &countingEmbedder{}
		cached, err := NewCached(inner, 2)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the same scenario is embedded twice", func() {
			a, _ := cached.EmbedOne(ctx, "abc")
			b, _ := cached.EmbedOne(ctx, "abc")

			Convey("Then the inner embedder is called once", func() {
				So(inner.calls.Load(), ShouldEqual, 1)
				So(a, ShouldResemble, b)
				So(cached.Len(), ShouldEqual, 1)
				So(cached.Dim(), ShouldEqual, 1)
			})
		})

		Convey("When more scenarios than the capacity are embedded", func() {
			for _, s := range []string{"a", "bb", "ccc"} {
				_, _ = cached.EmbedOne(ctx, s)
			}
			_, _ = cached.EmbedOne(ctx, "a")

			Convey("Then the oldest entry was evicted", func() {
				So(cached.Len(), ShouldEqual, 2)
				So(inner.calls.Load(), ShouldEqual, 4)
			})
		})

		Convey("When the inner embedder fails", func() {
			inner.err = errors.New("down")
			_, err := cached.EmbedOne(ctx, "x")

			Convey("Then nothing is cached", func() {
				So(err, ShouldNotBeNil)
				So(cached.Len(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a zero size", t, func() {
		inner := &countingEmbedder{}
		cached, err := NewCached(inner, 0)
		So(err, ShouldBeNil)
		_, _ = cached.EmbedOne(context.Background(), "a")
		_, _ = cached.EmbedOne(context.Background(), "a")

		So(inner.calls.Load(), ShouldEqual, 2)
		So(cached.Len(), ShouldEqual, 0)
	})
}

func TestFactory(t *testing.T) {
	Convey("Given provider names", t, func() {
		enc, err := New(Config{Provider: "Ollama"})
		So(err, ShouldBeNil)
		So(enc, ShouldHaveSameTypeAs, &Ollama{})

		enc, err = New(Config{Provider: "openai", APIKey: "k"})
		So(err, ShouldBeNil)
		So(enc, ShouldHaveSameTypeAs, &OpenAI{})

		_, err = New(Config{Provider: "cohere"})
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "unknown embed provider")
	})
}
