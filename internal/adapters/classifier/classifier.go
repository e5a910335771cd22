// Package classifier calls a Text Embeddings Inference style /predict
// endpoint serving the fine-tuned verdict classifier.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// ErrNoEndpoint is returned by New when no endpoint is configured.
var ErrNoEndpoint = errors.New("classifier endpoint is not configured")

const defaultTimeout = 5 * time.Second

// Client is a consensus.Classifier over HTTP.
type Client struct {
	endpoint  string
	rawScores bool
	client    *http.Client
}

var _ consensus.Classifier = (*Client)(nil)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithRawScores asks the server for logits; the client applies softmax.
func WithRawScores(raw bool) Option {
	return func(c *Client) { c.rawScores = raw }
}

// WithTimeout bounds each call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// New creates a Client for endpoint, e.g. "http://localhost:8080".
func New(endpoint string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrNoEndpoint
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type predictRequest struct {
	Inputs    string `json:"inputs"`
	RawScores bool   `json:"raw_scores"`
	Truncate  bool   `json:"truncate"`
}

// Poll implements consensus.Classifier.
func (c *Client) Poll(ctx context.Context, scenario string) (d consensus.Distribution, err error) {
	start := time.Now()
	defer func() { metrics.RecordClassifierCall(float64(time.Since(start).Milliseconds()), err) }()

	body, err := json.Marshal(predictRequest{Inputs: scenario, RawScores: c.rawScores, Truncate: true})
	if err != nil {
		return d, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return d, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return d, errs.WrapKind("classifier.poll", errs.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return d, errs.WrapKind("classifier.poll", errs.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return d, errs.WrapKind("classifier.poll", errs.ErrUpstream,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	scores, err := decodeScores(raw)
	if err != nil {
		return d, errs.WrapKind("classifier.poll", errs.ErrUpstream, err)
	}
	return consensus.FromScores(scores, c.rawScores)
}

// decodeScores accepts a flat list of scores or a batch of one.
func decodeScores(raw []byte) ([]consensus.Score, error) {
	var flat []consensus.Score
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var batch [][]consensus.Score
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(batch) == 0 {
		return nil, errors.New("empty prediction batch")
	}
	return batch[0], nil
}
