// Package embedder provides embedding.Encoder implementations and a query cache.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// Ollama calls the Ollama /api/embed endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// DefaultOllamaURL is used when no endpoint is configured.
const DefaultOllamaURL = "http://localhost:11434"

// NewOllama creates an Ollama encoder. A zero timeout falls back to 30s.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embedding.Encoder.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errs.WrapKind("ollama.embed", errs.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errs.WrapKind("ollama.embed", errs.ErrUpstream,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errs.WrapKind("ollama.embed", errs.ErrUpstream, fmt.Errorf("decode response: %w", err))
	}
	return out.Embeddings, nil
}
