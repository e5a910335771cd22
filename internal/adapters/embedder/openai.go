package embedder

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/sashabaranov/go-openai"
)

// OpenAI calls an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAI creates an OpenAI encoder. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errs.WrapKind("openai.embed", errs.ErrValidation, errors.New("api key is required"))
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, timeout: timeout}, nil
}

// Embed implements embedding.Encoder.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, errs.WrapKind("openai.embed", errs.ErrUpstream, err)
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
