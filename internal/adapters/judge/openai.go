package judge

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jasonherngwang/peoples-court/internal/domain/assembly"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

const openAIFormat = `Respond with a single JSON object with the keys "verdict" (one of YTA, NTA, ESH, NAH), "opening_statement", "facts", "precedents" (an array of {"case_id", "case_name", "comparison"}) and "deliberation".`

// OpenAI deliberates with an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI judge. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errs.WrapKind("openai.judge", errs.ErrValidation, errors.New("api key is required"))
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Deliberate implements Judge.
func (o *OpenAI) Deliberate(ctx context.Context, brief assembly.Brief) (op Opinion, err error) {
	start := time.Now()
	defer func() { metrics.RecordJudgeCall(float64(time.Since(start).Milliseconds()), err) }()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions + "\n\n" + openAIFormat},
			{Role: openai.ChatMessageRoleUser, Content: brief.Render()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.3,
	})
	if err != nil {
		return Opinion{}, errs.WrapKind("openai.judge", errs.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return Opinion{}, errs.WrapKind("openai.judge", errs.ErrUpstream, errors.New("no choices returned"))
	}
	return parseOpinion("openai.judge", resp.Choices[0].Message.Content)
}
