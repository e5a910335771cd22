package judge

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"github.com/jasonherngwang/peoples-court/internal/domain/assembly"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini deliberates with the Gemini API and a JSON response schema.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini judge. An empty baseURL uses the public API.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errs.WrapKind("gemini.judge", errs.ErrValidation, errors.New("api key is required"))
	}
	if model == "" {
		model = defaultGeminiModel
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errs.WrapKind("gemini.judge", errs.ErrUpstream, err)
	}
	return &Gemini{client: client, model: model}, nil
}

// opinionSchema mirrors Opinion.
func opinionSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"verdict":           {Type: genai.TypeString, Enum: []string{"YTA", "NTA", "ESH", "NAH"}},
			"opening_statement": str(),
			"facts":             str(),
			"precedents": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"case_id":    str(),
						"case_name":  str(),
						"comparison": str(),
					},
					Required: []string{"case_id", "comparison"},
				},
			},
			"deliberation": str(),
		},
		Required: []string{"verdict", "opening_statement", "facts", "precedents", "deliberation"},
	}
}

// Deliberate implements Judge.
func (g *Gemini) Deliberate(ctx context.Context, brief assembly.Brief) (op Opinion, err error) {
	start := time.Now()
	defer func() { metrics.RecordJudgeCall(float64(time.Since(start).Milliseconds()), err) }()

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: Prompt(brief)}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   opinionSchema(),
		},
	)
	if err != nil {
		return Opinion{}, errs.WrapKind("gemini.judge", errs.ErrUpstream, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Opinion{}, errs.WrapKind("gemini.judge", errs.ErrUpstream, errors.New("empty response"))
	}
	return parseOpinion("gemini.judge", resp.Candidates[0].Content.Parts[0].Text)
}
