package embedder

import (
	"fmt"
	"strings"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/embedding"
)

// Config selects and configures an encoder.
type Config struct {
	Provider string
	Model    string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// New creates the encoder named by cfg.Provider.
func New(cfg Config) (embedding.Encoder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model, cfg.Timeout), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Endpoint, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown embed provider: %s (supported: ollama, openai)", cfg.Provider)
	}
}
