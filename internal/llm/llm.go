package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrEmptyResponse = errors.New("language model returned an empty response")

// Completer produces text from a prompt and an optional JPEG image.
type Completer interface {
	Complete(ctx context.Context, prompt string, image []byte) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client is what the rest of the service needs from a provider.
type Client interface {
	Completer
	Embedder
	IsAvailable(ctx context.Context) bool
}

type Config struct {
	Provider string

	OllamaURL   string
	Model       string
	VisionModel string
	EmbedModel  string

	OpenAIKey        string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAIEmbedModel string

	Timeout time.Duration
}

// New builds the configured provider, defaulting to Ollama.
func New(cfg Config) Client {
	if strings.EqualFold(cfg.Provider, "openai") {
		return NewOpenAIClient(cfg)
	}
	return NewOllamaClient(cfg)
}

func clean(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
