// Package llm defines the provider capability interface and the concrete
// OpenAI and Ollama implementations behind it.
package llm

import (
	"context"
	"fmt"

	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/fn"
)

// Request carries one completion call. It is built per request and never
// mutated after construction; providers hold no per-request state.
type Request struct {
	Model            string
	Messages         []domain.Message
	Temperature      float64
	MaxTokens        int // 0 leaves the provider default
	PresencePenalty  float64
	FrequencyPenalty float64
	Functions        []fn.Definition
}

// Provider is one LLM backend.
type Provider interface {
	// Name returns the provider key ("openai", "ollama").
	Name() string

	// Models lists the models the backend currently serves.
	Models(ctx context.Context) ([]string, error)

	// SupportsFunctions reports whether the backend understands function
	// definitions in requests.
	SupportsFunctions() bool

	// Complete sends the request and returns the model's reply, which may
	// carry a function call.
	Complete(ctx context.Context, req Request) (domain.Message, error)
}

// ProviderError is returned when a backend call fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code when known (401, 429, 500, ...)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
