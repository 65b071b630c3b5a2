package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

// OllamaProvider serves completions from a local Ollama daemon.
type OllamaProvider struct {
	client *api.Client
}

// NewOllamaProvider creates an Ollama provider for the given base URL,
// e.g. http://localhost:11434.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Ollama URL: %w", err)
	}
	return &OllamaProvider{client: api.NewClient(u, http.DefaultClient)}, nil
}

// Name returns "ollama".
func (p *OllamaProvider) Name() string { return "ollama" }

// SupportsFunctions reports false; function round-trips are routed to
// providers with a tools API.
func (p *OllamaProvider) SupportsFunctions() bool { return false }

// Complete sends a non-streaming chat request.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (domain.Message, error) {
	messages := make([]api.Message, len(req.Messages))
	for i, msg := range req.Messages {
		role := string(msg.Role)
		if msg.Role == domain.RoleFunction {
			role = string(domain.RoleUser)
		}
		messages[i] = api.Message{Role: role, Content: msg.Content}
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	var out domain.Message
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out = domain.Message{Role: domain.RoleAssistant, Content: resp.Message.Content}
		return nil
	})
	if err != nil {
		return domain.Message{}, &ProviderError{Provider: p.Name(), Message: err.Error()}
	}
	return out, nil
}

// Models lists locally available model tags.
func (p *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Message: err.Error()}
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
