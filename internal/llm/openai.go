package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/fn"
)

// OpenAIProvider serves completions through the official OpenAI API.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates an OpenAI provider. baseURL may point at any
// OpenAI-compatible endpoint; empty defaults to the official API.
func NewOpenAIProvider(baseURL, apiKey string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: openai.NewClient(opts...)}, nil
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// SupportsFunctions reports that function definitions are understood.
func (p *OpenAIProvider) SupportsFunctions() bool { return true }

// Complete sends a non-streaming chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (domain.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(req.Model),
		Messages:         toOpenAIMessages(req.Messages),
		Temperature:      openai.Float(req.Temperature),
		PresencePenalty:  openai.Float(req.PresencePenalty),
		FrequencyPenalty: openai.Float(req.FrequencyPenalty),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Functions) > 0 {
		params.Tools = toOpenAITools(req.Functions)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return domain.Message{}, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Message{}, &ProviderError{Provider: p.Name(), Message: "response contained no choices"}
	}

	choice := resp.Choices[0].Message
	out := domain.Message{Role: domain.RoleAssistant, Content: choice.Content}
	if len(choice.ToolCalls) > 0 {
		tc := choice.ToolCalls[0]
		out.FunctionCall = &domain.FunctionCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return out, nil
}

// Models lists the chat-capable (gpt*) models the account can use.
func (p *OpenAIProvider) Models(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, p.wrapError(err)
	}
	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if strings.Contains(m.ID, "gpt") {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &ProviderError{Provider: p.Name(), Message: apierr.Error(), Code: apierr.StatusCode}
	}
	return &ProviderError{Provider: p.Name(), Message: err.Error()}
}

// toOpenAIMessages converts the wire transcript to SDK message params.
// Function-role turns are replayed as user messages carrying the result;
// the tools API has no slot for the legacy function role without a tool
// call id, and models consume the result either way.
func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case domain.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		case domain.RoleFunction:
			result[i] = openai.UserMessage(
				fmt.Sprintf("Function %s returned: %s", msg.Name, msg.Content))
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

func toOpenAITools(defs []fn.Definition) []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, len(defs))
	for i, def := range defs {
		params := openai.FunctionParameters{}
		if len(def.Parameters) > 0 {
			var m map[string]any
			if err := json.Unmarshal(def.Parameters, &m); err == nil {
				params = openai.FunctionParameters(m)
			}
		}
		tools[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  params,
		})
	}
	return tools
}
