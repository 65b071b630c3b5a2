package chat

import (
	"context"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

// Request is the wire body of a chat call: the full outgoing transcript plus
// the sampling parameters in effect when the turn started.
type Request struct {
	Model            string           `json:"model"`
	Messages         []domain.Message `json:"messages"`
	Temperature      float64          `json:"temperature"`
	MaxTokens        int              `json:"max_tokens,omitempty"`
	PresencePenalty  float64          `json:"presence_penalty"`
	FrequencyPenalty float64          `json:"frequency_penalty"`
	UseFunction      *bool            `json:"useFunction,omitempty"`
}

// useFunctions resolves the tri-state UseFunction field; absent means on.
func (r Request) useFunctions() bool {
	return r.UseFunction == nil || *r.UseFunction
}

// Choice is one candidate reply in a completion envelope.
type Choice struct {
	Message domain.Message `json:"message"`
}

// Completion is the reply envelope of a chat call.
type Completion struct {
	Choices []Choice `json:"choices"`
}

// FunctionExchange is the reply of a function round-trip: the function-role
// message produced by executing the call, and the model's follow-up
// completion after seeing it.
type FunctionExchange struct {
	Result          Completion     `json:"result"`
	FunctionMessage domain.Message `json:"functionMessage"`
}

// Transport carries chat calls to wherever the exchange service runs. The
// controller does not care whether that is in-process or over HTTP.
type Transport interface {
	// Chat sends the transcript and returns the model's reply.
	Chat(ctx context.Context, req Request) (Completion, error)

	// ChatFunction executes the function call in the trailing assistant
	// message and re-asks the model with the result appended.
	ChatFunction(ctx context.Context, req Request) (FunctionExchange, error)
}
