package chat

import (
	"context"
	"fmt"

	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/fn"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/logging"
)

// Exchange resolves chat calls against the provider table and runs function
// round-trips. The gateway's /api/chat handlers and LocalTransport are both
// thin shims over it.
type Exchange struct {
	table    *llm.Table
	registry *fn.Registry
	log      *logging.Logger
}

// NewExchange creates the exchange service.
func NewExchange(table *llm.Table, registry *fn.Registry, log *logging.Logger) *Exchange {
	return &Exchange{
		table:    table,
		registry: registry,
		log:      log.Sub("chat.exchange"),
	}
}

// Chat proxies one completion call to the provider serving the model.
// Function definitions are attached when the request wants them and the
// provider understands them.
func (e *Exchange) Chat(ctx context.Context, req Request) (Completion, error) {
	provider, err := e.table.Resolve(req.Model)
	if err != nil {
		return Completion{}, err
	}

	lreq := llm.Request{
		Model:            req.Model,
		Messages:         req.Messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
	}
	if req.useFunctions() && provider.SupportsFunctions() {
		lreq.Functions = e.registry.Definitions()
	}

	reply, err := provider.Complete(ctx, lreq)
	if err != nil {
		return Completion{}, err
	}
	return Completion{Choices: []Choice{{Message: reply}}}, nil
}

// ChatFunction validates that the transcript ends in an assistant function
// call, executes it, and re-asks the model with the function-role result
// appended. Execution failures are reported to the model as an error result
// rather than failing the exchange; only an unknown function name is
// rejected outright.
func (e *Exchange) ChatFunction(ctx context.Context, req Request) (FunctionExchange, error) {
	if len(req.Messages) == 0 {
		return FunctionExchange{}, &domain.ValidationError{
			Field: "messages", Message: "the message list is empty",
		}
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != domain.RoleAssistant {
		return FunctionExchange{}, &domain.ValidationError{
			Field: "messages", Message: "the last message must be from the assistant",
		}
	}
	if last.FunctionCall == nil {
		return FunctionExchange{}, &domain.ValidationError{
			Field: "messages", Message: "the last message must be a function call",
		}
	}

	name := last.FunctionCall.Name
	if !e.registry.Has(name) {
		return FunctionExchange{}, fmt.Errorf("%w: %s", fn.ErrNotFound, name)
	}

	result, err := e.registry.Invoke(ctx, name, last.FunctionCall.Arguments)
	if err != nil {
		e.log.Error().Err(err).Str("function", name).Msg("function execution failed")
		result = fmt.Sprintf(`{"error":%q}`, err.Error())
	}

	fnMsg := domain.Message{Role: domain.RoleFunction, Name: name, Content: result}

	next := req
	next.Messages = make([]domain.Message, 0, len(req.Messages)+1)
	next.Messages = append(next.Messages, req.Messages...)
	next.Messages = append(next.Messages, fnMsg)

	completion, err := e.Chat(ctx, next)
	if err != nil {
		return FunctionExchange{}, err
	}
	return FunctionExchange{Result: completion, FunctionMessage: fnMsg}, nil
}

// LocalTransport runs the exchange in-process. It is the transport used when
// the controller and the gateway live in the same binary.
type LocalTransport struct {
	ex *Exchange
}

// NewLocalTransport wraps an exchange service as a Transport.
func NewLocalTransport(ex *Exchange) *LocalTransport {
	return &LocalTransport{ex: ex}
}

func (t *LocalTransport) Chat(ctx context.Context, req Request) (Completion, error) {
	return t.ex.Chat(ctx, req)
}

func (t *LocalTransport) ChatFunction(ctx context.Context, req Request) (FunctionExchange, error) {
	return t.ex.ChatFunction(ctx, req)
}
