package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/logging"
)

func newTestTable() *Table {
	return NewTable(logging.New(nil, "silent"))
}

func TestTableResolveByRoute(t *testing.T) {
	tbl := newTestTable()
	openai := NewMockProvider("openai")
	ollama := NewMockProvider("ollama")
	tbl.Register(openai)
	tbl.Register(ollama)
	tbl.Route("gpt-4", "openai")
	tbl.Route("llama3", "ollama")
	tbl.SetFallback("openai")

	p, err := tbl.Resolve("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = tbl.Resolve("llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestTableResolveByProviderName(t *testing.T) {
	tbl := newTestTable()
	tbl.Register(NewMockProvider("ollama"))

	p, err := tbl.Resolve("ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestTableResolveFallback(t *testing.T) {
	tbl := newTestTable()
	tbl.Register(NewMockProvider("openai"))
	tbl.SetFallback("openai")

	p, err := tbl.Resolve("some-unknown-model")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestTableResolveUnknownNoFallback(t *testing.T) {
	tbl := newTestTable()
	tbl.Register(NewMockProvider("openai"))

	_, err := tbl.Resolve("some-unknown-model")
	assert.Error(t, err)
}

func TestTableList(t *testing.T) {
	tbl := newTestTable()
	tbl.Register(NewMockProvider("openai"))
	tbl.Register(NewMockProvider("ollama"))

	assert.Equal(t, []string{"ollama", "openai"}, tbl.List())
}

func TestMockProviderScript(t *testing.T) {
	p := NewMockProvider("mock")
	p.QueueReply(domain.Message{Role: domain.RoleAssistant, Content: "first"})

	msg, err := p.Complete(context.Background(), Request{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Content)

	// queue exhausted: echo the last message
	msg, err = p.Complete(context.Background(), Request{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "again"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "again", msg.Content)
}

func TestMockProviderFailure(t *testing.T) {
	p := NewMockProvider("mock")
	p.FailWith(&ProviderError{Provider: "mock", Message: "boom", Code: 500})

	_, err := p.Complete(context.Background(), Request{})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 500, perr.Code)
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Provider: "openai", Message: "rate limited", Code: 429}
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "rate limited")
}
