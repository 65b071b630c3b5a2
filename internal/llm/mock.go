package llm

import (
	"context"
	"sync"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

// MockProvider is a scripted provider for tests. Each Complete call pops
// the next queued reply, or echoes the last message when the queue is
// empty.
type MockProvider struct {
	mu       sync.Mutex
	name     string
	replies  []domain.Message
	err      error
	requests []Request
}

// NewMockProvider creates a mock with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (p *MockProvider) Name() string            { return p.name }
func (p *MockProvider) SupportsFunctions() bool { return true }

// QueueReply appends an assistant reply to the script.
func (p *MockProvider) QueueReply(msg domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, msg)
}

// FailWith makes every subsequent call return err.
func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Requests returns a copy of every request seen so far.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *MockProvider) Complete(ctx context.Context, req Request) (domain.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return domain.Message{}, p.err
	}
	if len(p.replies) > 0 {
		msg := p.replies[0]
		p.replies = p.replies[1:]
		return msg, nil
	}
	content := ""
	if len(req.Messages) > 0 {
		content = req.Messages[len(req.Messages)-1].Content
	}
	return domain.Message{Role: domain.RoleAssistant, Content: content}, nil
}

func (p *MockProvider) Models(ctx context.Context) ([]string, error) {
	return []string{"mock-model"}, nil
}
