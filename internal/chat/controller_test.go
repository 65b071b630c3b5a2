package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/logging"
	"github.com/oshaberi-app/oshaberi/internal/session"
	"github.com/oshaberi-app/oshaberi/internal/settings"
	"github.com/oshaberi-app/oshaberi/internal/token"
)

// wordTokenizer counts whitespace-separated words.
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(strings.Fields(text))
}

// scriptedTransport replays queued completions and function exchanges.
type scriptedTransport struct {
	mu          sync.Mutex
	completions []Completion
	exchanges   []FunctionExchange
	chatErr     error
	requests    []Request
	block       chan struct{} // when set, Chat waits on it
}

func (s *scriptedTransport) queueReply(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, Completion{Choices: []Choice{{
		Message: domain.Message{Role: domain.RoleAssistant, Content: content},
	}}})
}

func (s *scriptedTransport) queueFunctionCall(name, args string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, Completion{Choices: []Choice{{
		Message: domain.Message{
			Role:         domain.RoleAssistant,
			FunctionCall: &domain.FunctionCall{Name: name, Arguments: args},
		},
	}}})
}

func (s *scriptedTransport) queueExchange(fx FunctionExchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = append(s.exchanges, fx)
}

func (s *scriptedTransport) Chat(ctx context.Context, req Request) (Completion, error) {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.chatErr != nil {
		return Completion{}, s.chatErr
	}
	if len(s.completions) == 0 {
		return Completion{}, errors.New("no scripted completion")
	}
	out := s.completions[0]
	s.completions = s.completions[1:]
	return out, nil
}

func (s *scriptedTransport) ChatFunction(ctx context.Context, req Request) (FunctionExchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.exchanges) == 0 {
		return FunctionExchange{}, errors.New("no scripted exchange")
	}
	out := s.exchanges[0]
	s.exchanges = s.exchanges[1:]
	return out, nil
}

// recordingNotifier collects events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

func (n *recordingNotifier) last() Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return Event{}
	}
	return n.events[len(n.events)-1]
}

type fixture struct {
	sessions  *session.Store
	settings  *settings.Settings
	transport *scriptedTransport
	notifier  *recordingNotifier
	ctrl      *Controller
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		sessions:  session.NewStore(),
		settings:  settings.New(settings.Defaults(), []string{"gpt-3.5-turbo", "gpt-4"}),
		transport: &scriptedTransport{},
		notifier:  &recordingNotifier{},
	}
	counter := token.NewCounter(wordTokenizer{})
	f.ctrl = NewController(
		f.sessions, f.settings, f.transport, counter, f.notifier,
		logging.New(nil, "silent"), cfg,
	)
	return f
}

func TestSendPlainAnswer(t *testing.T) {
	f := newFixture(t, Config{})
	f.transport.queueReply("2 + 2 = 4")

	require.NoError(t, f.ctrl.Send(context.Background(), "What is 2+2?"))

	sess := f.sessions.Selected()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, domain.RoleUser, sess.Messages[0].Raw.Role)
	assert.Equal(t, "What is 2+2?", sess.Messages[0].Raw.Content)
	assert.Equal(t, domain.RoleAssistant, sess.Messages[1].Raw.Role)
	assert.Equal(t, "2 + 2 = 4", sess.Messages[1].Raw.Content)

	assert.Equal(t, StateIdle, f.ctrl.State(sess.ID))
	assert.Equal(t, []EventType{EventSending, EventDone}, f.notifier.types())
}

func TestSendEmptyMessage(t *testing.T) {
	f := newFixture(t, Config{})
	assert.ErrorIs(t, f.ctrl.Send(context.Background(), "   "), ErrEmptyMessage)
}

func TestSendRequestCarriesSettings(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.settings.SetMaxTokens(100))
	require.NoError(t, f.settings.SetTemperature(0.5))
	f.transport.queueReply("ok")

	require.NoError(t, f.ctrl.Send(context.Background(), "one two three"))

	require.Len(t, f.transport.requests, 1)
	req := f.transport.requests[0]
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Equal(t, 0.5, req.Temperature)
	require.NotNil(t, req.UseFunction)
	assert.True(t, *req.UseFunction)
	// one 3-word message: 4 + 3 + 3 = 10 tokens, budget 100 - 10
	assert.Equal(t, 90, req.MaxTokens)
}

func TestSendUnlimitedBudget(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.settings.SetMaxTokens(0))
	f.transport.queueReply("ok")

	require.NoError(t, f.ctrl.Send(context.Background(), "hello"))

	require.Len(t, f.transport.requests, 1)
	assert.Equal(t, 0, f.transport.requests[0].MaxTokens)
}

func TestSendFunctionRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	f.transport.queueFunctionCall("tell_datetime", `{"timezone":"UTC"}`)
	f.transport.queueExchange(FunctionExchange{
		Result: Completion{Choices: []Choice{{Message: domain.Message{
			Role: domain.RoleAssistant, Content: "It is noon in UTC.",
		}}}},
		FunctionMessage: domain.Message{
			Role: domain.RoleFunction, Name: "tell_datetime", Content: `"12:00:00 PM"`,
		},
	})

	require.NoError(t, f.ctrl.Send(context.Background(), "What time is it?"))

	sess := f.sessions.Selected()
	require.Len(t, sess.Messages, 4)
	assert.Equal(t, domain.RoleUser, sess.Messages[0].Raw.Role)

	call := sess.Messages[1]
	assert.Equal(t, domain.RoleAssistant, call.Raw.Role)
	require.NotNil(t, call.Raw.FunctionCall)
	assert.Contains(t, call.DisplayText, "tell_datetime")
	assert.False(t, call.Hidden)

	result := sess.Messages[2]
	assert.Equal(t, domain.RoleFunction, result.Raw.Role)
	assert.True(t, result.Hidden)
	assert.Contains(t, result.DisplayText, "Function returned")

	assert.Equal(t, "It is noon in UTC.", sess.Messages[3].Raw.Content)
	assert.Equal(t,
		[]EventType{EventSending, EventFunctionCall, EventFunctionResult, EventDone},
		f.notifier.types())
}

func TestSendFunctionLoopDepthCap(t *testing.T) {
	f := newFixture(t, Config{MaxFunctionDepth: 3})
	f.transport.queueFunctionCall("echo", `{}`)
	// every exchange answers with another function call
	for i := 0; i < 3; i++ {
		f.transport.queueExchange(FunctionExchange{
			Result: Completion{Choices: []Choice{{Message: domain.Message{
				Role:         domain.RoleAssistant,
				FunctionCall: &domain.FunctionCall{Name: "echo", Arguments: `{}`},
			}}}},
			FunctionMessage: domain.Message{
				Role: domain.RoleFunction, Name: "echo", Content: `"{}"`,
			},
		})
	}

	err := f.ctrl.Send(context.Background(), "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth")

	assert.Equal(t, EventError, f.notifier.last().Type)
	assert.Equal(t, StateIdle, f.ctrl.State(f.sessions.SelectedID()))
}

func TestResendAfterProviderError(t *testing.T) {
	f := newFixture(t, Config{})
	f.transport.chatErr = &llm.ProviderError{Provider: "openai", Message: "rate limited", Code: 429}

	err := f.ctrl.Send(context.Background(), "hello")
	require.Error(t, err)

	// user turn intact, toast carries the provider text
	sess := f.sessions.Selected()
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, domain.RoleUser, sess.Messages[0].Raw.Role)
	assert.Equal(t, "Error: rate limited", f.notifier.last().Text)

	f.transport.chatErr = nil
	f.transport.queueReply("hi there")
	require.NoError(t, f.ctrl.Resend(context.Background()))

	sess = f.sessions.Selected()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "hi there", sess.Messages[1].Raw.Content)
}

func TestResendTrimsTrailingTurns(t *testing.T) {
	f := newFixture(t, Config{})
	sid := f.sessions.SelectedID()
	require.NoError(t, f.sessions.Append(sid, domain.Display(domain.Message{Role: domain.RoleUser, Content: "question"})))
	require.NoError(t, f.sessions.Append(sid, domain.Display(domain.Message{Role: domain.RoleAssistant, Content: "bad answer"})))

	f.transport.queueReply("better answer")
	require.NoError(t, f.ctrl.Resend(context.Background()))

	sess := f.sessions.Selected()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "question", sess.Messages[0].Raw.Content)
	assert.Equal(t, "better answer", sess.Messages[1].Raw.Content)
}

func TestResendWithoutUserTurn(t *testing.T) {
	f := newFixture(t, Config{})
	assert.ErrorIs(t, f.ctrl.Resend(context.Background()), ErrNothingToResend)
}

func TestSendRejectsWhileBusy(t *testing.T) {
	f := newFixture(t, Config{})
	f.transport.block = make(chan struct{})
	f.transport.queueReply("slow answer")

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- f.ctrl.Send(context.Background(), "first")
	}()
	<-started

	// wait for the turn to register
	require.Eventually(t, func() bool {
		return f.ctrl.State(f.sessions.SelectedID()) != StateIdle
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, f.ctrl.Send(context.Background(), "second"), ErrBusy)

	close(f.transport.block)
	require.NoError(t, <-done)
}

func TestAbandonDiscardsLateReply(t *testing.T) {
	f := newFixture(t, Config{})
	f.transport.block = make(chan struct{})
	f.transport.queueReply("stale answer")

	done := make(chan error, 1)
	go func() {
		done <- f.ctrl.Send(context.Background(), "hello")
	}()
	sid := f.sessions.SelectedID()
	require.Eventually(t, func() bool {
		return f.ctrl.State(sid) != StateIdle
	}, time.Second, time.Millisecond)

	f.ctrl.Abandon(sid)
	close(f.transport.block)
	err := <-done
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	// the user turn stays, the stale reply does not land
	sess, getErr := f.sessions.Get(sid)
	require.NoError(t, getErr)
	for _, m := range sess.Messages {
		assert.NotEqual(t, "stale answer", m.Raw.Content)
	}
	assert.Equal(t, StateIdle, f.ctrl.State(sid))
}

func TestSendTrimsIncompleteRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	sid := f.sessions.SelectedID()
	require.NoError(t, f.sessions.Append(sid, domain.Display(domain.Message{Role: domain.RoleUser, Content: "question"})))
	require.NoError(t, f.sessions.Append(sid, domain.Display(domain.Message{
		Role:         domain.RoleAssistant,
		FunctionCall: &domain.FunctionCall{Name: "echo", Arguments: `{}`},
	})))

	f.transport.queueReply("fresh answer")
	require.NoError(t, f.ctrl.Send(context.Background(), "new question"))

	sess := f.sessions.Selected()
	require.Len(t, sess.Messages, 3)
	assert.Equal(t, "question", sess.Messages[0].Raw.Content)
	assert.Equal(t, "new question", sess.Messages[1].Raw.Content)
	assert.Equal(t, "fresh answer", sess.Messages[2].Raw.Content)
}

func TestToastTextUnknownError(t *testing.T) {
	assert.Equal(t, "Error: Unknown error", toastText(errors.New("internal detail")))
	assert.Equal(t, "Error: boom",
		toastText(&llm.ProviderError{Provider: "openai", Message: "boom"}))
}
