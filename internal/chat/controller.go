// Package chat implements the conversation controller: the turn state
// machine driving a session through provider calls and function round-trips.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oshaberi-app/oshaberi/internal/domain"
	"github.com/oshaberi-app/oshaberi/internal/llm"
	"github.com/oshaberi-app/oshaberi/internal/logging"
	"github.com/oshaberi-app/oshaberi/internal/session"
	"github.com/oshaberi-app/oshaberi/internal/settings"
	"github.com/oshaberi-app/oshaberi/internal/token"
)

// DefaultMaxFunctionDepth caps function round-trips within one turn.
const DefaultMaxFunctionDepth = 5

var (
	// ErrBusy is returned when a turn is already in flight for the session.
	ErrBusy = errors.New("a turn is already in flight for this session")

	// ErrEmptyMessage is returned when Send is given blank text.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrNothingToResend is returned by Resend on a session with no user turn.
	ErrNothingToResend = errors.New("no user message to resend")
)

// State is the turn state of one session.
type State string

const (
	StateIdle                   State = "idle"
	StateSending                State = "sending"
	StateAwaitingFunctionResult State = "awaiting_function_result"
)

// Config tunes the controller.
type Config struct {
	// MaxFunctionDepth caps chained function calls per turn; 0 means default.
	MaxFunctionDepth int
}

// turn tracks one in-flight exchange for a session.
type turn struct {
	id     string
	state  State
	cancel context.CancelFunc
}

// Controller orchestrates conversation turns for the selected session:
// appending the user message, calling the transport, rendering function
// round-trips, and reporting lifecycle events. One turn per session at a
// time; a superseded turn is cancelled and its late reply discarded.
type Controller struct {
	sessions  *session.Store
	settings  *settings.Settings
	transport Transport
	counter   *token.Counter
	notifier  Notifier
	log       *logging.Logger
	maxDepth  int

	mu    sync.Mutex
	turns map[string]*turn // session id → in-flight turn
}

// NewController wires the controller. notifier may be nil.
func NewController(
	sessions *session.Store,
	set *settings.Settings,
	transport Transport,
	counter *token.Counter,
	notifier Notifier,
	log *logging.Logger,
	cfg Config,
) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	maxDepth := cfg.MaxFunctionDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxFunctionDepth
	}
	return &Controller{
		sessions:  sessions,
		settings:  set,
		transport: transport,
		counter:   counter,
		notifier:  notifier,
		log:       log.Sub("chat.controller"),
		maxDepth:  maxDepth,
		turns:     make(map[string]*turn),
	}
}

// State returns the turn state of the given session.
func (c *Controller) State(sessionID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.turns[sessionID]; ok {
		return t.state
	}
	return StateIdle
}

// Abandon cancels the in-flight turn of a session, if any. A cancelled
// turn's reply is discarded instead of appended. Called on session switch.
func (c *Controller) Abandon(sessionID string) {
	c.mu.Lock()
	t, ok := c.turns[sessionID]
	if ok {
		delete(c.turns, sessionID)
	}
	c.mu.Unlock()
	if ok {
		t.cancel()
		c.log.Info().Str("session", sessionID).Str("turn", t.id).Msg("turn abandoned")
	}
}

// Send appends a user turn to the selected session and runs the exchange to
// completion, including any function round-trips. It returns ErrBusy while
// another turn is in flight for the session.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	sessionID := c.sessions.SelectedID()

	t, tctx, err := c.begin(ctx, sessionID)
	if err != nil {
		return err
	}
	defer c.finish(sessionID, t)

	if err := c.trimIncompleteRoundTrip(sessionID); err != nil {
		return err
	}
	userMsg := domain.Message{Role: domain.RoleUser, Content: text}
	if err := c.sessions.Append(sessionID, domain.Display(userMsg)); err != nil {
		return err
	}

	return c.run(tctx, sessionID, t)
}

// Resend drops everything after the latest user turn and re-runs the
// exchange. The user turn stays in place, so a failed send can be retried
// without retyping.
func (c *Controller) Resend(ctx context.Context) error {
	sessionID := c.sessions.SelectedID()

	t, tctx, err := c.begin(ctx, sessionID)
	if err != nil {
		return err
	}
	defer c.finish(sessionID, t)

	ok, err := c.sessions.TrimToLastUser(sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNothingToResend
	}

	return c.run(tctx, sessionID, t)
}

// run drives one turn: chat call, then function round-trips until the model
// answers in plain text or the depth cap is hit.
func (c *Controller) run(ctx context.Context, sessionID string, t *turn) error {
	c.setState(sessionID, t, StateSending)
	c.notifier.Notify(Event{Type: EventSending, SessionID: sessionID, TurnID: t.id})

	completion, err := c.transport.Chat(ctx, c.buildRequest(sessionID))
	if err != nil {
		return c.fail(sessionID, t, err)
	}
	reply, err := firstChoice(completion)
	if err != nil {
		return c.fail(sessionID, t, err)
	}

	for depth := 0; ; depth++ {
		if !c.isCurrent(sessionID, t) {
			return nil
		}

		if reply.FunctionCall == nil {
			if err := c.sessions.Append(sessionID, domain.Display(reply)); err != nil {
				return err
			}
			c.notifier.Notify(Event{Type: EventDone, SessionID: sessionID, TurnID: t.id})
			c.log.Info().Str("session", sessionID).Str("turn", t.id).Int("depth", depth).
				Msg("turn complete")
			return nil
		}

		if depth >= c.maxDepth {
			return c.fail(sessionID, t,
				fmt.Errorf("function call depth %d exceeded", c.maxDepth))
		}

		call := domain.Display(reply)
		call.DisplayText = functionCallText(reply)
		if err := c.sessions.Append(sessionID, call); err != nil {
			return err
		}
		c.setState(sessionID, t, StateAwaitingFunctionResult)
		c.notifier.Notify(Event{
			Type: EventFunctionCall, SessionID: sessionID, TurnID: t.id,
			Text: reply.FunctionCall.Name,
		})

		exchange, err := c.transport.ChatFunction(ctx, c.buildRequest(sessionID))
		if err != nil {
			return c.fail(sessionID, t, err)
		}
		if !c.isCurrent(sessionID, t) {
			return nil
		}

		fnMsg := domain.Display(exchange.FunctionMessage)
		fnMsg.DisplayText = functionResultText(exchange.FunctionMessage)
		fnMsg.Hidden = true
		if err := c.sessions.Append(sessionID, fnMsg); err != nil {
			return err
		}
		c.notifier.Notify(Event{
			Type: EventFunctionResult, SessionID: sessionID, TurnID: t.id,
			Text: exchange.FunctionMessage.Name,
		})
		c.setState(sessionID, t, StateSending)

		reply, err = firstChoice(exchange.Result)
		if err != nil {
			return c.fail(sessionID, t, err)
		}
	}
}

// buildRequest assembles the wire request from the session transcript and
// the current settings. The token budget is what remains of the configured
// cap after the outgoing messages; zero means no cap.
func (c *Controller) buildRequest(sessionID string) Request {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		sess = domain.Session{ID: sessionID}
	}
	msgs := sess.Outbound()
	vals := c.settings.Snapshot()

	budget := c.counter.Budget(vals.MaxTokens, msgs)
	if budget < 0 {
		budget = 0
	}

	useFn := vals.UseFunctionCalling
	return Request{
		Model:            vals.Model,
		Messages:         msgs,
		Temperature:      vals.Temperature,
		MaxTokens:        budget,
		PresencePenalty:  vals.PresencePenalty,
		FrequencyPenalty: vals.FrequencyPenalty,
		UseFunction:      &useFn,
	}
}

func (c *Controller) begin(ctx context.Context, sessionID string) (*turn, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.turns[sessionID]; ok {
		return nil, nil, ErrBusy
	}
	tctx, cancel := context.WithCancel(ctx)
	t := &turn{id: uuid.NewString(), state: StateSending, cancel: cancel}
	c.turns[sessionID] = t
	return t, tctx, nil
}

func (c *Controller) finish(sessionID string, t *turn) {
	c.mu.Lock()
	if c.turns[sessionID] == t {
		delete(c.turns, sessionID)
	}
	c.mu.Unlock()
	t.cancel()
}

func (c *Controller) isCurrent(sessionID string, t *turn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns[sessionID] == t
}

func (c *Controller) setState(sessionID string, t *turn, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turns[sessionID] == t {
		t.state = s
	}
}

// fail reports a failed turn. The transcript keeps the user turn so Resend
// can retry it. Abandoned turns fail silently.
func (c *Controller) fail(sessionID string, t *turn, err error) error {
	if errors.Is(err, context.Canceled) || !c.isCurrent(sessionID, t) {
		return err
	}
	c.log.Error().Err(err).Str("session", sessionID).Str("turn", t.id).Msg("turn failed")
	c.notifier.Notify(Event{
		Type: EventError, SessionID: sessionID, TurnID: t.id, Text: toastText(err),
	})
	return err
}

// trimIncompleteRoundTrip drops trailing function machinery left behind by
// an abandoned turn: function-role results with no follow-up answer and
// assistant messages still carrying an unexecuted function call.
func (c *Controller) trimIncompleteRoundTrip(sessionID string) error {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	msgs := sess.Messages
	end := len(msgs)
	for end > 0 {
		raw := msgs[end-1].Raw
		if raw.Role == domain.RoleFunction || raw.FunctionCall != nil {
			end--
			continue
		}
		break
	}
	if end == len(msgs) {
		return nil
	}
	return c.sessions.SetMessages(sessionID, msgs[:end])
}

func firstChoice(completion Completion) (domain.Message, error) {
	if len(completion.Choices) == 0 {
		return domain.Message{}, fmt.Errorf("completion contained no choices")
	}
	return completion.Choices[0].Message, nil
}

// toastText renders the user-visible error line. Provider and validation
// failures carry their own text; anything else is opaque to the user.
func toastText(err error) string {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		return "Error: " + perr.Message
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "Error: " + verr.Message
	}
	return "Error: Unknown error"
}

func functionCallText(m domain.Message) string {
	return strings.TrimSpace(fmt.Sprintf(
		"%s\n\n**Calling `%s` with arguments:**\n\n```json\n%s\n```",
		m.Content, m.FunctionCall.Name, m.FunctionCall.Arguments))
}

func functionResultText(m domain.Message) string {
	return fmt.Sprintf("Function returned:\n\n```\n%s\n```", m.Content)
}
