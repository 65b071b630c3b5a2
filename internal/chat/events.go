package chat

// EventType names a turn lifecycle event.
type EventType string

const (
	EventSending        EventType = "sending"
	EventFunctionCall   EventType = "function_call"
	EventFunctionResult EventType = "function_result"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is one turn lifecycle notification. Error events carry the toast
// text in Text; function events carry the function name.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	TurnID    string    `json:"turnId"`
	Text      string    `json:"text,omitempty"`
}

// Notifier receives turn lifecycle events. The gateway's WebSocket hub
// implements it; tests use a recording stub.
type Notifier interface {
	Notify(Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
