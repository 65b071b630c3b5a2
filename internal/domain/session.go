package domain

// DisplayMessage wraps a Message for the transcript view. DisplayText is the
// rendered form shown to the user; Raw is what goes back upstream. Hidden
// turns (raw function results) stay out of the visible transcript but are
// kept for resend and history.
//
// DisplayMessages are created and owned by the session store. Readers hold
// them by value.
type DisplayMessage struct {
	DisplayText string  `json:"displayText"`
	Role        Role    `json:"role"`
	Raw         Message `json:"raw"`
	Hidden      bool    `json:"hidden,omitempty"`
}

// Display builds a DisplayMessage whose visible text equals the raw content.
func Display(m Message) DisplayMessage {
	return DisplayMessage{DisplayText: m.Content, Role: m.Role, Raw: m}
}

// Session is one named conversation thread: a system message plus an ordered
// transcript. Messages preserve strict append order; nothing reorders them.
type Session struct {
	ID            string           `json:"id"`
	SystemMessage string           `json:"systemMessage"`
	Messages      []DisplayMessage `json:"messages"`
}

// Outbound flattens the session into the message list sent upstream: the
// system message (when set) followed by every turn's raw value, hidden ones
// included.
func (s *Session) Outbound() []Message {
	msgs := make([]Message, 0, len(s.Messages)+1)
	if s.SystemMessage != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: s.SystemMessage})
	}
	for _, dm := range s.Messages {
		msgs = append(msgs, dm.Raw)
	}
	return msgs
}

// LastMessage returns the final turn, or false when the transcript is empty.
func (s *Session) LastMessage() (DisplayMessage, bool) {
	if len(s.Messages) == 0 {
		return DisplayMessage{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
