package token

import "github.com/oshaberi-app/oshaberi/internal/domain"

// Per-message overhead and list terminator, matching the provider's chat
// accounting convention.
const (
	tokensPerMessage = 4
	tokensPerRequest = 3
)

// Counter computes token costs for text and message lists. It is stateless
// apart from the injected tokenizer and safe for concurrent use.
type Counter struct {
	tok Tokenizer
}

// NewCounter creates a counter over the given tokenizer.
func NewCounter(tok Tokenizer) *Counter {
	return &Counter{tok: tok}
}

// Text returns the token count of raw text.
func (c *Counter) Text(s string) int {
	return c.tok.Count(s)
}

// Messages returns the cost of a full message list:
// sum(4 + tokens(content)) plus the 3-token list terminator.
func (c *Counter) Messages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += tokensPerMessage
		total += c.tok.Count(m.Content)
	}
	return total + tokensPerRequest
}

// Pending returns the cost of a single not-yet-appended message: the
// per-message overhead without the list terminator. Used for the live
// "tokens so far" count while the user types.
func (c *Counter) Pending(m domain.Message) int {
	return tokensPerMessage + c.tok.Count(m.Content)
}

// Budget returns the max_tokens value for a response given the configured
// cap and the cost of the outgoing messages. A zero cap means unlimited,
// reported as 0.
func (c *Counter) Budget(configuredMax int, msgs []domain.Message) int {
	if configuredMax == 0 {
		return 0
	}
	return configuredMax - c.Messages(msgs)
}
