package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

// wordTokenizer counts whitespace-separated words, giving deterministic
// counts without BPE data.
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func TestText(t *testing.T) {
	c := NewCounter(wordTokenizer{})
	assert.Equal(t, 0, c.Text(""))
	assert.Equal(t, 2, c.Text("hi there"))
}

func TestMessagesAdditivity(t *testing.T) {
	c := NewCounter(wordTokenizer{})

	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "there"},
	}

	// (4+1) + (4+1) + 3
	assert.Equal(t, 13, c.Messages(msgs))

	// The list total must equal the sum of per-message costs plus the
	// terminator, for any list.
	sum := 0
	for _, m := range msgs {
		sum += c.Pending(m)
	}
	assert.Equal(t, sum+3, c.Messages(msgs))
}

func TestMessagesEmptyList(t *testing.T) {
	c := NewCounter(wordTokenizer{})
	assert.Equal(t, 3, c.Messages(nil), "empty list still costs the terminator")
}

func TestPendingOmitsTerminator(t *testing.T) {
	c := NewCounter(wordTokenizer{})
	m := domain.Message{Role: domain.RoleUser, Content: "one two three"}
	assert.Equal(t, 4+3, c.Pending(m))
}

func TestBudget(t *testing.T) {
	c := NewCounter(wordTokenizer{})
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "hi"}}

	assert.Equal(t, 0, c.Budget(0, msgs), "zero cap means unlimited")
	assert.Equal(t, 1024-8, c.Budget(1024, msgs))
}

func TestEstimateTokenizer(t *testing.T) {
	var e EstimateTokenizer
	assert.Equal(t, 0, e.Count(""))
	assert.Greater(t, e.Count("a reasonably long sentence with several words"), 5)
}
