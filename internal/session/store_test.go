package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

func userTurn(text string) domain.DisplayMessage {
	return domain.Display(domain.Message{Role: domain.RoleUser, Content: text})
}

func assistantTurn(text string) domain.DisplayMessage {
	return domain.Display(domain.Message{Role: domain.RoleAssistant, Content: text})
}

func TestNewStoreSeedsDefault(t *testing.T) {
	s := NewStore()
	assert.Equal(t, DefaultID, s.SelectedID())
	assert.Equal(t, []string{DefaultID}, s.List())
	assert.Empty(t, s.Selected().Messages)
}

func TestAddSelectRemove(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Add("work"))
	assert.ErrorIs(t, s.Add("work"), ErrExists)
	assert.Error(t, s.Add(""))

	require.NoError(t, s.Select("work"))
	assert.Equal(t, "work", s.SelectedID())

	assert.ErrorIs(t, s.Select("nope"), ErrNotFound)
	assert.Equal(t, "work", s.SelectedID(), "failed select must not change selection")

	assert.ErrorIs(t, s.Remove("nope"), ErrNotFound)
}

func TestRemoveRepairsSelection(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("work"))
	require.NoError(t, s.Select("work"))

	// Removing the selected session reassigns selection to a survivor.
	require.NoError(t, s.Remove("work"))
	assert.Equal(t, DefaultID, s.SelectedID())

	// Removing the last session reseeds an empty default.
	require.NoError(t, s.Remove(DefaultID))
	assert.Equal(t, DefaultID, s.SelectedID())
	assert.Empty(t, s.Selected().Messages)
}

func TestSessionIsolation(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("b"))
	require.NoError(t, s.SetSystemMessage("b", "be brief"))

	require.NoError(t, s.Append(DefaultID, userTurn("only in default")))

	b, err := s.Get("b")
	require.NoError(t, err)
	assert.Empty(t, b.Messages, "append to one session must not leak into another")

	require.NoError(t, s.SetMessages(DefaultID, []domain.DisplayMessage{userTurn("replaced")}))
	b, err = s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "be brief", b.SystemMessage, "setMessages on A leaves B's system message alone")
}

func TestSelectedReturnsCopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(DefaultID, userTurn("hi")))

	sess := s.Selected()
	sess.Messages[0].DisplayText = "tampered"
	sess.Messages = append(sess.Messages, assistantTurn("injected"))

	again := s.Selected()
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "hi", again.Messages[0].DisplayText)
}

func TestTrimToLastUser(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(DefaultID, userTurn("q1")))
	require.NoError(t, s.Append(DefaultID, assistantTurn("a1")))
	require.NoError(t, s.Append(DefaultID, domain.DisplayMessage{
		Role:   domain.RoleFunction,
		Raw:    domain.Message{Role: domain.RoleFunction, Name: "f", Content: `"r"`},
		Hidden: true,
	}))

	found, err := s.TrimToLastUser(DefaultID)
	require.NoError(t, err)
	assert.True(t, found)

	sess := s.Selected()
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, domain.RoleUser, sess.Messages[0].Role)

	// Idempotent on a transcript already ending with a user turn.
	found, err = s.TrimToLastUser(DefaultID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, s.Selected().Messages, 1)
}

func TestTrimToLastUserNoUserTurn(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(DefaultID, assistantTurn("orphan")))

	found, err := s.TrimToLastUser(DefaultID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, s.Selected().Messages, 1, "no user turn anywhere: nothing is dropped")
}

func TestSnapshotRestore(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("work"))
	require.NoError(t, s.Select("work"))
	require.NoError(t, s.SetSystemMessage("work", "sys"))
	require.NoError(t, s.Append("work", userTurn("hello")))

	blob, err := s.Snapshot()
	require.NoError(t, err)

	restored := NewStore()
	require.NoError(t, restored.Restore(blob))
	assert.Equal(t, "work", restored.SelectedID())
	sess := restored.Selected()
	assert.Equal(t, "sys", sess.SystemMessage)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "hello", sess.Messages[0].Raw.Content)
}

func TestRestoreRepairsInvariants(t *testing.T) {
	s := NewStore()

	require.NoError(t, s.Restore([]byte(`{"sessions":{"a":{"id":"a"}},"selected":"gone"}`)))
	assert.Equal(t, "a", s.SelectedID(), "dangling selection falls back to an existing session")

	require.NoError(t, s.Restore([]byte(`{"sessions":{},"selected":""}`)))
	assert.Equal(t, DefaultID, s.SelectedID(), "empty blob reseeds the default session")

	assert.Error(t, s.Restore([]byte(`{not json`)))
}

func TestClear(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetSystemMessage(DefaultID, "sys"))
	require.NoError(t, s.Append(DefaultID, userTurn("hi")))

	require.NoError(t, s.Clear(DefaultID))
	sess := s.Selected()
	assert.Empty(t, sess.Messages)
	assert.Equal(t, "sys", sess.SystemMessage)
}
