package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleFunction} {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, Role("tool").Valid())
	assert.False(t, Role("").Valid())
}

func TestMessageValidate(t *testing.T) {
	ok := Message{Role: RoleUser, Content: "hi"}
	assert.NoError(t, ok.Validate())

	fn := Message{Role: RoleFunction, Content: `"result"`}
	assert.Error(t, fn.Validate(), "function message without a name must fail")

	fn.Name = "tell_datetime"
	assert.NoError(t, fn.Validate())

	assert.Error(t, Message{Role: "bogus"}.Validate())
}

func TestMessageWireFormat(t *testing.T) {
	m := Message{
		Role:    RoleAssistant,
		Content: "",
		FunctionCall: &FunctionCall{
			Name:      "get_location_by_ip_address",
			Arguments: `{"ipAddress":"1.2.3.4"}`,
		},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"function_call"`)
	assert.NotContains(t, string(data), `"name":""`, "empty name must be omitted")

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.FunctionCall)
	assert.Equal(t, "get_location_by_ip_address", back.FunctionCall.Name)
}

func TestNewFunctionResult(t *testing.T) {
	m := NewFunctionResult("tell_datetime", `"8/28/2026, 10:00:00 AM"`)
	assert.Equal(t, RoleFunction, m.Role)
	assert.Equal(t, "tell_datetime", m.Name)

	// The result is JSON-serialized once more, mirroring how the raw
	// function output is stored verbatim in the transcript.
	var s string
	require.NoError(t, json.Unmarshal([]byte(m.Content), &s))
	assert.Equal(t, `"8/28/2026, 10:00:00 AM"`, s)
}

func TestSessionOutbound(t *testing.T) {
	s := &Session{
		ID:            "default",
		SystemMessage: "You are terse.",
		Messages: []DisplayMessage{
			Display(Message{Role: RoleUser, Content: "hello"}),
			{Role: RoleFunction, Raw: Message{Role: RoleFunction, Name: "x", Content: `"1"`}, Hidden: true},
		},
	}

	out := s.Outbound()
	require.Len(t, out, 3)
	assert.Equal(t, RoleSystem, out[0].Role)
	assert.Equal(t, "You are terse.", out[0].Content)
	assert.Equal(t, RoleUser, out[1].Role)
	assert.Equal(t, RoleFunction, out[2].Role, "hidden turns still go upstream")

	s.SystemMessage = ""
	assert.Len(t, s.Outbound(), 2, "empty system message is not sent")
}

func TestSessionLastMessage(t *testing.T) {
	s := &Session{ID: "default"}
	_, ok := s.LastMessage()
	assert.False(t, ok)

	s.Messages = append(s.Messages, Display(Message{Role: RoleUser, Content: "hi"}))
	last, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, RoleUser, last.Role)
}
