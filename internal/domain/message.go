// Package domain holds the conversation data model shared by the session
// store, the conversation controller, and the gateway wire types.
package domain

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction:
		return true
	}
	return false
}

// FunctionCall is a structured request from the model to execute a named
// function. Arguments is the raw JSON text the model produced; it is not
// guaranteed to parse.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single conversation turn in provider wire format.
//
// A function-role message must carry Name (the function that produced it).
// A message whose FunctionCall is set has empty or advisory Content.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Name         string        `json:"name,omitempty"`
}

// Validate checks the message invariants.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	if m.Role == RoleFunction && m.Name == "" {
		return fmt.Errorf("function message missing function name")
	}
	return nil
}

// NewFunctionResult builds a function-role message holding the
// JSON-serialized result of executing the named function.
func NewFunctionResult(name, result string) Message {
	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(`""`)
	}
	return Message{
		Role:    RoleFunction,
		Name:    name,
		Content: string(content),
	}
}
