package domain

import "fmt"

// ValidationError reports a rejected input value. The gateway renders these
// as HTTP 400 with the message in the errors array.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
