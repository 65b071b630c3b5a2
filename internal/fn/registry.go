// Package fn implements the callable-function table exposed to the model:
// JSON-schema descriptions for the outbound request, plus execution of the
// function the model asked for.
package fn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound means the requested function is not registered.
var ErrNotFound = errors.New("function not found")

// DefaultTimeout bounds a single function invocation.
const DefaultTimeout = 15 * time.Second

// Definition describes a function to the model: name, description, and a
// JSON-schema parameter object.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Callback executes a function. args is the parsed argument object
// (map[string]any) when the model produced valid JSON, or the raw argument
// string when it did not; implementations must tolerate both.
type Callback func(ctx context.Context, args any) (string, error)

// Function pairs a definition with its callback.
type Function struct {
	Definition
	Callback Callback
}

// Registry is the immutable function table, built once at startup and safe
// for concurrent invocation.
type Registry struct {
	fns     map[string]Function
	order   []string
	timeout time.Duration
}

// NewRegistry builds a registry over the given functions. A non-positive
// timeout falls back to DefaultTimeout.
func NewRegistry(timeout time.Duration, fns ...Function) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Registry{fns: make(map[string]Function, len(fns)), timeout: timeout}
	for _, f := range fns {
		if _, dup := r.fns[f.Name]; dup {
			continue
		}
		r.fns[f.Name] = f
		r.order = append(r.order, f.Name)
	}
	return r
}

// Definitions returns the schema descriptions for every registered
// function, in registration order, ready for an outbound request.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.fns[name].Definition)
	}
	return defs
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.fns[name]
	return ok
}

// Invoke runs the named function with the model-produced raw JSON
// arguments. Unparseable arguments degrade to passing the raw string
// through. Execution is bounded by the registry timeout so one slow
// callback cannot stall the conversation.
func (r *Registry) Invoke(ctx context.Context, name, rawArgs string) (string, error) {
	f, ok := r.fns[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	var args any
	parsed := map[string]any{}
	if err := json.Unmarshal([]byte(rawArgs), &parsed); err == nil {
		args = parsed
	} else {
		args = rawArgs
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := f.Callback(ctx, args)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", fmt.Errorf("executing %s: %w", name, out.err)
		}
		return out.result, nil
	case <-ctx.Done():
		return "", fmt.Errorf("executing %s: %w", name, ctx.Err())
	}
}
