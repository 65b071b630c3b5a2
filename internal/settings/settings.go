// Package settings holds the process-wide chat settings: sampling
// parameters, the selected model, and the function-calling switch.
package settings

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/oshaberi-app/oshaberi/internal/domain"
)

// ValidationError reports a rejected settings value.
type ValidationError = domain.ValidationError

// Values is an immutable snapshot of the settings, safe to carry through a
// request without observing later writes.
type Values struct {
	Model              string  `json:"model"`
	Temperature        float64 `json:"temperature"`
	MaxTokens          int     `json:"maxTokens"`
	PresencePenalty    float64 `json:"presencePenalty"`
	FrequencyPenalty   float64 `json:"frequencyPenalty"`
	UseFunctionCalling bool    `json:"useFunctionCalling"`
}

// Defaults mirrors the stock client configuration.
func Defaults() Values {
	return Values{
		Model:              "gpt-3.5-turbo",
		Temperature:        1,
		MaxTokens:          1024,
		UseFunctionCalling: true,
	}
}

// Settings is the mutable, validated settings holder. Writes are serialized;
// reads take a snapshot.
type Settings struct {
	mu        sync.RWMutex
	values    Values
	supported []string
}

// New creates settings with the given initial values and supported-model
// allow-list.
func New(initial Values, supportedModels []string) *Settings {
	return &Settings{
		values:    initial,
		supported: slices.Clone(supportedModels),
	}
}

// Snapshot returns the current values.
func (s *Settings) Snapshot() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// SupportedModels returns the allow-list.
func (s *Settings) SupportedModels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.supported)
}

// SetModel switches the model. Models outside the allow-list are rejected
// and the previous model stays configured.
func (s *Settings) SetModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.supported, model) {
		return &ValidationError{Field: "model", Message: fmt.Sprintf("model %q is not supported", model)}
	}
	s.values.Model = model
	return nil
}

// SetTemperature sets the sampling temperature.
func (s *Settings) SetTemperature(t float64) error {
	if t < 0 || t > 2 {
		return &ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Temperature = t
	return nil
}

// SetMaxTokens sets the token budget cap. Zero disables the cap.
func (s *Settings) SetMaxTokens(n int) error {
	if n < 0 {
		return &ValidationError{Field: "maxTokens", Message: "must not be negative"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.MaxTokens = n
	return nil
}

// SetPresencePenalty sets the presence penalty.
func (s *Settings) SetPresencePenalty(p float64) error {
	if p < -2 || p > 2 {
		return &ValidationError{Field: "presencePenalty", Message: "must be between -2 and 2"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.PresencePenalty = p
	return nil
}

// SetFrequencyPenalty sets the frequency penalty.
func (s *Settings) SetFrequencyPenalty(p float64) error {
	if p < -2 || p > 2 {
		return &ValidationError{Field: "frequencyPenalty", Message: "must be between -2 and 2"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.FrequencyPenalty = p
	return nil
}

// SetUseFunctionCalling toggles the function-calling switch.
func (s *Settings) SetUseFunctionCalling(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.UseFunctionCalling = on
}

// Apply validates and applies a full Values struct, field by field. The
// first rejected field aborts with no further fields applied.
func (s *Settings) Apply(v Values) error {
	if err := s.SetModel(v.Model); err != nil {
		return err
	}
	if err := s.SetTemperature(v.Temperature); err != nil {
		return err
	}
	if err := s.SetMaxTokens(v.MaxTokens); err != nil {
		return err
	}
	if err := s.SetPresencePenalty(v.PresencePenalty); err != nil {
		return err
	}
	if err := s.SetFrequencyPenalty(v.FrequencyPenalty); err != nil {
		return err
	}
	s.SetUseFunctionCalling(v.UseFunctionCalling)
	return nil
}

// Snapshot blob for the state store.

// MarshalState serializes the current values as an opaque JSON blob.
func (s *Settings) MarshalState() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// RestoreState replaces the values from a MarshalState blob. Unsupported
// persisted models fall back to the current model rather than failing the
// whole restore.
func (s *Settings) RestoreState(data []byte) error {
	var v Values
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decoding settings state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.supported, v.Model) {
		v.Model = s.values.Model
	}
	s.values = v
	return nil
}
