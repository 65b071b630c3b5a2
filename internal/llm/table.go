package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oshaberi-app/oshaberi/internal/logging"
)

// Table maps model names to providers. It is populated once at startup;
// resolution order is provider name, then model route, then fallback.
type Table struct {
	mu        sync.RWMutex
	providers map[string]Provider
	routes    map[string]string // model name → provider name
	fallback  string
	log       *logging.Logger
}

// NewTable creates an empty provider table.
func NewTable(log *logging.Logger) *Table {
	return &Table{
		providers: make(map[string]Provider),
		routes:    make(map[string]string),
		log:       log.Sub("llm.table"),
	}
}

// Register adds a provider under its name.
func (t *Table) Register(p Provider) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.providers[p.Name()] = p
	t.log.Info().Str("provider", p.Name()).Msg("registered LLM provider")
}

// Route maps a model name to a provider name.
func (t *Table) Route(model, provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[model] = provider
}

// SetFallback names the provider used when no route matches.
func (t *Table) SetFallback(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback = provider
}

// Provider returns the provider registered under name.
func (t *Table) Provider(name string) (Provider, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.providers[name]
	if !ok {
		return nil, fmt.Errorf("no LLM provider named %q", name)
	}
	return p, nil
}

// Resolve returns the provider serving the given model reference.
func (t *Table) Resolve(model string) (Provider, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, ok := t.providers[model]; ok {
		return p, nil
	}
	if name, ok := t.routes[model]; ok {
		if p, ok := t.providers[name]; ok {
			return p, nil
		}
	}
	if t.fallback != "" {
		if p, ok := t.providers[t.fallback]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// List returns all registered provider names, sorted.
func (t *Table) List() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.providers))
	for n := range t.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
