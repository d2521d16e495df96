package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ProviderFactory builds a provider bound to a concrete model name. An
// empty model means the provider's configured default.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry routes provider lookups by backend name ("openrouter",
// "ollama"). Names are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ai: unknown provider %q", name)
	}
	return f(ctx, model)
}
