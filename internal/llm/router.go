package llm

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// Router is the registry of chat providers. Conversations always go to the
// default one; the others are listed for operators.
type Router struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
}

// NewRouter creates a router whose Default resolves to defaultProvider
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider adds p, replacing any provider with the same name
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	r.providers[p.Name()] = p
	r.mu.Unlock()
}

// names returns registered names in stable order. Caller holds mu.
func (r *Router) names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// ListProviders returns the names of providers that have credentials
func (r *Router) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ready []string
	for _, name := range r.names() {
		if r.providers[name].IsConfigured() {
			ready = append(ready, name)
		}
	}
	return ready
}

// GetProvider looks a provider up by name; "" means the default
func (r *Router) GetProvider(name string) (Provider, error) {
	if name == "" {
		name = r.defaultProvider
	}

	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	case !p.IsConfigured():
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return p, nil
}

// Default returns the provider every conversation is sent to
func (r *Router) Default() (Provider, error) {
	return r.GetProvider("")
}

// DefaultProvider returns the default provider name
func (r *Router) DefaultProvider() string {
	return r.defaultProvider
}

// ProviderInfo describes a registered provider for /llm-providers
type ProviderInfo struct {
	Name         string   `json:"name"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
	Default      bool     `json:"default"`
	Configured   bool     `json:"configured"`
}

// GetProvidersInfo describes every registered provider, sorted by name
func (r *Router) GetProvidersInfo() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, name := range r.names() {
		p := r.providers[name]
		infos = append(infos, ProviderInfo{
			Name:         name,
			DefaultModel: p.DefaultModel(),
			Models:       p.AvailableModels(),
			Default:      name == r.defaultProvider,
			Configured:   p.IsConfigured(),
		})
	}
	return infos
}
