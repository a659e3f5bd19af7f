package source

import (
	"context"
	"fmt"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
)

// Adapter captures a single exchange integration (NSE, BSE, etc.). Each
// adapter normalizes its endpoint's response shape into domain.Filing
// records, newest first.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, symbol string) ([]domain.Filing, error)
}

// Registry keeps a mapping from adapter names to their implementations.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	r.adapters[a.Name()] = a
}

// Resolve returns an adapter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("source adapter %s is not registered", name)
}
