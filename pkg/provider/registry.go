package provider

import (
	"context"
	"fmt"
	"iter"
	"sync"
)

// Registry holds the configured providers keyed by source.
type Registry struct {
	mu        sync.RWMutex
	providers map[Source]Provider
	order     []Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Source]Provider)}
}

// Register adds a provider, replacing any previous one for the same source.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	source := p.Source()
	if _, exists := r.providers[source]; !exists {
		r.order = append(r.order, source)
	}
	r.providers[source] = p
}

// For returns the provider serving source.
func (r *Registry) For(source Source) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[source]
	if !ok {
		return nil, fmt.Errorf("%s: %w", source, ErrUnavailable)
	}
	return p, nil
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, len(r.order))
	copy(out, r.order)
	return out
}

// Available returns the registered sources whose backend tools are usable.
func (r *Registry) Available() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Source
	for _, source := range r.order {
		if r.providers[source].Available() == nil {
			out = append(out, source)
		}
	}
	return out
}

// Installed yields the installed packages of every available backend, in
// registration order. Backends whose tools are missing are skipped; query
// failures of a present backend are yielded as errors.
func (r *Registry) Installed(ctx context.Context) iter.Seq2[Ref, error] {
	return func(yield func(Ref, error) bool) {
		for _, source := range r.Sources() {
			p, err := r.For(source)
			if err != nil {
				continue
			}
			if p.Available() != nil {
				continue
			}
			for ref, err := range p.Installed(ctx) {
				if !yield(ref, err) {
					return
				}
			}
		}
	}
}
