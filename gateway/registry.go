package gateway

import (
	"fmt"
	"sync"
)

// Registry manages all payment gateway adapter factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds an adapter factory to the registry
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds a new adapter instance for the named gateway
func (r *Registry) Create(name string, deps Deps) (PaymentGateway, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: '%s' is not registered", ErrInvalidGateway, name)
	}

	return factory(deps), nil
}

// Gateways returns a list of all registered gateway identifiers
func (r *Registry) Gateways() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	return names
}

// DefaultRegistry is the global default adapter registry
var DefaultRegistry = NewRegistry()

// Register registers an adapter factory with the default registry
func Register(name string, factory Factory) {
	DefaultRegistry.Register(name, factory)
}
