package platform

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Options carries the per-platform configuration an adapter factory needs.
type Options struct {
	Name              string
	Resume            string
	Message           string
	Areas             []int
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// Factory builds an adapter from its options.
type Factory func(opts Options) (Adapter, error)

// Registry maps adapter kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("platform %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build creates an adapter of the given kind.
func (r *Registry) Build(kind string, opts Options) (Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown platform %q (known: %v)", kind, r.Kinds())
	}
	return f(opts)
}

// Kinds lists registered kinds in order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
