package bundler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edgeops/opsctl/pkg/collector"
	"github.com/edgeops/opsctl/pkg/opsservice"
)

// Registry maps every ops service to its collector with thread-safe operations.
// Auto and single-service runs resolve collectors from the same registry.
type Registry struct {
	collectors map[opsservice.Type]collector.Collector

	mu sync.RWMutex
}

// NewRegistry creates a collector for every catalog service using factory.
func NewRegistry(cat *opsservice.Catalog, factory collector.Factory) *Registry {
	r := &Registry{
		collectors: make(map[opsservice.Type]collector.Collector, len(cat.Services)),
	}
	for _, svc := range cat.Services {
		r.collectors[svc.Name] = factory.CreateCollector(svc)
	}
	return r
}

// Register sets the collector for t, replacing any existing one.
func (r *Registry) Register(t opsservice.Type, c collector.Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[t] = c
}

// Get retrieves the collector for t.
func (r *Registry) Get(t opsservice.Type) (collector.Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[t]
	return c, ok
}

// List returns every registered service, sorted.
func (r *Registry) List() []opsservice.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]opsservice.Type, 0, len(r.collectors))
	for k := range r.collectors {
		types = append(types, k)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Unregister removes the collector for t.
func (r *Registry) Unregister(t opsservice.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collectors[t]; !ok {
		return fmt.Errorf("collector for %s not registered", t)
	}
	delete(r.collectors, t)
	return nil
}

// Count returns the number of registered collectors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collectors)
}

// IsEmpty returns true if no collectors are registered.
func (r *Registry) IsEmpty() bool {
	return r.Count() == 0
}
