// Package schema holds the in-memory registry of object schemas.
package schema

import (
	"sort"
	"strings"
	"sync"

	"github.com/johnwards/notforce/internal/domain"
)

// Registry is a concurrency-safe map of object name to schema. Lookups are
// case-insensitive, matching how the platform resolves sObject names.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*domain.ObjectSchema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*domain.ObjectSchema)}
}

// Register adds or replaces a schema.
func (r *Registry) Register(s *domain.ObjectSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[strings.ToLower(s.Name)] = s
}

// Get looks up a schema by object name.
func (r *Registry) Get(name string) (*domain.ObjectSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[strings.ToLower(name)]
	return s, ok
}

// Names returns the registered object names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for _, s := range r.schemas {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered schema, sorted by name.
func (r *Registry) All() []*domain.ObjectSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.ObjectSchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
