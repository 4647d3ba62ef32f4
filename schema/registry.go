package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("schema: resource type already registered")
	ErrNotRegistered     = errors.New("schema: resource type not registered")
)

// Option overrides a default derived from struct tags during Reflect.
type Option func(*Schema)

// WithTable sets the database table backing the resource.
func WithTable(table string) Option {
	return func(s *Schema) {
		if table != "" {
			s.Table = table
		}
	}
}

// WithIDColumn sets the primary-key column backing the resource id.
func WithIDColumn(column string) Option {
	return func(s *Schema) {
		if column != "" {
			s.IDColumn = column
		}
	}
}

// Registry holds the schemas of every registered resource type. It is safe
// for concurrent use; registration normally happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	byType   map[string]*Schema
	byGoType map[reflect.Type]*Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byType:   make(map[string]*Schema),
		byGoType: make(map[reflect.Type]*Schema),
	}
}

// Register reflects the resource struct and stores its schema. Registering
// the same resource type twice is an error.
func (r *Registry) Register(resource any, opts ...Option) (*Schema, error) {
	s, err := Reflect(resource, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[s.ResourceType]; exists {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRegistered, s.ResourceType)
	}
	r.byType[s.ResourceType] = s
	r.byGoType[s.GoType] = s
	return s, nil
}

// MustRegister is Register panicking on error, for startup wiring.
func (r *Registry) MustRegister(resource any, opts ...Option) *Schema {
	s, err := r.Register(resource, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the schema registered for the JSON:API resource type.
func (r *Registry) Lookup(resourceType string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byType[resourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, resourceType)
	}
	return s, nil
}

// LookupGoType returns the schema registered for the Go struct type of the
// provided value.
func (r *Registry) LookupGoType(resource any) (*Schema, error) {
	t := reflect.TypeOf(resource)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byGoType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotRegistered, t)
	}
	return s, nil
}

// Types returns the registered resource types sorted alphabetically.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for resourceType := range r.byType {
		types = append(types, resourceType)
	}
	sort.Strings(types)
	return types
}

// Related resolves the schema on the other end of a relationship. It
// requires the target type to be registered by the time requests are
// served, which allows mutually-referencing schemas to register in any
// order.
func (r *Registry) Related(rel Relationship) (*Schema, error) {
	return r.Lookup(rel.RelatedType)
}
