// Package registry memoizes compiled paths and stores named specs.
//
// Cache is the only shared mutable state in the compiler: it is keyed by the
// structural identity of a path expression so that expressions which differ
// only in parameter names compile once. Registry holds named Specs built with
// a Builder.
package registry

import (
	"fmt"
	"slices"
	"sync"
)

// Registry is a named spec store. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds s. A second spec with the same name is rejected.
func (r *Registry) Register(s *Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[s.name]; ok {
		return fmt.Errorf("spec %q already registered", s.name)
	}
	r.specs[s.name] = s
	return nil
}

// Lookup returns the spec named name.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Specs returns the registered specs in name order.
func (r *Registry) Specs() []*Spec {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Spec, 0, len(names))
	for _, name := range names {
		if s, ok := r.specs[name]; ok {
			out = append(out, s)
		}
	}
	return out
}
