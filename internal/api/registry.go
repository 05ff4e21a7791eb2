// Package api serves system snapshots over HTTP.
package api

import (
	"sort"
	"sync"

	"github.com/sells-group/gbfs-cli/internal/gbfs"
)

// Registry holds the systems the API serves, keyed by tag.
type Registry struct {
	mu      sync.RWMutex
	systems map[string]*gbfs.System
}

// NewRegistry creates a registry holding systems.
func NewRegistry(systems ...*gbfs.System) *Registry {
	r := &Registry{systems: make(map[string]*gbfs.System, len(systems))}
	for _, s := range systems {
		r.Add(s)
	}
	return r
}

// Add registers s, replacing any system with the same tag.
func (r *Registry) Add(s *gbfs.System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systems[s.Tag()] = s
}

// Get returns the system for tag.
func (r *Registry) Get(tag string) (*gbfs.System, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.systems[tag]
	return s, ok
}

// All returns the systems sorted by tag.
func (r *Registry) All() []*gbfs.System {
	r.mu.RLock()
	out := make([]*gbfs.System, 0, len(r.systems))
	for _, s := range r.systems {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Tag() < out[j].Tag() })
	return out
}

// Len returns the number of systems.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.systems)
}
