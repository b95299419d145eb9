package scanner

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages probes by name.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

// NewRegistry creates an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Probe)}
}

// Register adds a probe to the registry, replacing any probe with the same name.
func (r *Registry) Register(p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[p.Name()] = p
}

// Get retrieves a probe by name.
func (r *Registry) Get(name string) (Probe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.probes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProbeNotFound, name)
	}
	return p, nil
}

// Resolve maps names to probes in order. Unknown names are returned separately.
func (r *Registry) Resolve(names []string) ([]Probe, []string) {
	var probes []Probe
	var missing []string
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		probes = append(probes, p)
	}
	return probes, missing
}

// All returns all registered probes sorted by name.
func (r *Registry) All() []Probe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Probe, 0, len(r.probes))
	for _, p := range r.probes {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the registered probe names, sorted.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name()
	}
	return names
}
