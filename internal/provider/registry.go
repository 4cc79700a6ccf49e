package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe set of sources indexed by capability.
// For each capability the first registered source is the default; later
// ones are fallbacks in registration order.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	capIdx  map[Capability][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
		capIdx:  make(map[Capability][]string),
	}
}

// Register adds a source. Re-registering a name replaces the source but
// keeps its priority.
func (r *Registry) Register(s Source) error {
	info := s.Info()
	if info.Name == "" {
		return fmt.Errorf("source name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources[info.Name] = s
	for _, c := range info.Capabilities {
		names := r.capIdx[c]
		found := false
		for _, n := range names {
			if n == info.Name {
				found = true
				break
			}
		}
		if !found {
			r.capIdx[c] = append(names, info.Name)
		}
	}
	return nil
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]
	if !ok {
		return nil, &ErrSourceNotFound{Name: name}
	}
	return s, nil
}

// List returns info about all registered sources, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sources))
	for _, s := range r.sources {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// SourcesFor returns the sources offering c, default first.
func (r *Registry) SourcesFor(c Capability) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.capIdx[c]
	out := make([]Source, 0, len(names))
	for _, n := range names {
		out = append(out, r.sources[n])
	}
	return out
}

// Coverage maps each capability to its source names in priority order.
func (r *Registry) Coverage() map[Capability][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[Capability][]string, len(r.capIdx))
	for c, names := range r.capIdx {
		out[c] = append([]string(nil), names...)
	}
	return out
}

// lookup returns the first source for c that implements T.
func lookup[T any](r *Registry, c Capability) (T, error) {
	for _, s := range r.SourcesFor(c) {
		if v, ok := s.(T); ok {
			return v, nil
		}
	}
	var zero T
	return zero, &ErrCapabilityNotSupported{Capability: c}
}

// Prices returns the default price source.
func (r *Registry) Prices() (PriceSource, error) { return lookup[PriceSource](r, CapPrices) }

// Actions returns the default split and dividend source.
func (r *Registry) Actions() (ActionSource, error) { return lookup[ActionSource](r, CapActions) }

// Profiles returns the default profile source.
func (r *Registry) Profiles() (ProfileSource, error) { return lookup[ProfileSource](r, CapProfile) }

// Filings returns the default filings source.
func (r *Registry) Filings() (FilingSource, error) { return lookup[FilingSource](r, CapFilings) }

// Shares returns the default shares source.
func (r *Registry) Shares() (SharesSource, error) { return lookup[SharesSource](r, CapShares) }

// Universe returns the default ticker universe source.
func (r *Registry) Universe() (UniverseSource, error) { return lookup[UniverseSource](r, CapUniverse) }
