package policy

import "fmt"

// Registry holds all presets known to the CLI.
type Registry struct {
	presets map[string]AppPreset
}

// NewRegistry creates a registry with all default presets.
func NewRegistry() *Registry {
	return NewRegistryWithPresets(NewSteamPolicy(), NewDota2Policy())
}

// NewRegistryWithPresets creates a registry with custom presets (for testing).
func NewRegistryWithPresets(presets ...AppPreset) *Registry {
	r := &Registry{
		presets: make(map[string]AppPreset),
	}
	for _, p := range presets {
		r.Register(p)
	}
	return r
}

// Register adds a preset to the registry.
func (r *Registry) Register(p AppPreset) {
	r.presets[p.ID()] = p
}

// Get returns a preset by ID.
func (r *Registry) Get(id string) (AppPreset, error) {
	p, ok := r.presets[id]
	if !ok {
		return nil, fmt.Errorf("preset not found: %s (available: %v)", id, r.List())
	}
	return p, nil
}

// GetAll returns all presets ordered by ID.
func (r *Registry) GetAll() []AppPreset {
	result := make([]AppPreset, 0, len(r.presets))
	for _, id := range r.List() {
		result = append(result, r.presets[id])
	}
	return result
}

// List returns all preset IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	return sorted(ids)
}
