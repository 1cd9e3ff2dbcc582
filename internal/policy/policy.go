// Package policy holds block list presets: named bundles of application
// identifiers that are blocked together.
package policy

import "sort"

// AppPreset defines one blockable application family.
type AppPreset interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ApplicationIDs returns the identifiers the foreground query reports for
	// this app: macOS bundle ids and Linux process names.
	ApplicationIDs() []string
}

// Blocker is the part of domain.PolicyStore presets write to.
type Blocker interface {
	SetBlocked(applicationID string, blocked bool) bool
}

// Apply blocks every application id of the preset in store.
// Returns the ids that failed to persist.
func Apply(p AppPreset, store Blocker) []string {
	var failed []string
	for _, id := range p.ApplicationIDs() {
		if !store.SetBlocked(id, true) {
			failed = append(failed, id)
		}
	}
	return failed
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
