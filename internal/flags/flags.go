// Package flags provides feature flags read from the "flags" config section.
// Flags are read-only after initialization and unknown flags are off.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/nodegraph/internal/log"
)

const (
	// FlagHydrateBlueprints lets flatten fill in subgraph definitions a
	// workflow references but does not carry, from the blueprint library.
	FlagHydrateBlueprints = "hydrate-blueprints"

	// FlagPruneUnused makes "blueprint save" skip definitions that no node
	// of the workflow instantiates, directly or through other definitions.
	FlagPruneUnused = "prune-unused"
)

// Defaults holds the value of every known flag when config does not set it.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagHydrateBlueprints: true,
		FlagPruneUnused:       false,
	}
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from config values layered over Defaults.
func New(flags map[string]bool) *Registry {
	merged := Defaults()
	maps.Copy(merged, flags)
	r := &Registry{flags: merged}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(merged), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Unknown flags and a nil registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name)
		return false
	}
	return value
}

// All returns a copy of all flags.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}

// Names returns the flag names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.flags))
}
