package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		expected bool
	}{
		{
			name:     "default on",
			registry: New(nil),
			flag:     FlagHydrateBlueprints,
			expected: true,
		},
		{
			name:     "default off",
			registry: New(nil),
			flag:     FlagPruneUnused,
			expected: false,
		},
		{
			name:     "config overrides default",
			registry: New(map[string]bool{FlagHydrateBlueprints: false, FlagPruneUnused: true}),
			flag:     FlagPruneUnused,
			expected: true,
		},
		{
			name:     "config flag outside defaults",
			registry: New(map[string]bool{"experimental": true}),
			flag:     "experimental",
			expected: true,
		},
		{
			name:     "unknown flag returns false",
			registry: New(nil),
			flag:     "unknown-flag",
			expected: false,
		},
		{
			name:     "nil registry returns false",
			registry: nil,
			flag:     FlagHydrateBlueprints,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestRegistry_All(t *testing.T) {
	r := New(map[string]bool{FlagPruneUnused: true})
	require.Equal(t, map[string]bool{
		FlagHydrateBlueprints: true,
		FlagPruneUnused:       true,
	}, r.All())

	var nilRegistry *Registry
	require.Equal(t, map[string]bool{}, nilRegistry.All())
}

func TestRegistry_All_ReturnsCopy(t *testing.T) {
	r := New(nil)

	all := r.All()
	all[FlagHydrateBlueprints] = false
	all["new-flag"] = true

	require.True(t, r.Enabled(FlagHydrateBlueprints), "registry should not be affected by copy mutation")
	require.False(t, r.Enabled("new-flag"))
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	in := map[string]bool{FlagPruneUnused: true}
	r := New(in)
	in[FlagPruneUnused] = false
	require.True(t, r.Enabled(FlagPruneUnused))
	require.Len(t, in, 1, "defaults are not written into the caller's map")
}

func TestRegistry_Names(t *testing.T) {
	require.Equal(t, []string{FlagHydrateBlueprints, FlagPruneUnused}, New(nil).Names())
	require.Equal(t, []string{"a", FlagHydrateBlueprints, FlagPruneUnused}, New(map[string]bool{"a": true}).Names())
}
