package presentation

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/nodegraph/internal/blueprints/domain"
	"github.com/zjrosen/nodegraph/internal/execution"
	"github.com/zjrosen/nodegraph/internal/testutil"
)

func samplerProgram(t *testing.T) *execution.Program {
	t.Helper()
	p, err := execution.NewCompiler().Flatten(context.Background(), testutil.SamplerWorkflow(t).Build())
	require.NoError(t, err)
	return p
}

func TestFromProgram(t *testing.T) {
	dtos := FromProgram(samplerProgram(t))
	require.Len(t, dtos, 3)

	require.Equal(t, "3:7", dtos[1].ID)
	require.Equal(t, "KSampler", dtos[1].Type)
	require.Equal(t, []string{"3"}, dtos[1].Path)
	require.Equal(t, "always", dtos[1].Mode)

	require.NotNil(t, dtos[0].Path, "root nodes encode an empty path")
	require.Empty(t, dtos[0].Path)
}

func TestFormatter_IDs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, "").FormatIDs(FromProgram(samplerProgram(t))))
	require.Equal(t, "1\n3:7\n9\n", buf.String())
}

func TestFormatter_ProgramJSONAndYAML(t *testing.T) {
	dtos := FromProgram(samplerProgram(t))

	var js bytes.Buffer
	require.NoError(t, NewFormatter(&js, FormatJSON).FormatProgram(dtos))
	require.Contains(t, js.String(), `"id": "3:7"`)
	require.Contains(t, js.String(), `"path": []`)

	var ym bytes.Buffer
	require.NoError(t, NewFormatter(&ym, FormatYAML).FormatProgram(dtos))
	require.Contains(t, ym.String(), "id: \"3:7\"")
	require.Contains(t, ym.String(), "type: KSampler")
}

func TestFormatter_UnknownFormat(t *testing.T) {
	err := NewFormatter(&bytes.Buffer{}, "toml").Encode(map[string]int{"a": 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown output format "toml"`)
}

func TestFromBlueprints(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := domain.NewBlueprint("sg-1", "Upscale", 1, []byte(`{"id":"sg-1"}`), now)
	require.NoError(t, err)

	dtos := FromBlueprints([]*domain.Blueprint{b})
	require.Equal(t, []BlueprintDTO{{
		SubgraphID: "sg-1",
		Name:       "Upscale",
		Version:    1,
		Size:       13,
		UpdatedAt:  now,
	}}, dtos)
}

func TestMarshal_JSONIsStable(t *testing.T) {
	v := map[string]any{"b": 1, "a": []any{"3:7", 0}}
	first, err := Marshal(v, FormatJSON)
	require.NoError(t, err)
	second, err := Marshal(v, FormatJSON)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.True(t, strings.Index(string(first), `"a"`) < strings.Index(string(first), `"b"`))
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		want    string
		changed bool
	}{
		{
			name: "identical",
			a:    "x\ny\n",
			b:    "x\ny\n",
			want: " x\n y\n",
		},
		{
			name:    "changed line",
			a:       "x\nseed: 42\nz\n",
			b:       "x\nseed: 99\nz\n",
			want:    " x\n-seed: 42\n+seed: 99\n z\n",
			changed: true,
		},
		{
			name:    "added line",
			a:       "x\n",
			b:       "x\ny\n",
			want:    " x\n+y\n",
			changed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			changed, err := Diff(&buf, tt.a, tt.b)
			require.NoError(t, err)
			require.Equal(t, tt.changed, changed)
			require.Equal(t, tt.want, buf.String())
		})
	}
}
