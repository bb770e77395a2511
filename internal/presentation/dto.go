// Package presentation converts domain values into the shapes printed by
// the CLI.
package presentation

import (
	"time"

	"github.com/zjrosen/nodegraph/internal/blueprints/domain"
	"github.com/zjrosen/nodegraph/internal/execution"
)

// BlueprintDTO represents a stored subgraph definition for listing.
type BlueprintDTO struct {
	SubgraphID string    `json:"subgraph_id" yaml:"subgraph_id"`
	Name       string    `json:"name" yaml:"name"`
	Version    int       `json:"version" yaml:"version"`
	Size       int       `json:"size" yaml:"size"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// FromBlueprints converts stored blueprints, keeping their order.
func FromBlueprints(bs []*domain.Blueprint) []BlueprintDTO {
	out := make([]BlueprintDTO, len(bs))
	for i, b := range bs {
		out[i] = BlueprintDTO{
			SubgraphID: b.SubgraphID(),
			Name:       b.Name(),
			Version:    b.Version(),
			Size:       len(b.Definition()),
			UpdatedAt:  b.UpdatedAt(),
		}
	}
	return out
}

// ExecutableDTO represents one flattened node.
type ExecutableDTO struct {
	ID      string   `json:"id" yaml:"id"`
	Type    string   `json:"type" yaml:"type"`
	Title   string   `json:"title" yaml:"title"`
	Mode    string   `json:"mode" yaml:"mode"`
	Path    []string `json:"path" yaml:"path"` // always present, empty at the root
	Virtual bool     `json:"virtual,omitempty" yaml:"virtual,omitempty"`
}

// FromProgram converts the nodes of p in execution order.
func FromProgram(p *execution.Program) []ExecutableDTO {
	out := make([]ExecutableDTO, len(p.Nodes))
	for i, n := range p.Nodes {
		path := make([]string, 0, len(n.Path()))
		for _, id := range n.Path() {
			path = append(path, id.String())
		}
		out[i] = ExecutableDTO{
			ID:      string(n.ID()),
			Type:    n.Type(),
			Title:   n.Title(),
			Mode:    n.Mode().String(),
			Path:    path,
			Virtual: n.IsVirtual(),
		}
	}
	return out
}
