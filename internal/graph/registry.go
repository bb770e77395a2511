package graph

import (
	"fmt"
	"sort"
)

// NodeFactory builds a fresh node of a registered type with its slots and
// widgets declared.
type NodeFactory func() *LeafNode

// Registry holds the node types and subgraph definitions of one document.
type Registry struct {
	nodeTypes map[string]NodeFactory
	subgraphs map[string]*Subgraph
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodeTypes: make(map[string]NodeFactory),
		subgraphs: make(map[string]*Subgraph),
	}
}

// RegisterNodeType adds a node type.
func (r *Registry) RegisterNodeType(typ string, factory NodeFactory) error {
	if _, exists := r.nodeTypes[typ]; exists {
		return fmt.Errorf("%w: node type %s", ErrDuplicateKey, typ)
	}
	r.nodeTypes[typ] = factory
	return nil
}

// CreateNode builds a node of a registered type.
func (r *Registry) CreateNode(typ string) (*LeafNode, bool) {
	factory, ok := r.nodeTypes[typ]
	if !ok {
		return nil, false
	}
	n := factory()
	n.Type = typ
	if n.Flags == nil {
		n.Flags = map[string]any{}
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	return n, true
}

// NodeTypes returns the registered node types, sorted.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.nodeTypes))
	for typ := range r.nodeTypes {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// AddSubgraph registers a definition.
func (r *Registry) AddSubgraph(sg *Subgraph) error {
	if sg == nil {
		return ErrNilSubgraph
	}
	if _, exists := r.subgraphs[sg.ID]; exists {
		return fmt.Errorf("%w: subgraph %s", ErrDuplicateKey, sg.ID)
	}
	r.subgraphs[sg.ID] = sg
	r.order = append(r.order, sg.ID)
	return nil
}

// Subgraph returns a registered definition.
func (r *Registry) Subgraph(id string) (*Subgraph, error) {
	sg, ok := r.subgraphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubgraphNotFound, id)
	}
	return sg, nil
}

// HasSubgraph reports whether id names a registered definition.
func (r *Registry) HasSubgraph(id string) bool {
	_, ok := r.subgraphs[id]
	return ok
}

// Subgraphs returns the definitions in registration order.
func (r *Registry) Subgraphs() []*Subgraph {
	out := make([]*Subgraph, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.subgraphs[id])
	}
	return out
}

// RemoveSubgraph forgets a definition. Existing instances keep their
// reference to it.
func (r *Registry) RemoveSubgraph(id string) {
	if _, ok := r.subgraphs[id]; !ok {
		return
	}
	delete(r.subgraphs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// UsedSubgraphIDs returns the ids of definitions reachable from g, directly
// or through nested definitions, in breadth-first order.
func (r *Registry) UsedSubgraphIDs(g *Graph) []string {
	var used []string
	seen := make(map[string]bool)
	queue := []*Graph{g}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, n := range current.nodes {
			sn, ok := n.(*SubgraphNode)
			if !ok || seen[sn.subgraph.ID] {
				continue
			}
			seen[sn.subgraph.ID] = true
			used = append(used, sn.subgraph.ID)
			queue = append(queue, &sn.subgraph.Graph)
		}
	}
	return used
}

// PruneUnused removes definitions not reachable from g and returns their ids.
func (r *Registry) PruneUnused(g *Graph) []string {
	used := make(map[string]bool)
	for _, id := range r.UsedSubgraphIDs(g) {
		used[id] = true
	}
	var removed []string
	for _, id := range append([]string(nil), r.order...) {
		if !used[id] {
			r.RemoveSubgraph(id)
			removed = append(removed, id)
		}
	}
	return removed
}
