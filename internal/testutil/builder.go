// Package testutil provides fixtures for graph and database tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/nodegraph/internal/graph"
)

// Builder assembles a root graph and its subgraph definitions. Nodes are
// referred to by a name that is unique across the whole builder.
type Builder struct {
	t     *testing.T
	root  *graph.Graph
	nodes map[string]graph.Node
}

// NewBuilder starts an empty document with its own registry.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{
		t:     t,
		root:  graph.New(graph.NewRegistry()),
		nodes: make(map[string]graph.Node),
	}
}

// Node adds n to the root graph under name.
func (b *Builder) Node(name string, n graph.Node, opts ...NodeOption) *Builder {
	b.t.Helper()
	b.add(b.root, name, n, opts)
	return b
}

// Instance adds an instance of sg to the root graph.
func (b *Builder) Instance(name string, sg *graph.Subgraph, opts ...NodeOption) *Builder {
	b.t.Helper()
	return b.Node(name, graph.NewSubgraphNode(sg, 0), opts...)
}

// Link connects two root nodes.
func (b *Builder) Link(origin string, originSlot int, target string, targetSlot int) *Builder {
	b.t.Helper()
	_, err := b.root.Connect(b.Get(origin), originSlot, b.Get(target), targetSlot)
	require.NoError(b.t, err)
	return b
}

// Subgraph starts a new registered definition.
func (b *Builder) Subgraph(name string) *SubgraphBuilder {
	b.t.Helper()
	sg, err := b.root.CreateSubgraph(name)
	require.NoError(b.t, err)
	return &SubgraphBuilder{b: b, sg: sg}
}

// Get returns a named node from any graph of the document.
func (b *Builder) Get(name string) graph.Node {
	b.t.Helper()
	n, ok := b.nodes[name]
	require.True(b.t, ok, "no node named %q", name)
	return n
}

// Leaf returns a named node that must be a leaf.
func (b *Builder) Leaf(name string) *graph.LeafNode {
	b.t.Helper()
	n, ok := b.Get(name).(*graph.LeafNode)
	require.True(b.t, ok, "node %q is not a leaf", name)
	return n
}

// SubgraphNode returns a named node that must be an instance.
func (b *Builder) SubgraphNode(name string) *graph.SubgraphNode {
	b.t.Helper()
	n, ok := b.Get(name).(*graph.SubgraphNode)
	require.True(b.t, ok, "node %q is not a subgraph instance", name)
	return n
}

// Build returns the root graph.
func (b *Builder) Build() *graph.Graph {
	return b.root
}

func (b *Builder) add(g *graph.Graph, name string, n graph.Node, opts []NodeOption) {
	b.t.Helper()
	_, dup := b.nodes[name]
	require.False(b.t, dup, "node name %q used twice", name)
	for _, opt := range opts {
		opt(n)
	}
	require.NoError(b.t, g.Add(n))
	b.nodes[name] = n
}

// SubgraphBuilder fills in one definition.
type SubgraphBuilder struct {
	b  *Builder
	sg *graph.Subgraph
}

// Input declares a boundary input.
func (s *SubgraphBuilder) Input(name string, typ graph.SlotType) *SubgraphBuilder {
	s.b.t.Helper()
	_, err := s.sg.AddInput(name, typ)
	require.NoError(s.b.t, err)
	return s
}

// Output declares a boundary output.
func (s *SubgraphBuilder) Output(name string, typ graph.SlotType) *SubgraphBuilder {
	s.b.t.Helper()
	_, err := s.sg.AddOutput(name, typ)
	require.NoError(s.b.t, err)
	return s
}

// Node adds n to the body under name.
func (s *SubgraphBuilder) Node(name string, n graph.Node, opts ...NodeOption) *SubgraphBuilder {
	s.b.t.Helper()
	s.b.add(&s.sg.Graph, name, n, opts)
	return s
}

// Instance nests an instance of inner in the body.
func (s *SubgraphBuilder) Instance(name string, inner *graph.Subgraph, opts ...NodeOption) *SubgraphBuilder {
	s.b.t.Helper()
	return s.Node(name, graph.NewSubgraphNode(inner, 0), opts...)
}

// Link connects two body nodes.
func (s *SubgraphBuilder) Link(origin string, originSlot int, target string, targetSlot int) *SubgraphBuilder {
	s.b.t.Helper()
	_, err := s.sg.Connect(s.b.Get(origin), originSlot, s.b.Get(target), targetSlot)
	require.NoError(s.b.t, err)
	return s
}

// LinkIn connects the named boundary input to an input of a body node.
func (s *SubgraphBuilder) LinkIn(input string, target string, targetSlot int) *SubgraphBuilder {
	s.b.t.Helper()
	_, err := s.boundary(s.sg.Inputs(), input).Connect(targetSlot, s.b.Get(target))
	require.NoError(s.b.t, err)
	return s
}

// LinkOut connects an output of a body node to the named boundary output.
func (s *SubgraphBuilder) LinkOut(origin string, originSlot int, output string) *SubgraphBuilder {
	s.b.t.Helper()
	_, err := s.boundary(s.sg.Outputs(), output).Connect(originSlot, s.b.Get(origin))
	require.NoError(s.b.t, err)
	return s
}

// PassThrough connects a boundary input straight to a boundary output.
func (s *SubgraphBuilder) PassThrough(input, output string) *SubgraphBuilder {
	s.b.t.Helper()
	_, err := s.boundary(s.sg.Outputs(), output).ConnectFromInput(s.boundary(s.sg.Inputs(), input))
	require.NoError(s.b.t, err)
	return s
}

// Done returns the finished definition.
func (s *SubgraphBuilder) Done() *graph.Subgraph {
	return s.sg
}

func (s *SubgraphBuilder) boundary(slots []*graph.BoundarySlot, name string) *graph.BoundarySlot {
	s.b.t.Helper()
	for _, slot := range slots {
		if slot.Name == name {
			return slot
		}
	}
	require.Failf(s.b.t, "unknown boundary slot", "%q in subgraph %s", name, s.sg.Name)
	return nil
}
