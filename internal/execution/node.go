package execution

import (
	"slices"

	"github.com/zjrosen/nodegraph/internal/graph"
)

// InputInfo is the part of an input slot the resolver needs.
type InputInfo struct {
	Name string
	Type graph.SlotType
	Link graph.LinkID
}

// ExecutableNode wraps one node of the hierarchy together with its position
// in it. Leaves are what the engine runs; instance nodes are indexed so that
// resolution can step across their boundaries.
type ExecutableNode struct {
	id        ExecutionID
	node      graph.Node
	path      []graph.NodeID
	index     *Index
	enclosing *graph.SubgraphNode
	inputs    []InputInfo
}

// NewExecutableNode wraps node reached through path. enclosing is the
// instance whose body holds node, nil at the top of the pass.
func NewExecutableNode(node graph.Node, path []graph.NodeID, index *Index, enclosing *graph.SubgraphNode) *ExecutableNode {
	base := node.Base()
	inputs := make([]InputInfo, len(base.Inputs))
	for i, in := range base.Inputs {
		inputs[i] = InputInfo{Name: in.Name, Type: in.Type, Link: in.Link}
	}
	return &ExecutableNode{
		id:        MakeID(path, base.ID),
		node:      node,
		path:      slices.Clone(path),
		index:     index,
		enclosing: enclosing,
		inputs:    inputs,
	}
}

func (n *ExecutableNode) ID() ExecutionID      { return n.id }
func (n *ExecutableNode) Type() string         { return n.node.Base().Type }
func (n *ExecutableNode) Title() string        { return n.node.Base().DisplayTitle() }
func (n *ExecutableNode) Mode() graph.NodeMode { return n.node.Base().Mode }
func (n *ExecutableNode) Node() graph.Node     { return n.node }

// Path returns the ids of the enclosing instances, outermost first.
func (n *ExecutableNode) Path() []graph.NodeID {
	return slices.Clone(n.path)
}

// Inputs returns the inputs as they were when the node was built.
func (n *ExecutableNode) Inputs() []InputInfo {
	return slices.Clone(n.inputs)
}

// Enclosing returns the instance whose body holds the node.
func (n *ExecutableNode) Enclosing() *graph.SubgraphNode {
	return n.enclosing
}

// IsVirtual reports whether the node is skipped by the engine. Subgraph
// instances are always virtual.
func (n *ExecutableNode) IsVirtual() bool {
	switch node := n.node.(type) {
	case *graph.LeafNode:
		return node.Virtual
	case *graph.SubgraphNode:
		return true
	}
	return false
}

func (n *ExecutableNode) HasApplyToGraph() bool {
	leaf, ok := n.node.(*graph.LeafNode)
	return ok && leaf.ApplyToGraph != nil
}

// ApplyToGraph runs the node's graph rewrite hook, if any.
func (n *ExecutableNode) ApplyToGraph(extra []*graph.Link) error {
	leaf, ok := n.node.(*graph.LeafNode)
	if !ok || leaf.ApplyToGraph == nil {
		return nil
	}
	return leaf.ApplyToGraph(extra)
}

func (n *ExecutableNode) outputType(slot int) graph.SlotType {
	outs := n.node.Base().Outputs
	if slot < 0 || slot >= len(outs) {
		return ""
	}
	return outs[slot].Type
}
