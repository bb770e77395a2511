package testutil

import "github.com/zjrosen/nodegraph/internal/graph"

// NodeOption adjusts a node before it is added to a graph.
type NodeOption func(graph.Node)

// ID fixes the node id instead of letting the graph assign one.
func ID(id graph.NodeID) NodeOption {
	return func(n graph.Node) { n.Base().ID = id }
}

func Title(title string) NodeOption {
	return func(n graph.Node) { n.Base().Title = title }
}

func Mode(mode graph.NodeMode) NodeOption {
	return func(n graph.Node) { n.Base().Mode = mode }
}

// Bypassed is Mode(graph.ModeBypass).
func Bypassed() NodeOption {
	return Mode(graph.ModeBypass)
}

// Muted is Mode(graph.ModeNever).
func Muted() NodeOption {
	return Mode(graph.ModeNever)
}
