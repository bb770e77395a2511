// Package graph implements the node graph document model: graphs, links,
// subgraph definitions with their boundary nodes, and subgraph instances that
// stay in sync with their definition.
//
// The model is single-threaded. Callers must not mutate a document from more
// than one goroutine.
package graph

import (
	"fmt"
	"sort"

	"github.com/zjrosen/nodegraph/internal/log"
)

// Graph is a container of nodes, links and groups. A document's top-level
// graph and every subgraph body are Graphs.
type Graph struct {
	nodes  []Node
	byID   map[NodeID]Node
	links  map[LinkID]*Link
	Groups []*Group
	Extra  map[string]any

	lastNodeID NodeID
	lastLinkID LinkID

	root     *Graph
	registry *Registry
	subgraph *Subgraph
}

// New creates a root graph. A nil registry gets a fresh one.
func New(reg *Registry) *Graph {
	if reg == nil {
		reg = NewRegistry()
	}
	g := newGraph()
	g.root = g
	g.registry = reg
	return g
}

func newGraph() *Graph {
	return &Graph{
		byID:  make(map[NodeID]Node),
		links: make(map[LinkID]*Link),
		Extra: make(map[string]any),
	}
}

// Root returns the document's top-level graph.
func (g *Graph) Root() *Graph {
	return g.root
}

// IsRoot reports whether g is a document's top-level graph.
func (g *Graph) IsRoot() bool {
	return g.root == g
}

// Registry returns the document registry.
func (g *Graph) Registry() *Registry {
	return g.root.registry
}

// Subgraph returns the definition whose body g is, or nil for the root.
func (g *Graph) Subgraph() *Subgraph {
	return g.subgraph
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id NodeID) (Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Link returns the link with the given id.
func (g *Graph) Link(id LinkID) (*Link, bool) {
	l, ok := g.links[id]
	return l, ok
}

// Links returns all links ordered by id.
func (g *Graph) Links() []*Link {
	out := make([]*Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LastNodeID returns the highest node id issued or seen.
func (g *Graph) LastNodeID() NodeID {
	return g.lastNodeID
}

// LastLinkID returns the highest link id issued or seen.
func (g *Graph) LastLinkID() LinkID {
	return g.lastLinkID
}

// Add inserts a node. A node with a non-positive id is assigned the next
// free id.
func (g *Graph) Add(n Node) error {
	base := n.Base()
	if base.graph != nil && base.graph != g {
		return fmt.Errorf("%w: %d", ErrNodeInOtherGraph, base.ID)
	}
	if base.ID <= 0 {
		g.lastNodeID++
		base.ID = g.lastNodeID
	}
	if _, exists := g.byID[base.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateNode, base.ID)
	}
	if base.ID > g.lastNodeID {
		g.lastNodeID = base.ID
	}

	base.graph = g
	g.nodes = append(g.nodes, n)
	g.byID[base.ID] = n

	switch node := n.(type) {
	case *SubgraphNode:
		node.onAdded()
	case *LeafNode:
	}
	return nil
}

// Remove detaches a node, dropping every link attached to it.
func (g *Graph) Remove(n Node) error {
	base := n.Base()
	if existing, ok := g.byID[base.ID]; !ok || existing != n {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, base.ID)
	}

	for _, in := range base.Inputs {
		if in.Linked() {
			g.removeLinkByID(in.Link)
		}
	}
	for _, out := range base.Outputs {
		for _, id := range append([]LinkID(nil), out.Links...) {
			g.removeLinkByID(id)
		}
	}

	delete(g.byID, base.ID)
	for i, existing := range g.nodes {
		if existing == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	base.graph = nil

	switch node := n.(type) {
	case *SubgraphNode:
		node.onRemoved()
	case *LeafNode:
	}
	return nil
}

// Connect links output originSlot of origin to input targetSlot of target,
// replacing any link already on that input. Incompatible types are not
// linked and return ErrConnectionSkipped.
func (g *Graph) Connect(origin Node, originSlot int, target Node, targetSlot int) (*Link, error) {
	ob, tb := origin.Base(), target.Base()
	if ob.graph != g || tb.graph != g {
		return nil, fmt.Errorf("%w: link endpoints must belong to the graph", ErrNodeNotFound)
	}
	if originSlot < 0 || originSlot >= len(ob.Outputs) {
		return nil, fmt.Errorf("%w: output %d on node %d", ErrInvalidSlot, originSlot, ob.ID)
	}
	if targetSlot < 0 || targetSlot >= len(tb.Inputs) {
		return nil, fmt.Errorf("%w: input %d on node %d", ErrInvalidSlot, targetSlot, tb.ID)
	}

	out, in := ob.Outputs[originSlot], tb.Inputs[targetSlot]
	if !IsValidConnection(out.Type, in.Type) {
		log.Warn(log.CatLink, "connection skipped",
			"origin", ob.ID, "origin_type", out.Type, "target", tb.ID, "target_type", in.Type)
		return nil, fmt.Errorf("%w: %s -> %s", ErrConnectionSkipped, out.Type, in.Type)
	}

	if in.Linked() {
		g.removeLinkByID(in.Link)
	}

	link := g.newLink(ob.ID, originSlot, tb.ID, targetSlot, out.Type)
	out.Links = append(out.Links, link.ID)
	in.Link = link.ID
	log.Debug(log.CatGraph, "connected", "link", link.ID, "origin", ob.ID, "target", tb.ID)
	return link, nil
}

// DisconnectInput drops the link feeding an input, if any.
func (g *Graph) DisconnectInput(target Node, slot int) error {
	tb := target.Base()
	if slot < 0 || slot >= len(tb.Inputs) {
		return fmt.Errorf("%w: input %d on node %d", ErrInvalidSlot, slot, tb.ID)
	}
	if tb.Inputs[slot].Linked() {
		g.removeLinkByID(tb.Inputs[slot].Link)
	}
	return nil
}

// DisconnectOutput drops every link leaving an output.
func (g *Graph) DisconnectOutput(origin Node, slot int) error {
	ob := origin.Base()
	if slot < 0 || slot >= len(ob.Outputs) {
		return fmt.Errorf("%w: output %d on node %d", ErrInvalidSlot, slot, ob.ID)
	}
	for _, id := range append([]LinkID(nil), ob.Outputs[slot].Links...) {
		g.removeLinkByID(id)
	}
	return nil
}

// ResolveSubgraphIDPath maps a path of instance ids, outermost first, to the
// SubgraphNode instances it names.
func (g *Graph) ResolveSubgraphIDPath(path []NodeID) ([]*SubgraphNode, error) {
	result := make([]*SubgraphNode, 0, len(path))
	current := g
	for _, id := range path {
		n, ok := current.NodeByID(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d in path %v", ErrNodeNotFound, id, path)
		}
		sn, ok := n.(*SubgraphNode)
		if !ok {
			return nil, fmt.Errorf("%w: %d in path %v", ErrNotSubgraphNode, id, path)
		}
		result = append(result, sn)
		current = &sn.Subgraph().Graph
	}
	return result, nil
}

func (g *Graph) newLink(originID NodeID, originSlot int, targetID NodeID, targetSlot int, typ SlotType) *Link {
	g.lastLinkID++
	link := &Link{
		ID:         g.lastLinkID,
		OriginID:   originID,
		OriginSlot: originSlot,
		TargetID:   targetID,
		TargetSlot: targetSlot,
		Type:       typ,
	}
	g.links[link.ID] = link
	return link
}

// removeLinkByID unhooks both ends of a link and forgets it. The origin side
// goes last so boundary listeners observe the final state.
func (g *Graph) removeLinkByID(id LinkID) {
	link, ok := g.links[id]
	if !ok {
		return
	}
	delete(g.links, id)

	if link.TargetIsOutputNode() && g.subgraph != nil {
		if slot := g.subgraph.OutputNode.slot(link.TargetSlot); slot != nil {
			slot.LinkIDs = removeLinkID(slot.LinkIDs, id)
		}
	} else if n, ok := g.byID[link.TargetID]; ok {
		inputs := n.Base().Inputs
		if link.TargetSlot >= 0 && link.TargetSlot < len(inputs) && inputs[link.TargetSlot].Link == id {
			inputs[link.TargetSlot].Link = NoLink
		}
	}

	if link.OriginIsInputNode() && g.subgraph != nil {
		if slot := g.subgraph.InputNode.slot(link.OriginSlot); slot != nil {
			slot.LinkIDs = removeLinkID(slot.LinkIDs, id)
			target := g.byID[link.TargetID]
			g.subgraph.Events.Publish(EventInputDisconnected, SubgraphEvent{
				Subgraph: g.subgraph,
				Slot:     slot,
				Index:    link.OriginSlot,
				Node:     target,
				NodeSlot: link.TargetSlot,
			})
		}
	} else if n, ok := g.byID[link.OriginID]; ok {
		outputs := n.Base().Outputs
		if link.OriginSlot >= 0 && link.OriginSlot < len(outputs) {
			outputs[link.OriginSlot].Links = removeLinkID(outputs[link.OriginSlot].Links, id)
		}
	}
	log.Debug(log.CatGraph, "link removed", "link", id)
}

// shiftInputLinks decrements the target slot of links feeding inputs of n
// at or after index from.
func (g *Graph) shiftInputLinks(n *NodeBase, from int) {
	for i := from; i < len(n.Inputs); i++ {
		if l, ok := g.links[n.Inputs[i].Link]; ok {
			l.TargetSlot = i
		}
	}
}

// shiftOutputLinks re-points links leaving outputs of n at or after from.
func (g *Graph) shiftOutputLinks(n *NodeBase, from int) {
	for i := from; i < len(n.Outputs); i++ {
		for _, id := range n.Outputs[i].Links {
			if l, ok := g.links[id]; ok {
				l.OriginSlot = i
			}
		}
	}
}
