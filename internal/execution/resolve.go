package execution

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/log"
)

// Direction says which side of a node a resolution step is on.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

type visitKey struct {
	node ExecutionID
	dir  Direction
	slot int
}

// Visited records the slots already on a resolution chain. The zero value
// is empty; With returns a copy and never modifies the receiver.
type Visited struct {
	keys map[visitKey]struct{}
}

// Has reports whether the slot is already on the chain.
func (v Visited) Has(node ExecutionID, dir Direction, slot int) bool {
	_, ok := v.keys[visitKey{node, dir, slot}]
	return ok
}

// With returns a copy of v that also holds the slot.
func (v Visited) With(node ExecutionID, dir Direction, slot int) Visited {
	keys := make(map[visitKey]struct{}, len(v.keys)+1)
	for k := range v.keys {
		keys[k] = struct{}{}
	}
	keys[visitKey{node, dir, slot}] = struct{}{}
	return Visited{keys: keys}
}

// Len returns the number of slots on the chain.
func (v Visited) Len() int {
	return len(v.keys)
}

// WidgetValue is a promoted widget standing in for an unconnected input.
type WidgetValue struct {
	Name  string
	Value any
}

// ResolvedInput is what feeds an input once every boundary, bypassed node
// and virtual node has been stepped through.
//
// For a producer, Node is the producing leaf and OriginSlot its output. For
// a promoted widget, Node is the node whose input crossed the boundary into
// the instance holding the widget, OriginSlot is -1 and Widget is set.
type ResolvedInput struct {
	Node       *ExecutableNode
	OriginID   ExecutionID
	OriginSlot int
	Widget     *WidgetValue
}

// ResolveInput finds what feeds input slot. A nil result with a nil error
// means the input has no producer.
func (n *ExecutableNode) ResolveInput(slot int) (*ResolvedInput, error) {
	return n.resolveInput(slot, Visited{})
}

func (n *ExecutableNode) resolveInput(slot int, visited Visited) (*ResolvedInput, error) {
	if visited.Has(n.id, DirectionInput, slot) {
		return nil, &RecursionError{Node: n.id, Direction: DirectionInput, Slot: slot}
	}
	visited = visited.With(n.id, DirectionInput, slot)

	if slot < 0 || slot >= len(n.inputs) {
		return nil, &SlotIndexError{Node: n.id, Slot: slot, Direction: DirectionInput}
	}
	in := n.inputs[slot]
	if in.Link == graph.NoLink {
		return nil, nil
	}

	g := n.node.Base().Graph()
	if g == nil {
		return nil, &InvalidLinkError{Node: n.id, Link: in.Link, Reason: "node is not part of a graph"}
	}
	link, ok := g.Link(in.Link)
	if !ok {
		return nil, &InvalidLinkError{Node: n.id, Link: in.Link, Reason: "link not found in graph"}
	}

	if link.OriginIsInputNode() {
		return n.stepOut(link, visited)
	}

	origin, ok := n.index.Get(MakeID(n.path, link.OriginID))
	if !ok {
		return nil, &InvalidLinkError{Node: n.id, Link: link.ID, Reason: fmt.Sprintf("origin node %d not found", link.OriginID)}
	}
	return origin.ResolveOutput(link.OriginSlot, in.Type, visited)
}

// stepOut follows a link from the input boundary to the enclosing
// instance's matching input.
func (n *ExecutableNode) stepOut(link *graph.Link, visited Visited) (*ResolvedInput, error) {
	if n.enclosing == nil || len(n.path) == 0 {
		return nil, &InvalidLinkError{Node: n.id, Link: link.ID, Reason: "input boundary link outside a subgraph instance"}
	}
	owner, ok := n.index.Get(MakeID(n.path[:len(n.path)-1], n.enclosing.ID))
	if !ok {
		return nil, &InvalidLinkError{Node: n.id, Link: link.ID, Reason: "enclosing instance not indexed"}
	}

	slot := link.OriginSlot
	if slot < 0 || slot >= len(owner.inputs) {
		return nil, &SlotIndexError{Node: owner.id, Slot: slot, Direction: DirectionInput}
	}
	if owner.inputs[slot].Link != graph.NoLink {
		return owner.resolveInput(slot, visited)
	}

	base := n.enclosing.Base()
	if slot >= len(base.Inputs) {
		return nil, nil
	}
	w := base.WidgetFromSlot(base.Inputs[slot])
	if w == nil {
		return nil, nil
	}
	return &ResolvedInput{
		Node:       n,
		OriginID:   n.id,
		OriginSlot: -1,
		Widget:     &WidgetValue{Name: w.Name, Value: w.Value},
	}, nil
}

// ResolveOutput finds the real producer behind output slot. typ is the type
// the consumer expects and is used to pick an input of a bypassed node
// whose own output is untyped.
func (n *ExecutableNode) ResolveOutput(slot int, typ graph.SlotType, visited Visited) (*ResolvedInput, error) {
	if visited.Has(n.id, DirectionOutput, slot) {
		return nil, &RecursionError{Node: n.id, Direction: DirectionOutput, Slot: slot}
	}
	visited = visited.With(n.id, DirectionOutput, slot)

	if n.Mode() == graph.ModeBypass {
		return n.resolveBypass(slot, typ, visited)
	}

	switch node := n.node.(type) {
	case *graph.SubgraphNode:
		return n.stepIn(node, slot, typ, visited)
	case *graph.LeafNode:
		if node.Virtual {
			if slot >= 0 && slot < len(n.inputs) {
				return n.resolveInput(slot, visited)
			}
			return nil, nil
		}
	}

	if slot < 0 || slot >= len(n.node.Base().Outputs) {
		return nil, &SlotIndexError{Node: n.id, Slot: slot, Direction: DirectionOutput}
	}
	return &ResolvedInput{Node: n, OriginID: n.id, OriginSlot: slot}, nil
}

// stepIn follows an instance output to the inner link feeding the matching
// output boundary slot.
func (n *ExecutableNode) stepIn(sn *graph.SubgraphNode, slot int, typ graph.SlotType, visited Visited) (*ResolvedInput, error) {
	outs := sn.Subgraph().Outputs()
	if slot < 0 || slot >= len(outs) {
		return nil, &SlotIndexError{Node: n.id, Slot: slot, Direction: DirectionOutput}
	}
	links := outs[slot].Links()
	if len(links) == 0 {
		log.Debug(log.CatResolve, "subgraph output has no inner link", "node", n.id, "slot", slot)
		return nil, nil
	}

	link := links[0]
	if link.OriginIsInputNode() {
		return n.resolveInput(link.OriginSlot, visited)
	}

	inner, ok := n.index.Get(MakeID(append(slices.Clone(n.path), sn.ID), link.OriginID))
	if !ok {
		return nil, &InvalidLinkError{Node: n.id, Link: link.ID, Reason: fmt.Sprintf("inner node %d not found", link.OriginID)}
	}
	return inner.ResolveOutput(link.OriginSlot, typ, visited)
}

func (n *ExecutableNode) resolveBypass(slot int, typ graph.SlotType, visited Visited) (*ResolvedInput, error) {
	i := bypassInput(n.inputs, slot, n.outputType(slot), typ)
	if i < 0 {
		log.Debug(log.CatResolve, "no bypass input matches", "node", n.id, "slot", slot, "type", typ)
		return nil, nil
	}
	return n.resolveInput(i, visited)
}

// bypassInput picks the input a bypassed node passes through for output
// slot. A wildcard consumer takes the same index, or the first input. A
// typed consumer takes the same index when it fits both the output and the
// consumer, then the first exact match on the consumer type, then the first
// input that fits both.
func bypassInput(inputs []InputInfo, slot int, out, typ graph.SlotType) int {
	if len(inputs) == 0 {
		return -1
	}
	if typ == "" || typ == "*" {
		if slot >= 0 && slot < len(inputs) {
			return slot
		}
		return 0
	}
	fits := func(in graph.SlotType) bool {
		return graph.IsValidConnection(in, out) && graph.IsValidConnection(in, typ)
	}
	if slot >= 0 && slot < len(inputs) && fits(inputs[slot].Type) {
		return slot
	}
	for i, in := range inputs {
		if strings.EqualFold(string(in.Type), string(typ)) {
			return i
		}
	}
	for i, in := range inputs {
		if fits(in.Type) {
			return i
		}
	}
	return -1
}
