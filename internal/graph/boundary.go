package graph

import (
	"fmt"

	"github.com/zjrosen/nodegraph/internal/log"
)

// BoundarySlot is a declared subgraph input or output.
type BoundarySlot struct {
	ID      string
	Name    string
	Label   string
	Type    SlotType
	LinkIDs []LinkID

	parent *BoundaryIONode
}

// Parent returns the boundary node holding the slot.
func (s *BoundarySlot) Parent() *BoundaryIONode {
	return s.parent
}

// Index returns the slot's position, or -1 once removed.
func (s *BoundarySlot) Index() int {
	if s.parent == nil {
		return -1
	}
	for i, slot := range s.parent.Slots {
		if slot == s {
			return i
		}
	}
	return -1
}

// DisplayName returns the label if set, else the name.
func (s *BoundarySlot) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// Links returns the internal links attached to the slot.
func (s *BoundarySlot) Links() []*Link {
	sg := s.parent.subgraph
	links := make([]*Link, 0, len(s.LinkIDs))
	for _, id := range s.LinkIDs {
		if l, ok := sg.Link(id); ok {
			links = append(links, l)
		}
	}
	return links
}

// ConnectedWidgets returns the inner widgets fed by an input slot.
func (s *BoundarySlot) ConnectedWidgets() []*Widget {
	sg := s.parent.subgraph
	var widgets []*Widget
	for _, l := range s.Links() {
		n, ok := sg.NodeByID(l.TargetID)
		if !ok {
			continue
		}
		base := n.Base()
		if l.TargetSlot < 0 || l.TargetSlot >= len(base.Inputs) {
			continue
		}
		if w := base.WidgetFromSlot(base.Inputs[l.TargetSlot]); w != nil {
			widgets = append(widgets, w)
		}
	}
	return widgets
}

// Connect creates the internal link between the slot and a node of the
// subgraph body. For an input slot, slot is an input of node; for an output
// slot it is an output of node.
func (s *BoundarySlot) Connect(slot int, node Node) (*Link, error) {
	if s.parent == nil || s.Index() < 0 {
		return nil, ErrSlotNotFound
	}
	if s.parent.IsInput() {
		return s.connectInput(slot, node)
	}
	return s.connectOutput(slot, node)
}

func (s *BoundarySlot) connectInput(slot int, node Node) (*Link, error) {
	sg := s.parent.subgraph
	base := node.Base()
	if base.graph != &sg.Graph {
		return nil, fmt.Errorf("%w: %d is not in subgraph %s", ErrNodeNotFound, base.ID, sg.ID)
	}
	if slot < 0 || slot >= len(base.Inputs) {
		return nil, fmt.Errorf("%w: input %d on node %d", ErrInvalidSlot, slot, base.ID)
	}

	in := base.Inputs[slot]
	if !IsValidConnection(s.Type, in.Type) {
		log.Warn(log.CatLink, "connection skipped",
			"subgraph_input", s.Name, "origin_type", s.Type, "target", base.ID, "target_type", in.Type)
		return nil, fmt.Errorf("%w: %s -> %s", ErrConnectionSkipped, s.Type, in.Type)
	}
	if in.Linked() {
		sg.removeLinkByID(in.Link)
	}

	index := s.Index()
	link := sg.newLink(InputNodeID, index, base.ID, slot, in.Type)
	s.LinkIDs = append(s.LinkIDs, link.ID)
	in.Link = link.ID

	sg.Events.Publish(EventInputConnected, SubgraphEvent{
		Subgraph: sg,
		Slot:     s,
		Index:    index,
		Node:     node,
		NodeSlot: slot,
	})
	return link, nil
}

func (s *BoundarySlot) connectOutput(slot int, node Node) (*Link, error) {
	sg := s.parent.subgraph
	base := node.Base()
	if base.graph != &sg.Graph {
		return nil, fmt.Errorf("%w: %d is not in subgraph %s", ErrNodeNotFound, base.ID, sg.ID)
	}
	if slot < 0 || slot >= len(base.Outputs) {
		return nil, fmt.Errorf("%w: output %d on node %d", ErrInvalidSlot, slot, base.ID)
	}

	out := base.Outputs[slot]
	if !IsValidConnection(out.Type, s.Type) {
		log.Warn(log.CatLink, "connection skipped",
			"origin", base.ID, "origin_type", out.Type, "subgraph_output", s.Name, "target_type", s.Type)
		return nil, fmt.Errorf("%w: %s -> %s", ErrConnectionSkipped, out.Type, s.Type)
	}

	// An output slot has a single producer.
	for _, id := range append([]LinkID(nil), s.LinkIDs...) {
		sg.removeLinkByID(id)
	}

	link := sg.newLink(base.ID, slot, OutputNodeID, s.Index(), out.Type)
	out.Links = append(out.Links, link.ID)
	s.LinkIDs = append(s.LinkIDs, link.ID)
	return link, nil
}

// ConnectFromInput links boundary input slot src straight to boundary output
// slot s, passing the value through the subgraph untouched.
func (s *BoundarySlot) ConnectFromInput(src *BoundarySlot) (*Link, error) {
	if s.parent == nil || src.parent == nil || s.parent.IsInput() || !src.parent.IsInput() ||
		s.parent.subgraph != src.parent.subgraph {
		return nil, ErrInvalidSlot
	}
	sg := s.parent.subgraph
	if !IsValidConnection(src.Type, s.Type) {
		log.Warn(log.CatLink, "connection skipped",
			"subgraph_input", src.Name, "origin_type", src.Type, "subgraph_output", s.Name, "target_type", s.Type)
		return nil, fmt.Errorf("%w: %s -> %s", ErrConnectionSkipped, src.Type, s.Type)
	}
	for _, id := range append([]LinkID(nil), s.LinkIDs...) {
		sg.removeLinkByID(id)
	}

	link := sg.newLink(InputNodeID, src.Index(), OutputNodeID, s.Index(), src.Type)
	src.LinkIDs = append(src.LinkIDs, link.ID)
	s.LinkIDs = append(s.LinkIDs, link.ID)
	return link, nil
}

// Disconnect removes every internal link attached to the slot.
func (s *BoundarySlot) Disconnect() {
	if s.parent == nil {
		return
	}
	sg := s.parent.subgraph
	for _, id := range append([]LinkID(nil), s.LinkIDs...) {
		sg.removeLinkByID(id)
	}
}

// BoundaryIONode is one of the two virtual nodes of a subgraph body.
type BoundaryIONode struct {
	ID       NodeID
	Slots    []*BoundarySlot
	Bounding [4]float64

	subgraph *Subgraph
}

// IsInput reports whether this is the input boundary.
func (n *BoundaryIONode) IsInput() bool {
	return n.ID == InputNodeID
}

// Subgraph returns the owning definition.
func (n *BoundaryIONode) Subgraph() *Subgraph {
	return n.subgraph
}

func (n *BoundaryIONode) slot(index int) *BoundarySlot {
	if index < 0 || index >= len(n.Slots) {
		return nil
	}
	return n.Slots[index]
}
