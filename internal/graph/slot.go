package graph

import (
	"context"
)

// WidgetRef binds an input slot to a widget of the same node.
type WidgetRef struct {
	Name string `json:"name"`
}

// InputSlot is a node input.
type InputSlot struct {
	Name   string
	Label  string
	Type   SlotType
	Link   LinkID
	Widget *WidgetRef

	// cancel revokes the boundary listeners of a SubgraphNode input.
	cancel context.CancelFunc
}

// Linked reports whether the input has an incoming link.
func (s *InputSlot) Linked() bool {
	return s.Link != NoLink
}

// DisplayName returns the label if set, else the name.
func (s *InputSlot) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// OutputSlot is a node output. An output may feed any number of links.
type OutputSlot struct {
	Name  string
	Label string
	Type  SlotType
	Links []LinkID
}

// DisplayName returns the label if set, else the name.
func (s *OutputSlot) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// Widget is an editable value on a node.
type Widget struct {
	Name  string
	Type  string
	Value any
	Label string

	// Source is set on widgets promoted onto a SubgraphNode and names the
	// inner widget the value forwards to.
	Source *WidgetSource
}

// WidgetSource locates a widget inside a subgraph body.
type WidgetSource struct {
	NodeID     NodeID
	WidgetName string
}

// Promoted reports whether the widget forwards to an inner widget.
func (w *Widget) Promoted() bool {
	return w.Source != nil
}

func removeLinkID(ids []LinkID, id LinkID) []LinkID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
