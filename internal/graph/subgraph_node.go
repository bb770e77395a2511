package graph

import (
	"context"
	"fmt"

	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/pubsub"
)

// SubgraphNode is an instance of a Subgraph placed in a parent graph. Its
// slots mirror the definition's declared inputs and outputs; widgets bound
// to inner inputs are promoted onto the instance.
type SubgraphNode struct {
	NodeBase

	// SerializeWidgets is true exactly when the instance has widgets.
	SerializeWidgets bool

	subgraph *Subgraph
	cancel   context.CancelFunc
}

func (*SubgraphNode) sealed() {}

// NewSubgraphNode creates an instance of sg and subscribes it to sg's events.
// A non-positive id is assigned when the node is added to a graph.
func NewSubgraphNode(sg *Subgraph, id NodeID) *SubgraphNode {
	n := &SubgraphNode{
		NodeBase: NodeBase{
			ID:         id,
			Type:       sg.ID,
			Title:      sg.Name,
			Flags:      map[string]any{},
			Properties: map[string]any{},
		},
		subgraph: sg,
	}
	n.mirror()
	n.attach()
	return n
}

// Subgraph returns the shared definition.
func (n *SubgraphNode) Subgraph() *Subgraph {
	return n.subgraph
}

// Attached reports whether the instance is listening to its definition.
func (n *SubgraphNode) Attached() bool {
	return n.cancel != nil
}

func (n *SubgraphNode) mirror() {
	n.Inputs = n.Inputs[:0]
	for _, slot := range n.subgraph.Inputs() {
		n.Inputs = append(n.Inputs, &InputSlot{Name: slot.Name, Label: slot.Label, Type: slot.Type})
	}
	n.Outputs = n.Outputs[:0]
	for _, slot := range n.subgraph.Outputs() {
		n.Outputs = append(n.Outputs, &OutputSlot{Name: slot.Name, Label: slot.Label, Type: slot.Type})
	}
}

// attach subscribes to the definition and promotes widgets for every
// existing boundary connection.
func (n *SubgraphNode) attach() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	bus := n.subgraph.Events

	bus.Subscribe(ctx, EventInputAdded, func(e *pubsub.Event[SubgraphEvent]) {
		slot := e.Payload.Slot
		in := &InputSlot{Name: slot.Name, Label: slot.Label, Type: slot.Type}
		n.Inputs = append(n.Inputs, in)
		n.listenInput(ctx, in, slot)
	})
	bus.Subscribe(ctx, EventInputRemoved, func(e *pubsub.Event[SubgraphEvent]) {
		n.dropInput(e.Payload.Index)
	})
	bus.Subscribe(ctx, EventRenamingInput, func(e *pubsub.Event[SubgraphEvent]) {
		if e.Payload.Index >= len(n.Inputs) {
			return
		}
		in := n.Inputs[e.Payload.Index]
		in.Label = e.Payload.NewName
		if w := n.WidgetFromSlot(in); w != nil {
			w.Label = e.Payload.NewName
		}
	})
	bus.Subscribe(ctx, EventOutputAdded, func(e *pubsub.Event[SubgraphEvent]) {
		slot := e.Payload.Slot
		n.Outputs = append(n.Outputs, &OutputSlot{Name: slot.Name, Label: slot.Label, Type: slot.Type})
	})
	bus.Subscribe(ctx, EventOutputRemoved, func(e *pubsub.Event[SubgraphEvent]) {
		n.dropOutput(e.Payload.Index)
	})
	bus.Subscribe(ctx, EventRenamingOutput, func(e *pubsub.Event[SubgraphEvent]) {
		if e.Payload.Index < len(n.Outputs) {
			n.Outputs[e.Payload.Index].Label = e.Payload.NewName
		}
	})

	for i, slot := range n.subgraph.Inputs() {
		if i >= len(n.Inputs) {
			break
		}
		in := n.Inputs[i]
		n.listenInput(ctx, in, slot)
		for _, l := range slot.Links() {
			inner, ok := n.subgraph.NodeByID(l.TargetID)
			if !ok {
				continue
			}
			n.promote(slot, in, inner, l.TargetSlot)
			if in.Widget != nil {
				break
			}
		}
	}
}

// listenInput tracks internal connections of one boundary input. The
// registration is revoked with the instance or when the input is dropped.
func (n *SubgraphNode) listenInput(parent context.Context, in *InputSlot, slot *BoundarySlot) {
	ctx, cancel := context.WithCancel(parent)
	in.cancel = cancel
	bus := n.subgraph.Events

	bus.Subscribe(ctx, EventInputConnected, func(e *pubsub.Event[SubgraphEvent]) {
		if e.Payload.Slot != slot {
			return
		}
		n.promote(slot, in, e.Payload.Node, e.Payload.NodeSlot)
	})
	bus.Subscribe(ctx, EventInputDisconnected, func(e *pubsub.Event[SubgraphEvent]) {
		if e.Payload.Slot != slot {
			return
		}
		if len(slot.ConnectedWidgets()) == 0 {
			n.demote(in)
		}
	})
}

// promote exposes the widget bound to input innerSlot of inner, if any, as a
// widget of this instance named after the boundary slot.
func (n *SubgraphNode) promote(slot *BoundarySlot, in *InputSlot, inner Node, innerSlot int) {
	if inner == nil || in.Widget != nil {
		return
	}
	ib := inner.Base()
	if innerSlot < 0 || innerSlot >= len(ib.Inputs) {
		return
	}
	source := ib.WidgetFromSlot(ib.Inputs[innerSlot])
	if source == nil {
		return
	}

	w := &Widget{
		Name:   slot.Name,
		Type:   source.Type,
		Value:  source.Value,
		Label:  slot.Label,
		Source: &WidgetSource{NodeID: ib.ID, WidgetName: source.Name},
	}
	pos := n.widgetPosition(in)
	n.Widgets = append(n.Widgets, nil)
	copy(n.Widgets[pos+1:], n.Widgets[pos:])
	n.Widgets[pos] = w
	in.Widget = &WidgetRef{Name: w.Name}
	n.SerializeWidgets = len(n.Widgets) > 0
	log.Debug(log.CatSubgraph, "widget promoted", "instance", n.ID, "widget", w.Name, "source", ib.ID)
}

// widgetPosition is the index in Widgets for the widget of in. Promoted
// widgets are kept in input order so widgets_values round-trips.
func (n *SubgraphNode) widgetPosition(in *InputSlot) int {
	pos := 0
	for _, other := range n.Inputs {
		if other == in {
			break
		}
		if other.Widget != nil {
			pos++
		}
	}
	if pos > len(n.Widgets) {
		pos = len(n.Widgets)
	}
	return pos
}

// demote removes the promoted widget of an input.
func (n *SubgraphNode) demote(in *InputSlot) {
	if in.Widget == nil {
		return
	}
	name := in.Widget.Name
	in.Widget = nil
	for i, w := range n.Widgets {
		if w.Name == name {
			n.Widgets = append(n.Widgets[:i], n.Widgets[i+1:]...)
			break
		}
	}
	n.SerializeWidgets = len(n.Widgets) > 0
	log.Debug(log.CatSubgraph, "widget demoted", "instance", n.ID, "widget", name)
}

func (n *SubgraphNode) dropInput(index int) {
	if index < 0 || index >= len(n.Inputs) {
		log.Warn(log.CatSubgraph, "instance out of sync on input removal", "instance", n.ID, "index", index)
		return
	}
	in := n.Inputs[index]
	n.demote(in)
	if in.cancel != nil {
		in.cancel()
		in.cancel = nil
	}
	if n.graph != nil && in.Linked() {
		n.graph.removeLinkByID(in.Link)
	}
	n.Inputs = append(n.Inputs[:index], n.Inputs[index+1:]...)
	if n.graph != nil {
		n.graph.shiftInputLinks(&n.NodeBase, index)
	}
}

func (n *SubgraphNode) dropOutput(index int) {
	if index < 0 || index >= len(n.Outputs) {
		log.Warn(log.CatSubgraph, "instance out of sync on output removal", "instance", n.ID, "index", index)
		return
	}
	if n.graph != nil {
		for _, id := range append([]LinkID(nil), n.Outputs[index].Links...) {
			n.graph.removeLinkByID(id)
		}
	}
	n.Outputs = append(n.Outputs[:index], n.Outputs[index+1:]...)
	if n.graph != nil {
		n.graph.shiftOutputLinks(&n.NodeBase, index)
	}
}

// onAdded re-syncs an instance that was removed and is being added again.
func (n *SubgraphNode) onAdded() {
	if n.Attached() {
		return
	}
	values := make(map[string]any, len(n.Widgets))
	for _, w := range n.Widgets {
		values[w.Name] = w.Value
	}
	n.Widgets = nil
	n.mirror()
	n.attach()
	for _, w := range n.Widgets {
		if v, ok := values[w.Name]; ok {
			w.Value = v
		}
	}
	n.SerializeWidgets = len(n.Widgets) > 0
}

// onRemoved revokes every registration on the definition.
func (n *SubgraphNode) onRemoved() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	n.cancel = nil
	for _, in := range n.Inputs {
		in.cancel = nil
	}
	log.Debug(log.CatSubgraph, "instance detached", "instance", n.ID, "subgraph", n.subgraph.ID)
}

// SetWidgetValue sets a promoted widget's value.
func (n *SubgraphNode) SetWidgetValue(name string, value any) error {
	if err := n.NodeBase.SetWidgetValue(name, value); err != nil {
		return fmt.Errorf("%w: %q on instance %d", err, name, n.ID)
	}
	return nil
}

// syncPromotedWidgets copies promoted values into the inner widgets they
// forward to.
func (n *SubgraphNode) syncPromotedWidgets() {
	for i, in := range n.Inputs {
		w := n.WidgetFromSlot(in)
		if w == nil || i >= len(n.subgraph.Inputs()) {
			continue
		}
		for _, inner := range n.subgraph.Inputs()[i].ConnectedWidgets() {
			inner.Value = w.Value
		}
	}
}
