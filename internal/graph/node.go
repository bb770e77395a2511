package graph

// Node is a member of a Graph. The variants are *LeafNode and *SubgraphNode;
// callers switch on the concrete type.
type Node interface {
	Base() *NodeBase
	sealed()
}

// NodeBase holds the state shared by every node variant.
type NodeBase struct {
	ID         NodeID
	Type       string
	Title      string
	Mode       NodeMode
	Pos        [2]float64
	Size       [2]float64
	Order      int
	Flags      map[string]any
	Properties map[string]any
	Inputs     []*InputSlot
	Outputs    []*OutputSlot
	Widgets    []*Widget

	graph *Graph
	// widget values kept verbatim when the node type declares no widgets
	rawWidgetValues []any
}

// Base returns the shared node state.
func (n *NodeBase) Base() *NodeBase {
	return n
}

// Graph returns the owning graph, or nil when the node is detached.
func (n *NodeBase) Graph() *Graph {
	return n.graph
}

// DisplayTitle returns the title, falling back to the type.
func (n *NodeBase) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return n.Type
}

// InputIndex returns the index of the named input or -1.
func (n *NodeBase) InputIndex(name string) int {
	for i, in := range n.Inputs {
		if in.Name == name {
			return i
		}
	}
	return -1
}

// OutputIndex returns the index of the named output or -1.
func (n *NodeBase) OutputIndex(name string) int {
	for i, out := range n.Outputs {
		if out.Name == name {
			return i
		}
	}
	return -1
}

// Widget returns the named widget or nil.
func (n *NodeBase) Widget(name string) *Widget {
	for _, w := range n.Widgets {
		if w.Name == name {
			return w
		}
	}
	return nil
}

// WidgetFromSlot returns the widget an input is bound to, if any.
func (n *NodeBase) WidgetFromSlot(in *InputSlot) *Widget {
	if in == nil || in.Widget == nil {
		return nil
	}
	return n.Widget(in.Widget.Name)
}

// SetWidgetValue sets the value of the named widget.
func (n *NodeBase) SetWidgetValue(name string, value any) error {
	w := n.Widget(name)
	if w == nil {
		return ErrWidgetNotFound
	}
	w.Value = value
	return nil
}

// WidgetValues returns the values of all widgets in declaration order.
func (n *NodeBase) WidgetValues() []any {
	if len(n.Widgets) == 0 {
		return n.rawWidgetValues
	}
	values := make([]any, len(n.Widgets))
	for i, w := range n.Widgets {
		values[i] = w.Value
	}
	return values
}

// LeafNode is an ordinary node that executes on its own.
type LeafNode struct {
	NodeBase

	// Virtual nodes exist only in the editor and forward their inputs.
	Virtual bool
	// ApplyToGraph runs before execution for nodes that rewrite the graph.
	ApplyToGraph func(extraLinks []*Link) error
}

// NewLeafNode creates a detached node of the given type.
func NewLeafNode(typ string) *LeafNode {
	return &LeafNode{
		NodeBase: NodeBase{
			Type:       typ,
			Flags:      map[string]any{},
			Properties: map[string]any{},
		},
	}
}

func (*LeafNode) sealed() {}

// AddInput appends an input slot.
func (n *LeafNode) AddInput(name string, typ SlotType) *InputSlot {
	in := &InputSlot{Name: name, Type: typ}
	n.Inputs = append(n.Inputs, in)
	return in
}

// AddOutput appends an output slot.
func (n *LeafNode) AddOutput(name string, typ SlotType) *OutputSlot {
	out := &OutputSlot{Name: name, Type: typ}
	n.Outputs = append(n.Outputs, out)
	return out
}

// AddWidget appends a widget with no input.
func (n *LeafNode) AddWidget(name, widgetType string, value any) *Widget {
	w := &Widget{Name: name, Type: widgetType, Value: value}
	n.Widgets = append(n.Widgets, w)
	return w
}

// AddWidgetInput appends a widget together with an input bound to it, so the
// value can be supplied either inline or by a link.
func (n *LeafNode) AddWidgetInput(name string, typ SlotType, value any) (*InputSlot, *Widget) {
	w := n.AddWidget(name, string(typ), value)
	in := n.AddInput(name, typ)
	in.Widget = &WidgetRef{Name: name}
	return in, w
}
