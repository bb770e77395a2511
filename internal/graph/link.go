package graph

// Link connects an output slot to an input slot within one graph.
// Inside a subgraph body either end may be a boundary node.
type Link struct {
	ID         LinkID
	OriginID   NodeID
	OriginSlot int
	TargetID   NodeID
	TargetSlot int
	Type       SlotType
}

// OriginIsInputNode reports whether the link starts at the subgraph input boundary.
func (l *Link) OriginIsInputNode() bool {
	return l.OriginID == InputNodeID
}

// TargetIsOutputNode reports whether the link ends at the subgraph output boundary.
func (l *Link) TargetIsOutputNode() bool {
	return l.TargetID == OutputNodeID
}

// Group is a titled rectangle around nodes. It plays no part in execution.
type Group struct {
	ID       int
	Title    string
	Bounding [4]float64
	Color    string
	FontSize int
}
