package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zjrosen/nodegraph/internal/graph"
)

// Sentinel errors. Typed errors below wrap one of these.
var (
	ErrSlotIndex         = errors.New("slot index out of range")
	ErrInvalidLink       = errors.New("invalid link")
	ErrCircularReference = errors.New("circular reference detected")
	ErrMaxDepthExceeded  = errors.New("maximum subgraph nesting depth exceeded")
)

// SlotIndexError reports a slot index that does not exist on a node.
type SlotIndexError struct {
	Node      ExecutionID
	Slot      int
	Direction Direction
}

func (e *SlotIndexError) Error() string {
	return fmt.Sprintf("%s slot %d does not exist on node %s", e.Direction, e.Slot, e.Node)
}

func (e *SlotIndexError) Unwrap() error { return ErrSlotIndex }

// InvalidLinkError reports a link that cannot be followed.
type InvalidLinkError struct {
	Node   ExecutionID
	Link   graph.LinkID
	Reason string
}

func (e *InvalidLinkError) Error() string {
	return fmt.Sprintf("invalid link %d on node %s: %s", e.Link, e.Node, e.Reason)
}

func (e *InvalidLinkError) Unwrap() error { return ErrInvalidLink }

// CircularReferenceError reports a subgraph instance nested inside itself.
type CircularReferenceError struct {
	Instance   ExecutionID
	SubgraphID string
	Path       []graph.NodeID
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular reference detected: instance %s of subgraph %s at path [%s] contains itself (infinite loop in the subgraph hierarchy)",
		e.Instance, e.SubgraphID, joinPath(e.Path))
}

func (e *CircularReferenceError) Unwrap() error { return ErrCircularReference }

// RecursionError reports a resolution chain that revisits a slot.
type RecursionError struct {
	Node      ExecutionID
	Direction Direction
	Slot      int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("infinite recursion resolving %s slot %d of node %s", e.Direction, e.Slot, e.Node)
}

func (e *RecursionError) Unwrap() error { return ErrCircularReference }

func joinPath(path []graph.NodeID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return strings.Join(parts, ":")
}
