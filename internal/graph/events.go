package graph

import (
	"github.com/zjrosen/nodegraph/internal/pubsub"
)

// Subgraph definition events. The adding and removing events are
// cancellable; the rest are informational.
const (
	EventAddingInput    pubsub.EventType = "adding-input"
	EventInputAdded     pubsub.EventType = "input-added"
	EventRemovingInput  pubsub.EventType = "removing-input"
	EventInputRemoved   pubsub.EventType = "input-removed"
	EventRenamingInput  pubsub.EventType = "renaming-input"
	EventAddingOutput   pubsub.EventType = "adding-output"
	EventOutputAdded    pubsub.EventType = "output-added"
	EventRemovingOutput pubsub.EventType = "removing-output"
	EventOutputRemoved  pubsub.EventType = "output-removed"
	EventRenamingOutput pubsub.EventType = "renaming-output"

	// A boundary input slot gained or lost an internal link.
	EventInputConnected    pubsub.EventType = "input-connected"
	EventInputDisconnected pubsub.EventType = "input-disconnected"
)

// SubgraphEvent is the payload of every subgraph definition event.
// Fields not relevant to an event are zero.
type SubgraphEvent struct {
	Subgraph *Subgraph

	// Slot is the affected boundary slot and Index its position.
	// For adding events Slot is nil and Name/Type describe the proposal.
	Slot  *BoundarySlot
	Index int
	Name  string
	Type  SlotType

	// Renames
	OldName string
	NewName string

	// Internal link events: the inner node and its input index.
	Node     Node
	NodeSlot int
}
