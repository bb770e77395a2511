package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/pubsub"
)

// SubgraphVersion is the definition format version written by Export.
const SubgraphVersion = 1

// ExposedWidget names an inner widget surfaced by a definition.
type ExposedWidget struct {
	ID   NodeID `json:"id"`
	Name string `json:"name"`
}

// Subgraph is a reusable graph definition with declared inputs and outputs.
// Its slot lists change only through the Add, Remove and Rename methods,
// which announce every change on Events.
type Subgraph struct {
	Graph

	ID      string
	Name    string
	Version int
	Widgets []ExposedWidget

	InputNode  *BoundaryIONode
	OutputNode *BoundaryIONode
	Events     *pubsub.Bus[SubgraphEvent]
}

// NewSubgraph creates an empty definition belonging to root's document.
// It is not registered; see Graph.CreateSubgraph.
func NewSubgraph(root *Graph, name string) *Subgraph {
	return newSubgraph(root, uuid.NewString(), name)
}

func newSubgraph(root *Graph, id, name string) *Subgraph {
	sg := &Subgraph{
		Graph:   *newGraph(),
		ID:      id,
		Name:    name,
		Version: SubgraphVersion,
	}
	sg.root = root.Root()
	sg.subgraph = sg
	sg.InputNode = &BoundaryIONode{ID: InputNodeID, subgraph: sg}
	sg.OutputNode = &BoundaryIONode{ID: OutputNodeID, subgraph: sg}
	sg.Events = pubsub.NewBus[SubgraphEvent](pubsub.WithPanicHandler(func(t pubsub.EventType, err error) {
		log.ErrorErr(log.CatEvents, "subgraph listener panicked", err, "event", t, "subgraph", id)
	}))
	return sg
}

// CreateSubgraph creates a definition and registers it with the document.
func (g *Graph) CreateSubgraph(name string) (*Subgraph, error) {
	sg := NewSubgraph(g, name)
	if err := g.Registry().AddSubgraph(sg); err != nil {
		return nil, err
	}
	return sg, nil
}

// Inputs returns the declared inputs. The slice is shared with InputNode.
func (s *Subgraph) Inputs() []*BoundarySlot {
	return s.InputNode.Slots
}

// Outputs returns the declared outputs. The slice is shared with OutputNode.
func (s *Subgraph) Outputs() []*BoundarySlot {
	return s.OutputNode.Slots
}

// AddInput declares a new input. Returns ErrMutationCancelled if a listener
// vetoes the adding-input event.
func (s *Subgraph) AddInput(name string, typ SlotType) (*BoundarySlot, error) {
	return s.addSlot(s.InputNode, name, typ, EventAddingInput, EventInputAdded)
}

// AddOutput declares a new output.
func (s *Subgraph) AddOutput(name string, typ SlotType) (*BoundarySlot, error) {
	return s.addSlot(s.OutputNode, name, typ, EventAddingOutput, EventOutputAdded)
}

func (s *Subgraph) addSlot(io *BoundaryIONode, name string, typ SlotType, before, after pubsub.EventType) (*BoundarySlot, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSlot)
	}
	if !s.Events.Dispatch(before, SubgraphEvent{Subgraph: s, Name: name, Type: typ, Index: len(io.Slots)}) {
		return nil, fmt.Errorf("%w: %s %q", ErrMutationCancelled, before, name)
	}

	slot := &BoundarySlot{ID: uuid.NewString(), Name: name, Type: typ, parent: io}
	io.Slots = append(io.Slots, slot)
	log.Debug(log.CatSubgraph, "slot added", "subgraph", s.ID, "slot", name, "type", typ)

	s.Events.Publish(after, SubgraphEvent{Subgraph: s, Slot: slot, Index: len(io.Slots) - 1, Name: name, Type: typ})
	return slot, nil
}

// RemoveInput removes a declared input after severing its links.
func (s *Subgraph) RemoveInput(slot *BoundarySlot) error {
	return s.removeSlot(s.InputNode, slot, EventRemovingInput, EventInputRemoved)
}

// RemoveOutput removes a declared output after severing its links.
func (s *Subgraph) RemoveOutput(slot *BoundarySlot) error {
	return s.removeSlot(s.OutputNode, slot, EventRemovingOutput, EventOutputRemoved)
}

func (s *Subgraph) removeSlot(io *BoundaryIONode, slot *BoundarySlot, before, after pubsub.EventType) error {
	index := indexOfSlot(io.Slots, slot)
	if index < 0 {
		return ErrSlotNotFound
	}
	payload := SubgraphEvent{Subgraph: s, Slot: slot, Index: index, Name: slot.Name, Type: slot.Type}
	if !s.Events.Dispatch(before, payload) {
		return fmt.Errorf("%w: %s %q", ErrMutationCancelled, before, slot.Name)
	}

	slot.Disconnect()
	io.Slots = append(io.Slots[:index], io.Slots[index+1:]...)

	// Links on later slots move down by one.
	for i := index; i < len(io.Slots); i++ {
		for _, id := range io.Slots[i].LinkIDs {
			l, ok := s.links[id]
			if !ok {
				continue
			}
			if io.IsInput() {
				l.OriginSlot = i
			} else {
				l.TargetSlot = i
			}
		}
	}
	slot.parent = nil
	log.Debug(log.CatSubgraph, "slot removed", "subgraph", s.ID, "slot", slot.Name)

	s.Events.Publish(after, payload)
	return nil
}

// RenameInput changes the display label of an input. The name is stable.
func (s *Subgraph) RenameInput(slot *BoundarySlot, newName string) error {
	return s.renameSlot(s.InputNode, slot, newName, EventRenamingInput)
}

// RenameOutput changes the display label of an output.
func (s *Subgraph) RenameOutput(slot *BoundarySlot, newName string) error {
	return s.renameSlot(s.OutputNode, slot, newName, EventRenamingOutput)
}

func (s *Subgraph) renameSlot(io *BoundaryIONode, slot *BoundarySlot, newName string, event pubsub.EventType) error {
	index := indexOfSlot(io.Slots, slot)
	if index < 0 {
		return ErrSlotNotFound
	}
	s.Events.Publish(event, SubgraphEvent{
		Subgraph: s,
		Slot:     slot,
		Index:    index,
		Name:     slot.Name,
		Type:     slot.Type,
		OldName:  slot.DisplayName(),
		NewName:  newName,
	})
	slot.Label = newName
	return nil
}

// Instances returns every SubgraphNode of this definition reachable from the
// document root.
func (s *Subgraph) Instances() []*SubgraphNode {
	var found []*SubgraphNode
	seen := map[*Graph]bool{}
	var walk func(g *Graph)
	walk = func(g *Graph) {
		if seen[g] {
			return
		}
		seen[g] = true
		for _, n := range g.nodes {
			sn, ok := n.(*SubgraphNode)
			if !ok {
				continue
			}
			if sn.subgraph == s {
				found = append(found, sn)
			}
			walk(&sn.subgraph.Graph)
		}
	}
	walk(s.Root())
	return found
}

func indexOfSlot(slots []*BoundarySlot, slot *BoundarySlot) int {
	for i, s := range slots {
		if s == slot {
			return i
		}
	}
	return -1
}
