package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/nodegraph/internal/pubsub"
)

func TestSubgraph_AddInputUpdatesEveryInstance(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	a := NewSubgraphNode(sg, 1)
	b := NewSubgraphNode(sg, 2)
	mustAdd(t, root, a)
	mustAdd(t, root, b)

	slot := mustInput(t, sg, "x", "number")

	require.Len(t, sg.Inputs(), 1)
	require.Len(t, sg.InputNode.Slots, 1)
	require.NotEmpty(t, slot.ID)
	for _, inst := range []*SubgraphNode{a, b} {
		require.Len(t, inst.Inputs, 1)
		require.Equal(t, "x", inst.Inputs[0].Name)
		require.Equal(t, SlotType("number"), inst.Inputs[0].Type)
	}
}

func TestSubgraph_AddOutputUpdatesEveryInstance(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	mustOutput(t, sg, "image", "IMAGE")
	require.Len(t, sg.Outputs(), 1)
	require.Len(t, inst.Outputs, 1)
	require.Equal(t, "image", inst.Outputs[0].Name)
}

func TestSubgraph_AddInputRequiresName(t *testing.T) {
	sg := mustSubgraph(t, New(nil), "body")
	_, err := sg.AddInput("", "number")
	require.ErrorIs(t, err, ErrInvalidSlot)
}

func TestSubgraph_AddInputCancelled(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	sg.Events.Subscribe(context.Background(), EventAddingInput, func(e *pubsub.Event[SubgraphEvent]) {
		require.Equal(t, "blocked", e.Payload.Name)
		e.PreventDefault()
	})

	_, err := sg.AddInput("blocked", "number")
	require.ErrorIs(t, err, ErrMutationCancelled)
	require.Empty(t, sg.Inputs())
	require.Empty(t, inst.Inputs)
}

func TestSubgraph_RemoveInputSymmetry(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	keep := mustInput(t, sg, "keep", "number")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)
	before := len(inst.Inputs)

	slot := mustInput(t, sg, "x", "number")
	require.Len(t, inst.Inputs, before+1)

	require.NoError(t, sg.RemoveInput(slot))
	require.Len(t, inst.Inputs, before)
	require.Equal(t, []*BoundarySlot{keep}, sg.Inputs())
	require.Equal(t, -1, slot.Index())
	require.ErrorIs(t, sg.RemoveInput(slot), ErrSlotNotFound)
}

func TestSubgraph_RemoveInputSeversLinks(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	first := mustInput(t, sg, "first", "IMAGE")
	second := mustInput(t, sg, "second", "IMAGE")

	innerA, innerB := newSink("IMAGE"), newSink("IMAGE")
	mustAdd(t, &sg.Graph, innerA)
	mustAdd(t, &sg.Graph, innerB)
	_, err := first.Connect(0, innerA)
	require.NoError(t, err)
	secondLink, err := second.Connect(0, innerB)
	require.NoError(t, err)

	inst := NewSubgraphNode(sg, 5)
	mustAdd(t, root, inst)
	srcA, srcB := newSource("IMAGE"), newSource("IMAGE")
	mustAdd(t, root, srcA)
	mustAdd(t, root, srcB)
	_, err = root.Connect(srcA, 0, inst, 0)
	require.NoError(t, err)
	outerSecond, err := root.Connect(srcB, 0, inst, 1)
	require.NoError(t, err)

	require.NoError(t, sg.RemoveInput(first))

	// Internal link gone, later boundary link shifted down.
	require.False(t, innerA.Inputs[0].Linked())
	require.Len(t, sg.Links(), 1)
	require.Equal(t, 0, secondLink.OriginSlot)

	// External link gone, later instance link shifted down.
	require.Len(t, inst.Inputs, 1)
	require.Empty(t, srcA.Outputs[0].Links)
	require.Len(t, root.Links(), 1)
	require.Equal(t, 0, outerSecond.TargetSlot)
	require.Equal(t, outerSecond.ID, inst.Inputs[0].Link)
}

func TestSubgraph_RemoveOutputSeversLinks(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	out0 := mustOutput(t, sg, "a", "IMAGE")
	out1 := mustOutput(t, sg, "b", "IMAGE")
	producer := newSource("IMAGE")
	mustAdd(t, &sg.Graph, producer)
	_, err := out0.Connect(0, producer)
	require.NoError(t, err)
	inner1, err := out1.Connect(0, producer)
	require.NoError(t, err)

	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)
	sinkA, sinkB := newSink("IMAGE"), newSink("IMAGE")
	mustAdd(t, root, sinkA)
	mustAdd(t, root, sinkB)
	_, err = root.Connect(inst, 0, sinkA, 0)
	require.NoError(t, err)
	outer1, err := root.Connect(inst, 1, sinkB, 0)
	require.NoError(t, err)

	require.NoError(t, sg.RemoveOutput(out0))

	require.Len(t, inst.Outputs, 1)
	require.False(t, sinkA.Inputs[0].Linked())
	require.Equal(t, 0, outer1.OriginSlot)
	require.Equal(t, 0, inner1.TargetSlot)
	require.Equal(t, []LinkID{inner1.ID}, producer.Outputs[0].Links)
}

func TestSubgraph_RemoveInputCancelled(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	slot := mustInput(t, sg, "x", "number")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	sg.Events.Subscribe(context.Background(), EventRemovingInput, func(e *pubsub.Event[SubgraphEvent]) {
		e.PreventDefault()
	})

	require.ErrorIs(t, sg.RemoveInput(slot), ErrMutationCancelled)
	require.Equal(t, []*BoundarySlot{slot}, sg.Inputs())
	require.Len(t, inst.Inputs, 1)
}

func TestSubgraph_ListenerIsolation(t *testing.T) {
	captureLog(t)
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	calls := make([]int, 3)
	sg.Events.Subscribe(context.Background(), EventInputAdded, func(*pubsub.Event[SubgraphEvent]) {
		calls[0]++
		panic(errors.New("listener failure"))
	})
	sg.Events.Subscribe(context.Background(), EventInputAdded, func(*pubsub.Event[SubgraphEvent]) { calls[1]++ })
	sg.Events.Subscribe(context.Background(), EventInputAdded, func(*pubsub.Event[SubgraphEvent]) { calls[2]++ })

	_, err := sg.AddInput("x", "number")
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 1}, calls)
	require.Len(t, inst.Inputs, 1, "instance sync still applied")
}

func TestSubgraph_ListenerPanicIsLogged(t *testing.T) {
	buf := captureLog(t)
	sg := mustSubgraph(t, New(nil), "body")
	sg.Events.Subscribe(context.Background(), EventInputAdded, func(*pubsub.Event[SubgraphEvent]) {
		panic("bad handler")
	})

	_, err := sg.AddInput("x", "number")
	require.NoError(t, err)
	require.Contains(t, buf.String(), "[ERROR] [events] subgraph listener panicked")
	require.Contains(t, buf.String(), "error=bad handler")
}

func TestSubgraph_RenameChangesLabelOnly(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	in := mustInput(t, sg, "x", "number")
	out := mustOutput(t, sg, "y", "IMAGE")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	var got SubgraphEvent
	sg.Events.Subscribe(context.Background(), EventRenamingInput, func(e *pubsub.Event[SubgraphEvent]) {
		got = e.Payload
	})

	require.NoError(t, sg.RenameInput(in, "Seed"))
	require.NoError(t, sg.RenameOutput(out, "Picture"))

	require.Equal(t, "x", got.OldName)
	require.Equal(t, "Seed", got.NewName)
	require.Equal(t, "x", in.Name)
	require.Equal(t, "Seed", in.Label)
	require.Equal(t, "x", inst.Inputs[0].Name)
	require.Equal(t, "Seed", inst.Inputs[0].Label)
	require.Equal(t, "Seed", inst.Inputs[0].DisplayName())
	require.Equal(t, "y", inst.Outputs[0].Name)
	require.Equal(t, "Picture", inst.Outputs[0].Label)

	require.ErrorIs(t, sg.RenameInput(&BoundarySlot{Name: "stray"}, "z"), ErrSlotNotFound)
}

func TestSubgraph_RemovedInstanceStopsSyncing(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	mustInput(t, sg, "x", "number")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	require.NoError(t, root.Remove(inst))
	require.False(t, inst.Attached())

	mustInput(t, sg, "y", "number")
	require.Len(t, inst.Inputs, 1, "detached instance must not react")
	require.Zero(t, sg.Events.SubscriberCount(EventInputAdded))
}

func TestSubgraph_NoHandlerAccumulation(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	mustInput(t, sg, "x", "number")

	for i := 0; i < 50; i++ {
		inst := NewSubgraphNode(sg, 0)
		mustAdd(t, root, inst)
		require.NoError(t, root.Remove(inst))
	}

	require.Zero(t, sg.Events.Len())
}

func TestSubgraph_ReAddResyncs(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	mustInput(t, sg, "x", "number")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)
	require.NoError(t, root.Remove(inst))

	mustInput(t, sg, "y", "number")
	mustAdd(t, root, inst)

	require.True(t, inst.Attached())
	require.Len(t, inst.Inputs, 2)
	require.Equal(t, "y", inst.Inputs[1].Name)

	mustInput(t, sg, "z", "number")
	require.Len(t, inst.Inputs, 3)
}

func TestSubgraph_Instances(t *testing.T) {
	root := New(nil)
	inner := mustSubgraph(t, root, "inner")
	outer := mustSubgraph(t, root, "outer")
	nested := NewSubgraphNode(inner, 1)
	mustAdd(t, &outer.Graph, nested)
	top := NewSubgraphNode(inner, 2)
	mustAdd(t, root, top)
	mustAdd(t, root, NewSubgraphNode(outer, 3))

	require.ElementsMatch(t, []*SubgraphNode{nested, top}, inner.Instances())
}

func TestBoundarySlot_ConnectTypeMismatch(t *testing.T) {
	buf := captureLog(t)
	sg := mustSubgraph(t, New(nil), "body")
	slot := mustInput(t, sg, "image", "IMAGE")
	sink := newSink("LATENT")
	mustAdd(t, &sg.Graph, sink)

	link, err := slot.Connect(0, sink)
	require.ErrorIs(t, err, ErrConnectionSkipped)
	require.Nil(t, link)
	require.Empty(t, slot.LinkIDs)
	require.Empty(t, sg.Links())
	require.Contains(t, buf.String(), "origin_type=IMAGE target_type=LATENT")
}

func TestBoundarySlot_WildcardAcceptsAnything(t *testing.T) {
	sg := mustSubgraph(t, New(nil), "body")
	slot := mustInput(t, sg, "any", AnyType)
	sink := newSink("LATENT")
	mustAdd(t, &sg.Graph, sink)

	link, err := slot.Connect(0, sink)
	require.NoError(t, err)
	require.True(t, link.OriginIsInputNode())
	require.Equal(t, []*Link{link}, slot.Links())
}

func TestBoundarySlot_ConnectRejectsForeignNode(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	slot := mustInput(t, sg, "x", "IMAGE")
	outside := newSink("IMAGE")
	mustAdd(t, root, outside)

	_, err := slot.Connect(0, outside)
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBoundarySlot_OutputHasSingleProducer(t *testing.T) {
	sg := mustSubgraph(t, New(nil), "body")
	out := mustOutput(t, sg, "image", "IMAGE")
	a, b := newSource("IMAGE"), newSource("IMAGE")
	mustAdd(t, &sg.Graph, a)
	mustAdd(t, &sg.Graph, b)

	_, err := out.Connect(0, a)
	require.NoError(t, err)
	second, err := out.Connect(0, b)
	require.NoError(t, err)

	require.Equal(t, []LinkID{second.ID}, out.LinkIDs)
	require.Empty(t, a.Outputs[0].Links)
	require.True(t, second.TargetIsOutputNode())
}

func TestBoundarySlot_PassThrough(t *testing.T) {
	sg := mustSubgraph(t, New(nil), "body")
	in := mustInput(t, sg, "x", "IMAGE")
	out := mustOutput(t, sg, "y", "IMAGE")

	link, err := out.ConnectFromInput(in)
	require.NoError(t, err)
	require.True(t, link.OriginIsInputNode())
	require.True(t, link.TargetIsOutputNode())
	require.Equal(t, []LinkID{link.ID}, in.LinkIDs)

	in.Disconnect()
	require.Empty(t, out.LinkIDs)
	require.Empty(t, sg.Links())

	_, err = in.ConnectFromInput(out)
	require.ErrorIs(t, err, ErrInvalidSlot)
}
