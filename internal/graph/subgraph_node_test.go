package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// samplerSubgraph builds a definition with input seed:number wired to the
// seed widget of a sampler with id 7.
func samplerSubgraph(t *testing.T, root *Graph) (*Subgraph, *LeafNode, *BoundarySlot) {
	t.Helper()
	sg := mustSubgraph(t, root, "sampler")
	seed := mustInput(t, sg, "seed", "number")
	sampler := newSampler(42)
	sampler.ID = 7
	mustAdd(t, &sg.Graph, sampler)
	_, err := seed.Connect(0, sampler)
	require.NoError(t, err)
	return sg, sampler, seed
}

func TestSubgraphNode_PromotesBoundWidget(t *testing.T) {
	root := New(nil)
	sg, sampler, _ := samplerSubgraph(t, root)

	inst := NewSubgraphNode(sg, 3)
	mustAdd(t, root, inst)

	require.Len(t, inst.Widgets, 1)
	w := inst.Widgets[0]
	require.Equal(t, "seed", w.Name)
	require.Equal(t, 42, w.Value)
	require.True(t, w.Promoted())
	require.Equal(t, &WidgetSource{NodeID: sampler.ID, WidgetName: "seed"}, w.Source)
	require.True(t, inst.SerializeWidgets)
	require.Same(t, w, inst.WidgetFromSlot(inst.Inputs[0]))
}

func TestSubgraphNode_PromotesOnLaterConnection(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	seed := mustInput(t, sg, "seed", "number")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)
	require.Empty(t, inst.Widgets)
	require.False(t, inst.SerializeWidgets)

	sampler := newSampler(5)
	mustAdd(t, &sg.Graph, sampler)
	_, err := seed.Connect(0, sampler)
	require.NoError(t, err)

	require.Len(t, inst.Widgets, 1)
	require.True(t, inst.SerializeWidgets)
}

func TestSubgraphNode_UnboundInputIsNotPromoted(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	model := mustInput(t, sg, "model", "MODEL")
	sampler := newSampler(1)
	mustAdd(t, &sg.Graph, sampler)
	_, err := model.Connect(1, sampler)
	require.NoError(t, err)

	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)
	require.Empty(t, inst.Widgets)
	require.False(t, inst.SerializeWidgets)
}

func TestSubgraphNode_DemotesWhenDisconnected(t *testing.T) {
	root := New(nil)
	sg, sampler, seed := samplerSubgraph(t, root)
	inst := NewSubgraphNode(sg, 3)
	mustAdd(t, root, inst)
	require.True(t, inst.SerializeWidgets)

	require.NoError(t, sg.DisconnectInput(sampler, 0))

	require.Empty(t, inst.Widgets)
	require.False(t, inst.SerializeWidgets)
	require.Nil(t, inst.Inputs[0].Widget)
	require.Empty(t, seed.LinkIDs)
}

func TestSubgraphNode_KeepsWidgetWhileAnotherConnectionRemains(t *testing.T) {
	root := New(nil)
	sg, sampler, seed := samplerSubgraph(t, root)
	second := newSampler(8)
	mustAdd(t, &sg.Graph, second)
	_, err := seed.Connect(0, second)
	require.NoError(t, err)

	inst := NewSubgraphNode(sg, 3)
	mustAdd(t, root, inst)
	require.NoError(t, sg.DisconnectInput(sampler, 0))

	require.Len(t, inst.Widgets, 1)
	require.True(t, inst.SerializeWidgets)
}

func TestSubgraphNode_DemotesWhenInputRemoved(t *testing.T) {
	root := New(nil)
	sg, _, seed := samplerSubgraph(t, root)
	inst := NewSubgraphNode(sg, 3)
	mustAdd(t, root, inst)

	require.NoError(t, sg.RemoveInput(seed))
	require.Empty(t, inst.Inputs)
	require.Empty(t, inst.Widgets)
	require.False(t, inst.SerializeWidgets)
}

func TestSubgraphNode_NestedPromotion(t *testing.T) {
	root := New(nil)
	inner, _, _ := samplerSubgraph(t, root)

	outer := mustSubgraph(t, root, "outer")
	outerSeed := mustInput(t, outer, "seed", "number")
	innerInstance := NewSubgraphNode(inner, 4)
	mustAdd(t, &outer.Graph, innerInstance)
	require.True(t, innerInstance.SerializeWidgets)

	_, err := outerSeed.Connect(0, innerInstance)
	require.NoError(t, err)

	outerInstance := NewSubgraphNode(outer, 9)
	mustAdd(t, root, outerInstance)
	require.Len(t, outerInstance.Widgets, 1)
	require.True(t, outerInstance.SerializeWidgets)
	require.Equal(t, 42, outerInstance.Widgets[0].Value)
	require.Equal(t, &WidgetSource{NodeID: 4, WidgetName: "seed"}, outerInstance.Widgets[0].Source)

	// Demotion at the outer level only affects the outer instance.
	require.NoError(t, outer.DisconnectInput(innerInstance, 0))
	require.Empty(t, outerInstance.Widgets)
	require.False(t, outerInstance.SerializeWidgets)
	require.True(t, innerInstance.SerializeWidgets)
}

func TestSubgraphNode_SerializeWidgetValues(t *testing.T) {
	root := New(nil)
	sg, sampler, _ := samplerSubgraph(t, root)
	inst := NewSubgraphNode(sg, 3)
	mustAdd(t, root, inst)

	require.NoError(t, inst.SetWidgetValue("seed", 99))
	sn := inst.Serialize()

	require.Equal(t, []any{99}, sn.WidgetsValues)
	require.Equal(t, sg.ID, sn.Type)
	require.Equal(t, NodeID(3), sn.ID)
	require.Equal(t, 99, sampler.Widget("seed").Value, "value written through to the inner widget")
	require.Equal(t, [][2]string{{"7", "seed"}}, sn.Properties["proxyWidgets"])

	require.ErrorIs(t, inst.SetWidgetValue("missing", 1), ErrWidgetNotFound)
}

func TestSubgraphNode_SerializeWithoutWidgets(t *testing.T) {
	root := New(nil)
	sg := mustSubgraph(t, root, "body")
	mustInput(t, sg, "image", "IMAGE")
	inst := NewSubgraphNode(sg, 1)
	mustAdd(t, root, inst)

	sn := inst.Serialize()
	require.Nil(t, sn.WidgetsValues)
	require.NotContains(t, sn.Properties, "proxyWidgets")
	require.Len(t, sn.Inputs, 1)
	require.Nil(t, sn.Inputs[0].Link)
}

func TestSubgraphNode_NestedSerializeWritesThrough(t *testing.T) {
	root := New(nil)
	inner, sampler, _ := samplerSubgraph(t, root)
	outer := mustSubgraph(t, root, "outer")
	outerSeed := mustInput(t, outer, "seed", "number")
	innerInstance := NewSubgraphNode(inner, 4)
	mustAdd(t, &outer.Graph, innerInstance)
	_, err := outerSeed.Connect(0, innerInstance)
	require.NoError(t, err)
	outerInstance := NewSubgraphNode(outer, 9)
	mustAdd(t, root, outerInstance)

	require.NoError(t, outerInstance.SetWidgetValue("seed", 7))
	wf := root.Serialize()

	require.Equal(t, []any{7}, wf.Nodes[0].WidgetsValues)
	require.Equal(t, 7, innerInstance.Widget("seed").Value)
	require.Equal(t, 7, sampler.Widget("seed").Value)
}
