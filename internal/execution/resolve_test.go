package execution

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/testutil"
)

func lookup(t *testing.T, p *Program, id ExecutionID) *ExecutableNode {
	t.Helper()
	n, ok := p.Lookup(id)
	require.True(t, ok, "node %s", id)
	return n
}

func TestResolveInput_SamplerWorkflow(t *testing.T) {
	p := flatten(t, testutil.SamplerWorkflow(t).Build())
	sampler := lookup(t, p, "3:7")

	seed, err := sampler.ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("3:7"), seed.OriginID)
	require.Same(t, sampler, seed.Node)
	require.Equal(t, -1, seed.OriginSlot)
	require.Equal(t, &WidgetValue{Name: "seed", Value: 42}, seed.Widget)

	model, err := sampler.ResolveInput(1)
	require.NoError(t, err)
	require.Nil(t, model.Widget)
	require.Equal(t, ExecutionID("1"), model.OriginID)
	require.Equal(t, 0, model.OriginSlot)

	latent, err := sampler.ResolveInput(2)
	require.NoError(t, err)
	require.Nil(t, latent, "unconnected input without widget has no producer")

	sink, err := lookup(t, p, "9").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("3:7"), sink.OriginID)
	require.Same(t, sampler, sink.Node)
}

func TestResolveInput_PromotedValueChange(t *testing.T) {
	b := testutil.SamplerWorkflow(t)
	group := b.SubgraphNode("group")
	require.NoError(t, group.SetWidgetValue("seed", 99))

	p := flatten(t, b.Build())
	seed, err := lookup(t, p, "3:7").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, 99, seed.Widget.Value)

	wf := b.Build().Serialize()
	for _, n := range wf.Nodes {
		if n.ID == 3 {
			require.Equal(t, []any{99}, n.WidgetsValues)
		}
	}
}

func TestResolveInput_NestedPromotion(t *testing.T) {
	b := testutil.NewBuilder(t)
	inner := b.Subgraph("inner").
		Input("seed", "INT").
		Node("sampler", testutil.Sampler(42), testutil.ID(99)).
		LinkIn("seed", "sampler", 0).
		Done()
	outer := b.Subgraph("outer").
		Input("seed", "INT").
		Instance("mid", inner, testutil.ID(5)).
		LinkIn("seed", "mid", 0).
		Done()
	b.Instance("top", outer, testutil.ID(10))
	require.NoError(t, b.SubgraphNode("top").SetWidgetValue("seed", 7))

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "10:5:99").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("10:5"), r.OriginID, "origin is the instance that read the outer widget")
	require.Equal(t, 7, r.Widget.Value)
}

func TestResolveInput_ProducerOutsideNestedInstances(t *testing.T) {
	b := testutil.NewBuilder(t)
	inner := b.Subgraph("inner").
		Input("x", "INT").
		Node("use", testutil.Sink("INT"), testutil.ID(1)).
		LinkIn("x", "use", 0).
		Done()
	outer := b.Subgraph("outer").
		Input("x", "INT").
		Instance("mid", inner, testutil.ID(2)).
		LinkIn("x", "mid", 0).
		Done()
	b.Node("src", testutil.Source("INT"), testutil.ID(4)).
		Instance("top", outer, testutil.ID(3)).
		Link("src", 0, "top", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "3:2:1").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("4"), r.OriginID)
}

func TestResolveOutput_NestedProducer(t *testing.T) {
	b := testutil.NewBuilder(t)
	inner := b.Subgraph("inner").
		Output("y", "INT").
		Node("make", testutil.Source("INT"), testutil.ID(8)).
		LinkOut("make", 0, "y").
		Done()
	outer := b.Subgraph("outer").
		Output("y", "INT").
		Instance("mid", inner, testutil.ID(6)).
		LinkOut("mid", 0, "y").
		Done()
	b.Instance("top", outer, testutil.ID(2)).
		Node("sink", testutil.Sink("INT"), testutil.ID(5)).
		Link("top", 0, "sink", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "5").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("2:6:8"), r.OriginID)
}

func TestResolveOutput_UnlinkedSubgraphOutput(t *testing.T) {
	b := testutil.NewBuilder(t)
	sg := b.Subgraph("empty").Output("y", "INT").Done()
	b.Instance("inst", sg, testutil.ID(1)).
		Node("sink", testutil.Sink("INT"), testutil.ID(2)).
		Link("inst", 0, "sink", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "2").ResolveInput(0)
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestResolveOutput_PassThrough(t *testing.T) {
	b := testutil.NewBuilder(t)
	sg := b.Subgraph("wire").Input("x", "INT").Output("y", "INT").PassThrough("x", "y").Done()
	b.Node("src", testutil.Source("INT"), testutil.ID(1)).
		Instance("inst", sg, testutil.ID(2)).
		Node("sink", testutil.Sink("INT"), testutil.ID(3)).
		Link("src", 0, "inst", 0).
		Link("inst", 0, "sink", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "3").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("1"), r.OriginID)
	require.Equal(t, 0, r.OriginSlot)
}

func TestResolveOutput_Bypass(t *testing.T) {
	b := testutil.NewBuilder(t).
		Node("src", testutil.Source("LATENT"), testutil.ID(1)).
		Node("sampler", testutil.Sampler(1), testutil.ID(2), testutil.Bypassed()).
		Node("sink", testutil.Sink("LATENT"), testutil.ID(3)).
		Link("src", 0, "sampler", 2).
		Link("sampler", 0, "sink", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "3").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("1"), r.OriginID, "bypass picks the LATENT input")
}

func TestResolveOutput_BypassHonoursConsumerType(t *testing.T) {
	composite := graph.NewLeafNode("Composite")
	composite.AddInput("mask", "MASK")
	composite.AddInput("image", "IMAGE")
	composite.AddOutput("out", "*")

	b := testutil.NewBuilder(t).
		Node("mask", testutil.Source("MASK"), testutil.ID(1)).
		Node("image", testutil.Source("IMAGE"), testutil.ID(2)).
		Node("composite", composite, testutil.ID(3), testutil.Bypassed()).
		Node("save", testutil.Sink("IMAGE"), testutil.ID(4)).
		Link("mask", 0, "composite", 0).
		Link("image", 0, "composite", 1).
		Link("composite", 0, "save", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "4").ResolveInput(0)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, ExecutionID("2"), r.OriginID)
}

func TestBypassInput(t *testing.T) {
	inputs := []InputInfo{
		{Name: "a", Type: "MODEL"},
		{Name: "b", Type: "IMAGE,MASK"},
		{Name: "c", Type: "MASK"},
		{Name: "d", Type: "*"},
	}
	tests := []struct {
		name   string
		inputs []InputInfo
		slot   int
		out    graph.SlotType
		want   graph.SlotType
		idx    int
	}{
		{name: "same index compatible", inputs: inputs, slot: 1, out: "*", want: "MASK", idx: 1},
		{name: "exact match before compatible", inputs: inputs, slot: 0, out: "*", want: "MASK", idx: 2},
		{name: "first compatible", inputs: inputs, slot: 0, out: "*", want: "IMAGE", idx: 1},
		{name: "wildcard fallback", inputs: inputs, slot: 0, out: "*", want: "LATENT", idx: 3},
		{name: "case insensitive exact", inputs: inputs, slot: 5, out: "*", want: "model", idx: 0},
		{name: "wildcard consumer keeps index", inputs: inputs, slot: 2, out: "MODEL", want: "*", idx: 2},
		{name: "untyped consumer out of range", inputs: inputs, slot: 9, out: "MODEL", want: "", idx: 0},
		{name: "same index must fit consumer", inputs: []InputInfo{{Name: "mask", Type: "MASK"}, {Name: "image", Type: "IMAGE"}}, slot: 0, out: "*", want: "IMAGE", idx: 1},
		{name: "same index must fit output", inputs: []InputInfo{{Name: "a", Type: "*"}, {Name: "b", Type: "MASK"}}, slot: 0, out: "MASK", want: "MASK", idx: 0},
		{name: "no fit", inputs: inputs[:1], slot: 0, out: "*", want: "LATENT", idx: -1},
		{name: "no inputs", inputs: nil, slot: 0, out: "*", want: "*", idx: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.idx, bypassInput(tt.inputs, tt.slot, tt.out, tt.want))
		})
	}
}

func TestResolveOutput_VirtualReroute(t *testing.T) {
	b := testutil.NewBuilder(t).
		Node("src", testutil.Source("INT"), testutil.ID(1)).
		Node("r1", testutil.Reroute(), testutil.ID(2)).
		Node("r2", testutil.Reroute(), testutil.ID(3)).
		Node("sink", testutil.Sink("INT"), testutil.ID(4)).
		Link("src", 0, "r1", 0).
		Link("r1", 0, "r2", 0).
		Link("r2", 0, "sink", 0)

	p := flatten(t, b.Build())
	r, err := lookup(t, p, "4").ResolveInput(0)
	require.NoError(t, err)
	require.Equal(t, ExecutionID("1"), r.OriginID)
	require.True(t, lookup(t, p, "2").IsVirtual())
}

func TestResolve_RecursionThroughBypassedLoop(t *testing.T) {
	b := testutil.NewBuilder(t).
		Node("a", testutil.Passthrough("INT"), testutil.ID(1), testutil.Bypassed()).
		Node("b", testutil.Passthrough("INT"), testutil.ID(2), testutil.Bypassed()).
		Node("sink", testutil.Sink("INT"), testutil.ID(3)).
		Link("a", 0, "b", 0).
		Link("b", 0, "a", 0).
		Link("a", 0, "sink", 0)

	p := flatten(t, b.Build())
	_, err := lookup(t, p, "3").ResolveInput(0)
	require.ErrorIs(t, err, ErrCircularReference)
	var rec *RecursionError
	require.True(t, errors.As(err, &rec))
}

func TestResolveInput_Errors(t *testing.T) {
	b := testutil.SamplerWorkflow(t)
	b.Leaf("sink").Inputs[0].Link = 999

	p := flatten(t, b.Build())
	sink := lookup(t, p, "9")

	_, err := sink.ResolveInput(0)
	require.ErrorIs(t, err, ErrInvalidLink)

	_, err = sink.ResolveInput(4)
	var slotErr *SlotIndexError
	require.True(t, errors.As(err, &slotErr))
	require.Equal(t, DirectionInput, slotErr.Direction)
	require.ErrorIs(t, err, ErrSlotIndex)

	_, err = lookup(t, p, "1").ResolveOutput(3, "", Visited{})
	require.ErrorIs(t, err, ErrSlotIndex)
}

func TestVisited_IsImmutable(t *testing.T) {
	var empty Visited
	one := empty.With("1", DirectionInput, 0)
	two := one.With("1", DirectionOutput, 0)

	require.Zero(t, empty.Len())
	require.Equal(t, 1, one.Len())
	require.Equal(t, 2, two.Len())
	require.True(t, two.Has("1", DirectionOutput, 0))
	require.False(t, one.Has("1", DirectionOutput, 0))
}

func TestApplyToGraph(t *testing.T) {
	var got []*graph.Link
	hooked := testutil.Source("INT")
	hooked.ApplyToGraph = func(extra []*graph.Link) error {
		got = extra
		return nil
	}
	b := testutil.NewBuilder(t).
		Node("hooked", hooked, testutil.ID(1)).
		Node("plain", testutil.Source("INT"), testutil.ID(2))

	p := flatten(t, b.Build())
	h, plain := lookup(t, p, "1"), lookup(t, p, "2")
	require.True(t, h.HasApplyToGraph())
	require.False(t, plain.HasApplyToGraph())

	extra := []*graph.Link{{ID: 5}}
	require.NoError(t, h.ApplyToGraph(extra))
	require.Equal(t, extra, got)
	require.NoError(t, plain.ApplyToGraph(extra))
}
