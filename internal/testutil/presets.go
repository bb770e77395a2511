package testutil

import (
	"testing"

	"github.com/zjrosen/nodegraph/internal/graph"
)

// Sampler is a KSampler with a seed widget input, a model input and a
// latent output.
func Sampler(seed any) *graph.LeafNode {
	n := graph.NewLeafNode("KSampler")
	n.AddWidgetInput("seed", "INT", seed)
	n.AddInput("model", "MODEL")
	n.AddInput("latent_image", "LATENT")
	n.AddOutput("LATENT", "LATENT")
	return n
}

// Checkpoint produces MODEL on output 0.
func Checkpoint() *graph.LeafNode {
	n := graph.NewLeafNode("CheckpointLoaderSimple")
	n.AddWidget("ckpt_name", "combo", "model.safetensors")
	n.AddOutput("MODEL", "MODEL")
	return n
}

// Source produces typ on output 0.
func Source(typ graph.SlotType) *graph.LeafNode {
	n := graph.NewLeafNode("Source")
	n.AddOutput("out", typ)
	return n
}

// Sink consumes typ on input 0.
func Sink(typ graph.SlotType) *graph.LeafNode {
	n := graph.NewLeafNode("Sink")
	n.AddInput("in", typ)
	return n
}

// Passthrough has one input and one output of typ.
func Passthrough(typ graph.SlotType) *graph.LeafNode {
	n := graph.NewLeafNode("Passthrough")
	n.AddInput("in", typ)
	n.AddOutput("out", typ)
	return n
}

// Reroute is a virtual node forwarding its single input.
func Reroute() *graph.LeafNode {
	n := graph.NewLeafNode("Reroute")
	n.Virtual = true
	n.AddInput("", graph.AnyType)
	n.AddOutput("", graph.AnyType)
	return n
}

// SamplerWorkflow builds the canonical example: a root instance with id 3
// whose body holds a KSampler with id 7. The sampler's seed is promoted
// through the boundary input "seed"; its latent leaves through "latent"
// into a root sink with id 9. A root checkpoint feeds the sampler's model.
func SamplerWorkflow(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder(t)
	sg := b.Subgraph("Sampler Group").
		Input("seed", "INT").
		Input("model", "MODEL").
		Output("latent", "LATENT").
		Node("sampler", Sampler(42), ID(7)).
		LinkIn("seed", "sampler", 0).
		LinkIn("model", "sampler", 1).
		LinkOut("sampler", 0, "latent").
		Done()

	return b.
		Node("checkpoint", Checkpoint(), ID(1)).
		Instance("group", sg, ID(3)).
		Node("sink", Sink("LATENT"), ID(9)).
		Link("checkpoint", 0, "group", 1).
		Link("group", 0, "sink", 0)
}
