package graph

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/nodegraph/internal/log"
)

// captureLog routes log output into a buffer for the rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	restore := log.InitWriter(&buf)
	t.Cleanup(restore)
	return &buf
}

func mustAdd(t *testing.T, g *Graph, n Node) {
	t.Helper()
	require.NoError(t, g.Add(n))
}

func mustSubgraph(t *testing.T, root *Graph, name string) *Subgraph {
	t.Helper()
	sg, err := root.CreateSubgraph(name)
	require.NoError(t, err)
	return sg
}

func mustInput(t *testing.T, sg *Subgraph, name string, typ SlotType) *BoundarySlot {
	t.Helper()
	slot, err := sg.AddInput(name, typ)
	require.NoError(t, err)
	return slot
}

func mustOutput(t *testing.T, sg *Subgraph, name string, typ SlotType) *BoundarySlot {
	t.Helper()
	slot, err := sg.AddOutput(name, typ)
	require.NoError(t, err)
	return slot
}

// newSampler builds a node with a seed widget input, a model input and a
// latent output.
func newSampler(seed any) *LeafNode {
	n := NewLeafNode("KSampler")
	n.AddWidgetInput("seed", "number", seed)
	n.AddInput("model", "MODEL")
	n.AddOutput("LATENT", "LATENT")
	return n
}

func newSource(typ SlotType) *LeafNode {
	n := NewLeafNode("Source")
	n.AddOutput("out", typ)
	return n
}

func newSink(typ SlotType) *LeafNode {
	n := NewLeafNode("Sink")
	n.AddInput("in", typ)
	return n
}
