// Package execution flattens a graph of nested subgraph instances into the
// flat list of nodes an engine runs, and resolves every input across
// subgraph boundaries to its real producer.
package execution

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/tracing"
)

// MaxNestedSubgraphs is the default limit on instance nesting.
const MaxNestedSubgraphs = 1000

// Option configures a Compiler.
type Option func(*Compiler)

// WithMaxDepth overrides MaxNestedSubgraphs. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(c *Compiler) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithTracer sets the tracer used for flatten spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Compiler) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Compiler flattens graphs. It holds no per-pass state and may be reused.
type Compiler struct {
	maxDepth int
	tracer   trace.Tracer
}

func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		maxDepth: MaxNestedSubgraphs,
		tracer:   otel.Tracer(tracing.InstrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxDepth returns the configured nesting limit.
func (c *Compiler) MaxDepth() int {
	return c.maxDepth
}

// Program is the result of one flattening pass.
type Program struct {
	// Nodes holds one entry per reachable leaf in depth-first order.
	Nodes []*ExecutableNode

	index *Index
}

// Lookup finds any node built during the pass, instances included.
func (p *Program) Lookup(id ExecutionID) (*ExecutableNode, bool) {
	return p.index.Get(id)
}

// IDs returns the ids of Nodes in order.
func (p *Program) IDs() []ExecutionID {
	ids := make([]ExecutionID, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.id
	}
	return ids
}

// Flatten builds the program for every node of g.
func (c *Compiler) Flatten(ctx context.Context, g *graph.Graph) (*Program, error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanFlattenGraph)
	defer span.End()

	w := &walker{compiler: c, index: NewIndex()}
	var nodes []*ExecutableNode
	for _, node := range g.Nodes() {
		inner, err := w.visit(ctx, node, nil, nil, nil)
		if err != nil {
			tracing.Fail(span, err, errorType(err))
			log.ErrorErr(log.CatFlatten, "flatten failed", err)
			return nil, err
		}
		nodes = append(nodes, inner...)
	}

	span.SetAttributes(tracing.AttrNodeCount.Int(len(nodes)))
	log.Debug(log.CatFlatten, "graph flattened", "nodes", len(nodes), "indexed", w.index.Len())
	return &Program{Nodes: nodes, index: w.index}, nil
}

// FlattenNode builds the program for a single instance. Ids are relative to
// the instance, so its leaves start with the instance id.
func (c *Compiler) FlattenNode(ctx context.Context, sn *graph.SubgraphNode) (*Program, error) {
	ctx, span := c.tracer.Start(ctx, tracing.SpanFlattenGraph)
	defer span.End()

	w := &walker{compiler: c, index: NewIndex()}
	nodes, err := w.visit(ctx, sn, nil, nil, nil)
	if err != nil {
		tracing.Fail(span, err, errorType(err))
		return nil, err
	}
	span.SetAttributes(tracing.AttrNodeCount.Int(len(nodes)))
	return &Program{Nodes: nodes, index: w.index}, nil
}

type walker struct {
	compiler *Compiler
	index    *Index
}

// visit indexes node and returns the leaves it contributes. active holds
// the instances on the current path.
func (w *walker) visit(ctx context.Context, node graph.Node, path []graph.NodeID, enclosing *graph.SubgraphNode, active []*graph.SubgraphNode) ([]*ExecutableNode, error) {
	dto := NewExecutableNode(node, path, w.index, enclosing)
	w.index.put(dto)

	switch n := node.(type) {
	case *graph.LeafNode:
		return []*ExecutableNode{dto}, nil
	case *graph.SubgraphNode:
		return w.expand(ctx, dto, n, path, active)
	default:
		return nil, fmt.Errorf("unknown node type %T", node)
	}
}

func (w *walker) expand(ctx context.Context, dto *ExecutableNode, sn *graph.SubgraphNode, path []graph.NodeID, active []*graph.SubgraphNode) ([]*ExecutableNode, error) {
	sg := sn.Subgraph()
	for _, a := range active {
		if a.Subgraph() == sg {
			return nil, &CircularReferenceError{Instance: dto.id, SubgraphID: sg.ID, Path: slices.Clone(path)}
		}
	}
	depth := len(path) + 1
	if depth > w.compiler.maxDepth {
		return nil, fmt.Errorf("%w: instance %s at depth %d (limit %d)", ErrMaxDepthExceeded, dto.id, depth, w.compiler.maxDepth)
	}

	ctx, span := w.compiler.tracer.Start(ctx, tracing.SpanFlattenSubgraph, trace.WithAttributes(
		tracing.AttrSubgraphID.String(sg.ID),
		tracing.AttrSubgraphDepth.Int(depth),
		tracing.AttrExecutionID.String(string(dto.id)),
	))
	defer span.End()

	inner := append(slices.Clone(path), sn.ID)
	active = append(slices.Clone(active), sn)

	var nodes []*ExecutableNode
	for _, child := range sg.Nodes() {
		got, err := w.visit(ctx, child, inner, sn, active)
		if err != nil {
			tracing.Fail(span, err, errorType(err))
			return nil, err
		}
		nodes = append(nodes, got...)
	}
	span.SetAttributes(tracing.AttrNodeCount.Int(len(nodes)))
	return nodes, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrCircularReference):
		return "circular_reference"
	case errors.Is(err, ErrMaxDepthExceeded):
		return "max_depth"
	default:
		return "internal"
	}
}
