package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by the flattening engine.
const InstrumentationName = "github.com/zjrosen/nodegraph/internal/execution"

// Span names.
const (
	SpanFlattenGraph    = "flatten.graph"
	SpanFlattenSubgraph = "flatten.subgraph"
	SpanBuildPrompt     = "prompt.build"
)

// Span attribute keys.
const (
	AttrSubgraphID    = attribute.Key("subgraph.id")
	AttrSubgraphDepth = attribute.Key("subgraph.depth")
	AttrNodeCount     = attribute.Key("node.count")
	AttrExecutionID   = attribute.Key("execution.id")
	AttrErrorType     = attribute.Key("error.type")
)

// Fail marks span as failed with err.
func Fail(span trace.Span, err error, errType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(AttrErrorType.String(errType))
}
