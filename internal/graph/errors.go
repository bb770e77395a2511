package graph

import (
	"errors"
)

// Graph errors
var (
	ErrNodeNotFound      = errors.New("node not found in graph")
	ErrDuplicateNode     = errors.New("duplicate node id")
	ErrNodeInOtherGraph  = errors.New("node already belongs to another graph")
	ErrInvalidSlot       = errors.New("invalid slot")
	ErrConnectionSkipped = errors.New("connection skipped: incompatible slot types")
	ErrNotSubgraphNode   = errors.New("node is not a subgraph instance")
	ErrWidgetNotFound    = errors.New("widget not found")
)

// Subgraph errors
var (
	ErrSlotNotFound       = errors.New("boundary slot not found in subgraph")
	ErrMutationCancelled  = errors.New("subgraph mutation cancelled by listener")
	ErrSubgraphNotFound   = errors.New("subgraph definition not found")
	ErrDuplicateKey       = errors.New("duplicate registry key")
	ErrNilSubgraph        = errors.New("subgraph cannot be nil")
	ErrInvalidDefinition  = errors.New("invalid subgraph definition")
	ErrUnsupportedVersion = errors.New("unsupported document version")
)
