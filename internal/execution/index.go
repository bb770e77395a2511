package execution

import (
	"context"
	"strings"

	"github.com/zjrosen/nodegraph/internal/cachemanager"
	"github.com/zjrosen/nodegraph/internal/graph"
)

// ExecutionID identifies a node across the whole flattened hierarchy: the
// ids of the enclosing instances followed by the node's own id, joined by ":".
type ExecutionID string

// MakeID builds the ExecutionID of node id reached through path.
func MakeID(path []graph.NodeID, id graph.NodeID) ExecutionID {
	if len(path) == 0 {
		return ExecutionID(id.String())
	}
	var b strings.Builder
	for _, p := range path {
		b.WriteString(p.String())
		b.WriteByte(':')
	}
	b.WriteString(id.String())
	return ExecutionID(b.String())
}

// Index maps ExecutionIDs to the nodes built during one flattening pass.
type Index struct {
	cache cachemanager.CacheManager[ExecutionID, *ExecutableNode]
}

// NewIndex returns an empty index whose entries never expire.
func NewIndex() *Index {
	return &Index{
		cache: cachemanager.NewInMemoryCacheManager[ExecutionID, *ExecutableNode]("execution-index", cachemanager.NoExpiration, cachemanager.NoCleanup),
	}
}

// Get looks up a node by id.
func (x *Index) Get(id ExecutionID) (*ExecutableNode, bool) {
	return x.cache.Get(context.Background(), id)
}

func (x *Index) put(n *ExecutableNode) {
	x.cache.Set(context.Background(), n.id, n, cachemanager.NoExpiration)
}

// Len returns the number of indexed nodes, instances included.
func (x *Index) Len() int {
	return x.cache.Len()
}
