// Package blueprints keeps a library of saved subgraph definitions that can
// be supplied to workflows which reference them.
package blueprints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/nodegraph/internal/blueprints/domain"
	"github.com/zjrosen/nodegraph/internal/cachemanager"
	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/log"
)

// DefaultCacheTTL bounds how long a loaded blueprint is served from memory.
const DefaultCacheTTL = 5 * time.Minute

// Option configures a Library.
type Option func(*Library)

// WithCacheTTL sets the ttl of cached blueprints.
func WithCacheTTL(ttl time.Duration) Option {
	return func(l *Library) { l.ttl = ttl }
}

// WithoutCache sends every load to the repository.
func WithoutCache() Option {
	return func(l *Library) { l.bypass = true }
}

// WithClock replaces time.Now for saved timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// Library stores definitions in a domain.Repository and serves loads
// through a read-through cache.
type Library struct {
	repo   domain.Repository
	cache  *cachemanager.ReadThroughCache[string, *domain.Blueprint, string]
	ttl    time.Duration
	bypass bool
	now    func() time.Time
}

func NewLibrary(repo domain.Repository, opts ...Option) *Library {
	l := &Library{
		repo: repo,
		ttl:  DefaultCacheTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	manager := cachemanager.NewInMemoryCacheManager[string, *domain.Blueprint]("blueprints", l.ttl, cachemanager.DefaultCleanupInterval)
	l.cache = cachemanager.NewReadThroughCache[string, *domain.Blueprint, string](manager, repo.FindBySubgraphID, l.bypass)
	return l
}

// SaveSubgraph stores sg and every definition nested inside it. It returns
// the saved blueprints, sg first.
func (l *Library) SaveSubgraph(ctx context.Context, sg *graph.Subgraph) ([]*domain.Blueprint, error) {
	var saved []*domain.Blueprint
	for _, def := range withNested(sg) {
		b, err := l.save(ctx, def.Export())
		if err != nil {
			return saved, err
		}
		saved = append(saved, b)
	}
	return saved, nil
}

// SaveWorkflow stores every definition carried by wf.
func (l *Library) SaveWorkflow(ctx context.Context, wf *graph.Workflow) ([]*domain.Blueprint, error) {
	if wf.Definitions == nil {
		return nil, nil
	}
	var saved []*domain.Blueprint
	for i := range wf.Definitions.Subgraphs {
		b, err := l.save(ctx, &wf.Definitions.Subgraphs[i])
		if err != nil {
			return saved, err
		}
		saved = append(saved, b)
	}
	return saved, nil
}

func (l *Library) save(ctx context.Context, def *graph.ExportedSubgraph) (*domain.Blueprint, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to encode subgraph %s: %w", def.ID, err)
	}
	b, err := domain.NewBlueprint(def.ID, def.Name, def.Version.Int(), data, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.repo.Save(ctx, b); err != nil {
		return nil, err
	}
	if err := l.cache.Invalidate(ctx, def.ID); err != nil {
		return nil, err
	}
	log.Info(log.CatStore, "blueprint saved", "subgraph", def.ID, "name", def.Name)
	return b, nil
}

// Load returns the stored definition for a subgraph id.
func (l *Library) Load(ctx context.Context, subgraphID string) (*graph.ExportedSubgraph, error) {
	b, err := l.cache.Get(ctx, subgraphID, subgraphID, l.ttl)
	if err != nil {
		return nil, err
	}
	var def graph.ExportedSubgraph
	if err := json.Unmarshal(b.Definition(), &def); err != nil {
		return nil, fmt.Errorf("failed to decode blueprint %s: %w", subgraphID, err)
	}
	return &def, nil
}

func (l *Library) List(ctx context.Context) ([]*domain.Blueprint, error) {
	return l.repo.List(ctx)
}

func (l *Library) Delete(ctx context.Context, subgraphID string) error {
	if err := l.repo.Delete(ctx, subgraphID); err != nil {
		return err
	}
	return l.cache.Invalidate(ctx, subgraphID)
}

// Hydrate adds to wf the stored definitions its nodes reference but it does
// not carry, including definitions only referenced by added ones. Node types
// with no blueprint are left alone. It returns the ids added.
func (l *Library) Hydrate(ctx context.Context, wf *graph.Workflow) ([]string, error) {
	var added []string
	missing := make(map[string]bool)
	for {
		progress := false
		for _, typ := range wf.SubgraphTypes() {
			if missing[typ] {
				continue
			}
			def, err := l.Load(ctx, typ)
			if errors.Is(err, domain.ErrBlueprintNotFound) {
				missing[typ] = true
				continue
			}
			if err != nil {
				return added, err
			}
			if wf.Definitions == nil {
				wf.Definitions = &graph.Definitions{}
			}
			wf.Definitions.Subgraphs = append(wf.Definitions.Subgraphs, *def)
			added = append(added, def.ID)
			progress = true
		}
		if !progress {
			break
		}
	}
	if len(added) > 0 {
		log.Debug(log.CatStore, "workflow hydrated", "added", len(added))
	}
	return added, nil
}

// withNested returns sg followed by the definitions instantiated anywhere
// inside it, each once.
func withNested(sg *graph.Subgraph) []*graph.Subgraph {
	out := []*graph.Subgraph{sg}
	seen := map[*graph.Subgraph]bool{sg: true}
	for i := 0; i < len(out); i++ {
		for _, n := range out[i].Nodes() {
			switch node := n.(type) {
			case *graph.SubgraphNode:
				inner := node.Subgraph()
				if !seen[inner] {
					seen[inner] = true
					out = append(out, inner)
				}
			case *graph.LeafNode:
			}
		}
	}
	return out
}
