package domain

import "context"

// Repository persists blueprints keyed by subgraph id.
type Repository interface {
	// Save inserts the blueprint, or replaces the one with the same subgraph
	// id. The stored id is written back to b.
	Save(ctx context.Context, b *Blueprint) error

	// FindBySubgraphID returns BlueprintNotFoundError when nothing matches.
	FindBySubgraphID(ctx context.Context, subgraphID string) (*Blueprint, error)

	// List returns every blueprint ordered by name.
	List(ctx context.Context) ([]*Blueprint, error)

	// Delete returns BlueprintNotFoundError when nothing matches.
	Delete(ctx context.Context, subgraphID string) error
}
