// Package domain holds the blueprint entity and its repository contract.
// A blueprint is a saved subgraph definition that can be added to any
// workflow. The package has no infrastructure dependencies.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrBlueprintNotFound is wrapped by BlueprintNotFoundError.
var ErrBlueprintNotFound = errors.New("blueprint not found")

// ErrInvalidBlueprint reports a blueprint that fails validation.
var ErrInvalidBlueprint = errors.New("invalid blueprint")

// BlueprintNotFoundError names the subgraph id that had no blueprint.
type BlueprintNotFoundError struct {
	SubgraphID string
}

func (e *BlueprintNotFoundError) Error() string {
	return fmt.Sprintf("blueprint not found: %s", e.SubgraphID)
}

func (e *BlueprintNotFoundError) Unwrap() error { return ErrBlueprintNotFound }

// Blueprint is a stored subgraph definition. Definition holds the exported
// subgraph as JSON.
type Blueprint struct {
	id         int64
	subgraphID string
	name       string
	version    int
	definition []byte
	createdAt  time.Time
	updatedAt  time.Time
}

// NewBlueprint creates an unsaved blueprint.
func NewBlueprint(subgraphID, name string, version int, definition []byte, now time.Time) (*Blueprint, error) {
	switch {
	case subgraphID == "":
		return nil, fmt.Errorf("%w: subgraph id is required", ErrInvalidBlueprint)
	case len(definition) == 0:
		return nil, fmt.Errorf("%w: definition is empty", ErrInvalidBlueprint)
	}
	return &Blueprint{
		subgraphID: subgraphID,
		name:       name,
		version:    version,
		definition: definition,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstituteBlueprint rebuilds a blueprint loaded from storage.
func ReconstituteBlueprint(id int64, subgraphID, name string, version int, definition []byte, createdAt, updatedAt time.Time) *Blueprint {
	return &Blueprint{
		id:         id,
		subgraphID: subgraphID,
		name:       name,
		version:    version,
		definition: definition,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (b *Blueprint) ID() int64            { return b.id }
func (b *Blueprint) SubgraphID() string   { return b.subgraphID }
func (b *Blueprint) Name() string         { return b.name }
func (b *Blueprint) Version() int         { return b.version }
func (b *Blueprint) Definition() []byte   { return b.definition }
func (b *Blueprint) CreatedAt() time.Time { return b.createdAt }
func (b *Blueprint) UpdatedAt() time.Time { return b.updatedAt }

// SetID is called by the repository after insert.
func (b *Blueprint) SetID(id int64) {
	b.id = id
}

// Revise replaces the stored definition.
func (b *Blueprint) Revise(name string, version int, definition []byte, now time.Time) {
	b.name = name
	b.version = version
	b.definition = definition
	b.updatedAt = now
}
