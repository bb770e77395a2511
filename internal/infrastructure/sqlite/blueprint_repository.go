package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/nodegraph/internal/blueprints/domain"
)

const blueprintColumns = `id, subgraph_id, name, version, definition, created_at, updated_at`

type blueprintRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*blueprintRepository)(nil)

// NewBlueprintRepository returns a domain.Repository over a migrated db.
func NewBlueprintRepository(db *sql.DB) domain.Repository {
	return &blueprintRepository{db: db}
}

// blueprintModel is a row of the blueprints table. Times are Unix seconds.
type blueprintModel struct {
	ID         int64
	SubgraphID string
	Name       string
	Version    int
	Definition []byte
	CreatedAt  int64
	UpdatedAt  int64
}

func (m *blueprintModel) toDomain() *domain.Blueprint {
	return domain.ReconstituteBlueprint(m.ID, m.SubgraphID, m.Name, m.Version, m.Definition,
		time.Unix(m.CreatedAt, 0), time.Unix(m.UpdatedAt, 0))
}

func scanBlueprint(scanner interface{ Scan(...any) error }) (*blueprintModel, error) {
	var m blueprintModel
	err := scanner.Scan(&m.ID, &m.SubgraphID, &m.Name, &m.Version, &m.Definition, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *blueprintRepository) Save(ctx context.Context, b *domain.Blueprint) error {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO blueprints (subgraph_id, name, version, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subgraph_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			definition = excluded.definition,
			updated_at = excluded.updated_at
		RETURNING id`,
		b.SubgraphID(), b.Name(), b.Version(), b.Definition(), b.CreatedAt().Unix(), b.UpdatedAt().Unix(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to save blueprint: %w", err)
	}
	b.SetID(id)
	return nil
}

func (r *blueprintRepository) FindBySubgraphID(ctx context.Context, subgraphID string) (*domain.Blueprint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blueprintColumns+` FROM blueprints WHERE subgraph_id = ?`, subgraphID)
	m, err := scanBlueprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.BlueprintNotFoundError{SubgraphID: subgraphID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blueprint: %w", err)
	}
	return m.toDomain(), nil
}

func (r *blueprintRepository) List(ctx context.Context) ([]*domain.Blueprint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+blueprintColumns+` FROM blueprints ORDER BY name, subgraph_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Blueprint
	for rows.Next() {
		m, err := scanBlueprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blueprint: %w", err)
		}
		out = append(out, m.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blueprints: %w", err)
	}
	return out, nil
}

func (r *blueprintRepository) Delete(ctx context.Context, subgraphID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blueprints WHERE subgraph_id = ?`, subgraphID)
	if err != nil {
		return fmt.Errorf("failed to delete blueprint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &domain.BlueprintNotFoundError{SubgraphID: subgraphID}
	}
	return nil
}
