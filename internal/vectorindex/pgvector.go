package vectorindex

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"ticketmatch/internal/matching"
)

// PgVectorIndex stores points in a pgvector table inside the platform's
// Postgres. Deletion is a single statement, so searches issued after a
// completed delete never see the removed points.
type PgVectorIndex struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

const createPointsTableSQL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS vector_points (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    issue_id    TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    source_type TEXT NOT NULL,
    chunk_index INT NOT NULL DEFAULT 0,
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL,
    embedding   vector(%d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vector_points_tenant ON vector_points (tenant_id, is_active);
`

// NewPgVectorIndex creates the collection lazily if absent.
func NewPgVectorIndex(ctx context.Context, db *pgxpool.Pool, dimensions int, logger *zap.Logger) (*PgVectorIndex, error) {
	if dimensions <= 0 {
		dimensions = 1536
	}
	if _, err := db.Exec(ctx, fmt.Sprintf(createPointsTableSQL, dimensions)); err != nil {
		return nil, fmt.Errorf("failed to create vector_points table: %w", err)
	}
	return &PgVectorIndex{db: db, logger: logger}, nil
}

func (idx *PgVectorIndex) Upsert(ctx context.Context, points []Point) error {
	for _, p := range points {
		query := squirrel.Insert("vector_points").
			Columns("id", "tenant_id", "issue_id", "category", "source_type", "chunk_index", "is_active", "created_at", "embedding").
			Values(p.ID, p.Payload.TenantID, p.Payload.IssueID, p.Payload.Category, p.Payload.SourceType,
				p.Payload.ChunkIndex, p.Payload.IsActive, p.Payload.CreatedAt, pgvector.NewVector(p.Vector)).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				tenant_id = EXCLUDED.tenant_id,
				issue_id = EXCLUDED.issue_id,
				category = EXCLUDED.category,
				source_type = EXCLUDED.source_type,
				chunk_index = EXCLUDED.chunk_index,
				is_active = EXCLUDED.is_active,
				created_at = EXCLUDED.created_at,
				embedding = EXCLUDED.embedding`).
			PlaceholderFormat(squirrel.Dollar)

		sql, args, err := query.ToSql()
		if err != nil {
			return err
		}
		if _, err := idx.db.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}
	return nil
}

// Delete removes points by id. Absent ids are a no-op, not an error.
func (idx *PgVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := idx.db.Exec(ctx, "DELETE FROM vector_points WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func (idx *PgVectorIndex) Search(ctx context.Context, vector []float32, filter Filter, topK int, scoreFloor float64) ([]ScoredPoint, error) {
	if filter.TenantID == "" {
		return nil, matching.ErrTenantRequired
	}
	if topK <= 0 {
		topK = 10
	}

	vec := pgvector.NewVector(vector)
	query := squirrel.Select(
		"id", "tenant_id", "issue_id", "category", "source_type", "chunk_index", "is_active", "created_at").
		Column(squirrel.Expr("1 - (embedding <=> ?) AS score", vec)).
		From("vector_points").
		Where(squirrel.Eq{"tenant_id": filter.TenantID}).
		Where(squirrel.Expr("1 - (embedding <=> ?) >= ?", vec, scoreFloor)).
		OrderBy("score DESC", "created_at DESC", "id ASC").
		Limit(uint64(topK)).
		PlaceholderFormat(squirrel.Dollar)

	if filter.IsActive != nil {
		query = query.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.Category != nil {
		query = query.Where(squirrel.Eq{"category": *filter.Category})
	}
	if filter.SourceType != nil {
		query = query.Where(squirrel.Eq{"source_type": *filter.SourceType})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := idx.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	defer rows.Close()

	var results []ScoredPoint
	for rows.Next() {
		var sp ScoredPoint
		if err := rows.Scan(
			&sp.ID, &sp.Payload.TenantID, &sp.Payload.IssueID, &sp.Payload.Category,
			&sp.Payload.SourceType, &sp.Payload.ChunkIndex, &sp.Payload.IsActive,
			&sp.Payload.CreatedAt, &sp.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		results = append(results, sp)
	}
	return results, rows.Err()
}

func (idx *PgVectorIndex) Count(ctx context.Context, filter Filter) (int, error) {
	if filter.TenantID == "" {
		return 0, matching.ErrTenantRequired
	}

	query := squirrel.Select("COUNT(*)").
		From("vector_points").
		Where(squirrel.Eq{"tenant_id": filter.TenantID}).
		PlaceholderFormat(squirrel.Dollar)

	if filter.IsActive != nil {
		query = query.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.Category != nil {
		query = query.Where(squirrel.Eq{"category": *filter.Category})
	}
	if filter.SourceType != nil {
		query = query.Where(squirrel.Eq{"source_type": *filter.SourceType})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := idx.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}
