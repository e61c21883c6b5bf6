package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ticketmatch/internal/models"
)

type EmbeddingRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

const createEmbeddingsTableSQL = `
CREATE TABLE IF NOT EXISTS embedding_records (
    id                UUID PRIMARY KEY,
    tenant_id         TEXT NOT NULL,
    issue_id          UUID NOT NULL,
    category          TEXT NOT NULL DEFAULT '',
    source_type       TEXT NOT NULL,
    chunk_index       INT NOT NULL DEFAULT 0,
    text_content      TEXT NOT NULL,
    vector_id         TEXT NOT NULL,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    deprecated_at     TIMESTAMPTZ,
    deprecated_reason TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_embedding_records_active_chunk
    ON embedding_records (issue_id, source_type, chunk_index) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_embedding_records_tenant ON embedding_records (tenant_id, is_active);
`

func NewEmbeddingRepository(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (*EmbeddingRepository, error) {
	if _, err := db.Exec(ctx, createEmbeddingsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create embedding_records table: %w", err)
	}
	return &EmbeddingRepository{db: db, logger: logger}, nil
}

func (r *EmbeddingRepository) Create(ctx context.Context, rec *models.EmbeddingRecord) error {
	query := squirrel.Insert("embedding_records").
		Columns("id", "tenant_id", "issue_id", "category", "source_type", "chunk_index",
			"text_content", "vector_id", "is_active", "deprecated_at", "deprecated_reason", "created_at").
		Values(rec.ID, rec.TenantID, rec.IssueID, rec.Category, rec.SourceType, rec.ChunkIndex,
			rec.TextContent, rec.VectorID, rec.IsActive, rec.DeprecatedAt, rec.DeprecatedReason, rec.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Deactivate soft-flags records and returns only the ones that were still
// active: deactivating an already-inactive record is a no-op and leaves its
// deprecated_at untouched. The caller mirrors the returned vector ids with a
// physical index deletion.
func (r *EmbeddingRepository) Deactivate(ctx context.Context, ids []uuid.UUID, reason string) ([]*models.EmbeddingRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`UPDATE embedding_records
		 SET is_active = FALSE, deprecated_at = $1, deprecated_reason = $2
		 WHERE id = ANY($3) AND is_active
		 RETURNING id, tenant_id, issue_id, category, source_type, chunk_index,
		           text_content, vector_id, is_active, deprecated_at, deprecated_reason, created_at`,
		time.Now(), reason, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate embeddings: %w", err)
	}
	defer rows.Close()

	return scanEmbeddingRows(rows)
}

func (r *EmbeddingRepository) ActiveByIssue(ctx context.Context, tenantID string, issueID uuid.UUID) ([]*models.EmbeddingRecord, error) {
	query := selectEmbeddings().
		Where(squirrel.Eq{"tenant_id": tenantID, "issue_id": issueID, "is_active": true}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEmbeddingRows(rows)
}

func (r *EmbeddingRepository) ActiveCount(ctx context.Context, tenantID string) (int, error) {
	query := squirrel.Select("COUNT(*)").
		From("embedding_records").
		Where(squirrel.Eq{"tenant_id": tenantID, "is_active": true}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func selectEmbeddings() squirrel.SelectBuilder {
	return squirrel.Select("id", "tenant_id", "issue_id", "category", "source_type", "chunk_index",
		"text_content", "vector_id", "is_active", "deprecated_at", "deprecated_reason", "created_at").
		From("embedding_records")
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEmbeddingRows(rows pgRows) ([]*models.EmbeddingRecord, error) {
	var records []*models.EmbeddingRecord
	for rows.Next() {
		var rec models.EmbeddingRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.IssueID, &rec.Category, &rec.SourceType,
			&rec.ChunkIndex, &rec.TextContent, &rec.VectorID, &rec.IsActive,
			&rec.DeprecatedAt, &rec.DeprecatedReason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
