package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ticketmatch/internal/models"
)

var ErrIssueNotFound = errors.New("issue not found")

type IssueRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

const createIssuesTableSQL = `
CREATE TABLE IF NOT EXISTS issues (
    id          UUID PRIMARY KEY,
    tenant_id   TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    subject     TEXT NOT NULL,
    description TEXT NOT NULL,
    status      TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_issues_tenant_category ON issues (tenant_id, category);
`

func NewIssueRepository(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (*IssueRepository, error) {
	if _, err := db.Exec(ctx, createIssuesTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create issues table: %w", err)
	}
	return &IssueRepository{db: db, logger: logger}, nil
}

func (r *IssueRepository) Create(ctx context.Context, issue *models.IssueRecord) error {
	query := squirrel.Insert("issues").
		Columns("id", "tenant_id", "category", "subject", "description", "status", "created_at").
		Values(issue.ID, issue.TenantID, issue.Category, issue.Subject, issue.Description, issue.Status, issue.CreatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *IssueRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.IssueRecord, error) {
	query := squirrel.Select("id", "tenant_id", "category", "subject", "description", "status", "created_at").
		From("issues").
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var issue models.IssueRecord
	row := r.db.QueryRow(ctx, sql, args...)
	if err := row.Scan(&issue.ID, &issue.TenantID, &issue.Category, &issue.Subject,
		&issue.Description, &issue.Status, &issue.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return &issue, nil
}

func (r *IssueRepository) UpdateStatus(ctx context.Context, tenantID string, id uuid.UUID, status models.IssueStatus) error {
	query := squirrel.Update("issues").
		Set("status", status).
		Where(squirrel.Eq{"id": id, "tenant_id": tenantID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// RecentByCategory returns the newest issues of a category, used to pick
// threshold representatives.
func (r *IssueRepository) RecentByCategory(ctx context.Context, tenantID string, category models.IssueCategory, limit int) ([]*models.IssueRecord, error) {
	query := squirrel.Select("id", "tenant_id", "category", "subject", "description", "status", "created_at").
		From("issues").
		Where(squirrel.Eq{"tenant_id": tenantID, "category": category}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
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

	var issues []*models.IssueRecord
	for rows.Next() {
		var issue models.IssueRecord
		if err := rows.Scan(&issue.ID, &issue.TenantID, &issue.Category, &issue.Subject,
			&issue.Description, &issue.Status, &issue.CreatedAt); err != nil {
			return nil, err
		}
		issues = append(issues, &issue)
	}
	return issues, rows.Err()
}

func (r *IssueRepository) CountsByCategory(ctx context.Context, tenantID string) (map[models.IssueCategory]int, error) {
	query := squirrel.Select("category", "COUNT(*)").
		From("issues").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		GroupBy("category").
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

	counts := make(map[models.IssueCategory]int)
	for rows.Next() {
		var category models.IssueCategory
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[category] = count
	}
	return counts, rows.Err()
}
