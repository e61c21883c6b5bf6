package service

import (
	"context"

	"github.com/google/uuid"

	"ticketmatch/internal/models"
)

// IssueStore is the narrow read/observe contract the matching core needs
// from the ticket persistence layer.
type IssueStore interface {
	Create(ctx context.Context, issue *models.IssueRecord) error
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.IssueRecord, error)
	UpdateStatus(ctx context.Context, tenantID string, id uuid.UUID, status models.IssueStatus) error
	RecentByCategory(ctx context.Context, tenantID string, category models.IssueCategory, limit int) ([]*models.IssueRecord, error)
	CountsByCategory(ctx context.Context, tenantID string) (map[models.IssueCategory]int, error)
}

// EmbeddingStore persists the relational side of indexed vectors.
// Deactivate returns only the records that were still active, so callers can
// mirror the change into the vector index exactly once.
type EmbeddingStore interface {
	Create(ctx context.Context, rec *models.EmbeddingRecord) error
	Deactivate(ctx context.Context, ids []uuid.UUID, reason string) ([]*models.EmbeddingRecord, error)
	ActiveByIssue(ctx context.Context, tenantID string, issueID uuid.UUID) ([]*models.EmbeddingRecord, error)
	ActiveCount(ctx context.Context, tenantID string) (int, error)
}
