package models

import (
	"time"

	"github.com/google/uuid"
)

type EmbeddingSourceType string

const (
	SourceSubject     EmbeddingSourceType = "subject"
	SourceDescription EmbeddingSourceType = "description"
	SourceResolution  EmbeddingSourceType = "resolution"
	SourceRootCause   EmbeddingSourceType = "root-cause"
	SourceLogChunk    EmbeddingSourceType = "log-chunk"
)

// EmbeddingRecord is the relational side of an indexed vector. The row keeps
// audit history through soft deactivation while the vector itself is
// physically deleted from the index so stale matches cannot surface.
// Exactly one active record exists per (issue, source type, chunk index).
type EmbeddingRecord struct {
	ID               uuid.UUID           `db:"id"`
	TenantID         string              `db:"tenant_id"`
	IssueID          uuid.UUID           `db:"issue_id"`
	Category         IssueCategory       `db:"category"`
	SourceType       EmbeddingSourceType `db:"source_type"`
	ChunkIndex       int                 `db:"chunk_index"`
	TextContent      string              `db:"text_content"`
	VectorID         string              `db:"vector_id"`
	IsActive         bool                `db:"is_active"`
	DeprecatedAt     *time.Time          `db:"deprecated_at"`
	DeprecatedReason string              `db:"deprecated_reason"`
	CreatedAt        time.Time           `db:"created_at"`
}
