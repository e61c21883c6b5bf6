package vectorindex

import (
	"context"
	"time"
)

// Payload is the flat metadata attached to every indexed vector. TenantID is
// the isolation boundary: no search ever crosses it.
type Payload struct {
	TenantID   string    `json:"tenant_id"`
	IssueID    string    `json:"issue_id"`
	Category   string    `json:"category"`
	SourceType string    `json:"source_type"`
	ChunkIndex int       `json:"chunk_index"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

type ScoredPoint struct {
	ID      string
	Score   float64
	Payload Payload
}

// Filter is an exact-match conjunction. TenantID is mandatory; the optional
// fields narrow further when non-nil.
type Filter struct {
	TenantID   string
	IsActive   *bool
	Category   *string
	SourceType *string
}

// Index is the nearest-neighbor store. Search results are ordered score
// descending with ties broken by newest payload CreatedAt, then ID; the
// ordering is deterministic so callers can test against it. ScoreFloor is an
// inclusive lower bound (0 means no floor); the decision threshold is the
// caller's business. Delete is idempotent and synchronous: a search issued
// after Delete returns never sees the deleted ids.
type Index interface {
	Upsert(ctx context.Context, points []Point) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, filter Filter, topK int, scoreFloor float64) ([]ScoredPoint, error)
	Count(ctx context.Context, filter Filter) (int, error)
}
