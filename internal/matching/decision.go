package matching

import (
	"time"

	"github.com/google/uuid"

	"ticketmatch/internal/models"
)

type Status string

const (
	StatusMatched Status = "matched"
	StatusNoMatch Status = "no_match"
)

// Candidate is one existing ticket surfaced as a possible duplicate. Score is
// the cosine similarity of the best-scoring chunk of that ticket.
type Candidate struct {
	IssueID        uuid.UUID
	Score          float64
	Category       models.IssueCategory
	SourceType     models.EmbeddingSourceType
	ChunkIndex     int
	IssueCreatedAt time.Time
}

// Decision is the entire surface the matcher exposes upward. A no_match
// decision is a normal outcome and carries the threshold that was applied;
// a failed match attempt is an error, never an empty decision. The caller
// must be able to tell "nothing similar exists" from "matching is down".
type Decision struct {
	Status        Status
	Match         *Candidate
	Alternates    []Candidate
	ThresholdUsed float64
}
