package dto

import (
	"time"

	"ticketmatch/internal/matching"
)

type MatchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type CandidateResponse struct {
	IssueID        string    `json:"issue_id"`
	Score          float64   `json:"score"`
	Category       string    `json:"category"`
	SourceType     string    `json:"source_type"`
	ChunkIndex     int       `json:"chunk_index"`
	IssueCreatedAt time.Time `json:"issue_created_at"`
}

// MatchResponse renders both decision variants: "matched" carries the best
// candidate plus alternates, "no_match" carries only the threshold that was
// applied. A no-match is a successful response, never an error status.
type MatchResponse struct {
	Status        string              `json:"status"`
	Match         *CandidateResponse  `json:"match,omitempty"`
	Alternates    []CandidateResponse `json:"alternates,omitempty"`
	ThresholdUsed float64             `json:"threshold_used"`
}

type CheckResponse struct {
	CreateNewTicket bool    `json:"create_new_ticket"`
	ThresholdUsed   float64 `json:"threshold_used"`
}

func NewMatchResponse(d *matching.Decision) MatchResponse {
	resp := MatchResponse{
		Status:        string(d.Status),
		ThresholdUsed: d.ThresholdUsed,
	}
	if d.Match != nil {
		m := newCandidateResponse(*d.Match)
		resp.Match = &m
	}
	for _, alt := range d.Alternates {
		resp.Alternates = append(resp.Alternates, newCandidateResponse(alt))
	}
	return resp
}

func newCandidateResponse(c matching.Candidate) CandidateResponse {
	return CandidateResponse{
		IssueID:        c.IssueID.String(),
		Score:          c.Score,
		Category:       string(c.Category),
		SourceType:     string(c.SourceType),
		ChunkIndex:     c.ChunkIndex,
		IssueCreatedAt: c.IssueCreatedAt,
	}
}
