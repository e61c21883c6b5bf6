package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticketmatch/internal/matching"
	"ticketmatch/internal/models"
	"ticketmatch/internal/vectorindex"
)

func matchResult(tenant string, issueID uuid.UUID, score float64, chunkIndex int, createdAt time.Time) vectorindex.ScoredPoint {
	return vectorindex.ScoredPoint{
		ID:    uuid.NewString(),
		Score: score,
		Payload: vectorindex.Payload{
			TenantID:   tenant,
			IssueID:    issueID.String(),
			Category:   string(models.CategoryOther),
			SourceType: string(models.SourceResolution),
			ChunkIndex: chunkIndex,
			IsActive:   true,
			CreatedAt:  createdAt,
		},
	}
}

func newMatcherFixture(index *fakeSearchIndex, threshold float64) *MatcherService {
	return NewMatcherService(
		fixedThresholds{value: threshold},
		&fakeEmbedder{vec: []float32{1, 0, 0}},
		index,
		testMatchingConfig(),
		zap.NewNop(),
		nil,
	)
}

func TestFindSolutionQueryTooShort(t *testing.T) {
	s := newMatcherFixture(&fakeSearchIndex{}, 0.5)

	_, err := s.FindSolution(context.Background(), FindQuery{TenantID: "t1", Text: "too short"})
	assert.ErrorIs(t, err, matching.ErrQueryTooShort)

	// Whitespace does not count toward the minimum.
	_, err = s.FindSolution(context.Background(), FindQuery{TenantID: "t1", Text: "   short    "})
	assert.ErrorIs(t, err, matching.ErrQueryTooShort)
}

func TestFindSolutionTenantRequired(t *testing.T) {
	s := newMatcherFixture(&fakeSearchIndex{}, 0.5)

	_, err := s.FindSolution(context.Background(), FindQuery{Text: "a perfectly valid query"})
	assert.ErrorIs(t, err, matching.ErrTenantRequired)
}

func TestFindSolutionMatched(t *testing.T) {
	best := uuid.New()
	other := uuid.New()
	now := time.Now()
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", best, 0.85, 0, now),
		matchResult("t1", other, 0.70, 0, now),
		matchResult("t1", uuid.New(), 0.40, 0, now), // below threshold
	}}
	s := newMatcherFixture(index, 0.5)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "upload fails with a timeout error",
	})
	require.NoError(t, err)

	assert.Equal(t, matching.StatusMatched, decision.Status)
	require.NotNil(t, decision.Match)
	assert.Equal(t, best, decision.Match.IssueID)
	assert.InDelta(t, 0.85, decision.Match.Score, 1e-9)
	require.Len(t, decision.Alternates, 1)
	assert.Equal(t, other, decision.Alternates[0].IssueID)
	assert.InDelta(t, 0.5, decision.ThresholdUsed, 1e-9)
}

func TestFindSolutionNoMatch(t *testing.T) {
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", uuid.New(), 0.30, 0, time.Now()),
	}}
	s := newMatcherFixture(index, 0.55)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "never seen anything like this",
	})
	require.NoError(t, err)

	assert.Equal(t, matching.StatusNoMatch, decision.Status)
	assert.Nil(t, decision.Match)
	assert.Empty(t, decision.Alternates)
	assert.InDelta(t, 0.55, decision.ThresholdUsed, 1e-9, "no-match still reports the threshold applied")
}

func TestFindSolutionThresholdInclusive(t *testing.T) {
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", uuid.New(), 0.55, 0, time.Now()),
	}}
	s := newMatcherFixture(index, 0.55)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "score exactly at the threshold",
	})
	require.NoError(t, err)
	assert.Equal(t, matching.StatusMatched, decision.Status, "a score equal to the threshold counts")
}

func TestFindSolutionDedupKeepsBestChunk(t *testing.T) {
	issue := uuid.New()
	now := time.Now()
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", issue, 0.80, 2, now),
		matchResult("t1", issue, 0.90, 5, now),
		matchResult("t1", issue, 0.70, 0, now),
	}}
	s := newMatcherFixture(index, 0.5)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "several chunks of one issue",
	})
	require.NoError(t, err)

	require.NotNil(t, decision.Match)
	assert.Equal(t, issue, decision.Match.IssueID)
	assert.InDelta(t, 0.90, decision.Match.Score, 1e-9, "highest-scoring chunk represents the issue")
	assert.Equal(t, 5, decision.Match.ChunkIndex)
	assert.Empty(t, decision.Alternates, "one issue yields one candidate")
}

func TestFindSolutionDedupTieBreaksOnChunkIndex(t *testing.T) {
	issue := uuid.New()
	now := time.Now()
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", issue, 0.80, 3, now),
		matchResult("t1", issue, 0.80, 1, now),
	}}
	s := newMatcherFixture(index, 0.5)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "two chunks with equal scores",
	})
	require.NoError(t, err)
	require.NotNil(t, decision.Match)
	assert.Equal(t, 1, decision.Match.ChunkIndex, "equal scores prefer the earlier chunk")
}

func TestFindSolutionOrderingAcrossIssues(t *testing.T) {
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", a, 0.80, 0, older),
		matchResult("t1", b, 0.80, 0, newer),
		matchResult("t1", c, 0.90, 0, older),
	}}
	s := newMatcherFixture(index, 0.5)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "ordering across distinct issues",
	})
	require.NoError(t, err)

	require.NotNil(t, decision.Match)
	assert.Equal(t, c, decision.Match.IssueID, "highest score first")
	require.Len(t, decision.Alternates, 2)
	assert.Equal(t, b, decision.Alternates[0].IssueID, "equal scores break newest issue first")
	assert.Equal(t, a, decision.Alternates[1].IssueID)
}

func TestFindSolutionLimit(t *testing.T) {
	now := time.Now()
	index := &fakeSearchIndex{}
	for i := 0; i < 8; i++ {
		index.results = append(index.results, matchResult("t1", uuid.New(), 0.9-float64(i)*0.01, 0, now))
	}
	s := newMatcherFixture(index, 0.5)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "many candidate issues exist",
		Limit:    3,
	})
	require.NoError(t, err)
	require.NotNil(t, decision.Match)
	assert.Len(t, decision.Alternates, 2, "limit covers match plus alternates")
}

func TestFindSolutionTenantIsolation(t *testing.T) {
	foreign := uuid.New()
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t2", foreign, 0.95, 0, time.Now()),
	}}
	s := newMatcherFixture(index, 0.5)

	decision, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "identical issue in another tenant",
	})
	require.NoError(t, err)
	assert.Equal(t, matching.StatusNoMatch, decision.Status, "another tenant's data must never surface")
}

func TestFindSolutionEmbedFailurePropagates(t *testing.T) {
	s := NewMatcherService(
		fixedThresholds{value: 0.5},
		&fakeEmbedder{err: errors.New("provider down")},
		&fakeSearchIndex{},
		testMatchingConfig(),
		zap.NewNop(),
		nil,
	)

	_, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "embedding is unavailable right now",
	})
	require.Error(t, err, "a failed match attempt must not read as no-match")
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestFindSolutionSearchFailurePropagates(t *testing.T) {
	index := &fakeSearchIndex{searchErr: errors.New("index down")}
	s := newMatcherFixture(index, 0.5)

	_, err := s.FindSolution(context.Background(), FindQuery{
		TenantID: "t1",
		Text:     "vector index is unavailable",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to search solutions")
}

func TestShouldCreateNewTicket(t *testing.T) {
	issue := uuid.New()
	index := &fakeSearchIndex{results: []vectorindex.ScoredPoint{
		matchResult("t1", issue, 0.85, 0, time.Now()),
	}}
	s := newMatcherFixture(index, 0.5)

	ctx := context.Background()
	create, err := s.ShouldCreateNewTicket(ctx, FindQuery{TenantID: "t1", Text: "a known recurring problem"})
	require.NoError(t, err)
	assert.False(t, create, "an existing match means no new ticket")

	index.results = nil
	create, err = s.ShouldCreateNewTicket(ctx, FindQuery{TenantID: "t1", Text: "a genuinely novel problem"})
	require.NoError(t, err)
	assert.True(t, create)
}
