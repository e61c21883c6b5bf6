package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticketmatch/internal/embedding"
	"ticketmatch/internal/matching"
	"ticketmatch/internal/models"
	"ticketmatch/internal/vectorindex"
	"ticketmatch/pkg/config"
	"ticketmatch/pkg/metrics"
)

// ThresholdProvider resolves the decision threshold for a tenant/category.
type ThresholdProvider interface {
	ThresholdFor(ctx context.Context, tenantID string, category models.IssueCategory) float64
}

// FindQuery is one deduplication request. Category is optional; when absent
// the keyword classifier infers one. Limit caps the returned candidates
// (primary + alternates) and defaults from config.
type FindQuery struct {
	TenantID string
	Text     string
	Category models.IssueCategory
	Limit    int
}

// MatcherService orchestrates a query through threshold resolution,
// embedding, tenant-scoped search, threshold filtering and per-issue
// deduplication. Embedding or search failures propagate as errors: a failed
// match attempt must never masquerade as "no match found".
type MatcherService struct {
	thresholds ThresholdProvider
	embedder   embedding.Client
	index      vectorindex.Index
	cfg        *config.MatchingConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewMatcherService(
	thresholds ThresholdProvider,
	embedder embedding.Client,
	index vectorindex.Index,
	cfg *config.MatchingConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *MatcherService {
	return &MatcherService{
		thresholds: thresholds,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

func (s *MatcherService) FindSolution(ctx context.Context, q FindQuery) (*matching.Decision, error) {
	if q.TenantID == "" {
		return nil, matching.ErrTenantRequired
	}
	text := strings.TrimSpace(q.Text)
	if len([]rune(text)) < s.cfg.MinQueryLength {
		return nil, matching.ErrQueryTooShort
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	category := q.Category
	if category == "" {
		category = ClassifyCategory(text)
	}

	// Threshold resolution degrades internally; it never fails the match.
	threshold := s.thresholds.ThresholdFor(ctx, q.TenantID, category)

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Search is category-unfiltered so a highly similar ticket filed under a
	// neighboring category can still surface; topK leaves headroom for the
	// per-issue dedup below.
	active := true
	results, err := s.index.Search(ctx, vec, vectorindex.Filter{
		TenantID: q.TenantID,
		IsActive: &active,
	}, limit*s.cfg.TopKMultiplier, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search solutions: %w", err)
	}

	candidates := s.rank(results, threshold)

	if len(candidates) == 0 {
		s.metrics.MatchDecision(string(matching.StatusNoMatch))
		s.logger.Info("No solution matched",
			zap.String("tenant_id", q.TenantID),
			zap.String("category", string(category)),
			zap.Float64("threshold", threshold),
		)
		return &matching.Decision{
			Status:        matching.StatusNoMatch,
			ThresholdUsed: threshold,
		}, nil
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	decision := &matching.Decision{
		Status:        matching.StatusMatched,
		Match:         &candidates[0],
		Alternates:    candidates[1:],
		ThresholdUsed: threshold,
	}

	s.metrics.MatchDecision(string(matching.StatusMatched))
	s.logger.Info("Solution matched",
		zap.String("tenant_id", q.TenantID),
		zap.String("issue_id", decision.Match.IssueID.String()),
		zap.Float64("score", decision.Match.Score),
		zap.Float64("threshold", threshold),
		zap.Int("alternates", len(decision.Alternates)),
	)
	return decision, nil
}

// ShouldCreateNewTicket reports whether no existing ticket answers the query.
func (s *MatcherService) ShouldCreateNewTicket(ctx context.Context, q FindQuery) (bool, error) {
	decision, err := s.FindSolution(ctx, q)
	if err != nil {
		return false, err
	}
	return decision.Status == matching.StatusNoMatch, nil
}

// rank drops results below the threshold, keeps the best chunk per issue and
// orders candidates by score desc, then smaller chunk index (earlier content
// represents the issue's essence better), then newest issue.
func (s *MatcherService) rank(results []vectorindex.ScoredPoint, threshold float64) []matching.Candidate {
	best := make(map[string]matching.Candidate)
	for _, r := range results {
		if r.Score < threshold {
			continue
		}
		candidate, err := toCandidate(r)
		if err != nil {
			s.logger.Warn("Skipping malformed search result", zap.String("point_id", r.ID), zap.Error(err))
			continue
		}
		current, ok := best[r.Payload.IssueID]
		if !ok || betterChunk(candidate, current) {
			best[r.Payload.IssueID] = candidate
		}
	}

	candidates := make([]matching.Candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].ChunkIndex != candidates[j].ChunkIndex {
			return candidates[i].ChunkIndex < candidates[j].ChunkIndex
		}
		return candidates[i].IssueCreatedAt.After(candidates[j].IssueCreatedAt)
	})
	return candidates
}

// betterChunk decides which chunk represents an issue: higher score wins,
// equal scores prefer the earlier chunk.
func betterChunk(a, b matching.Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ChunkIndex < b.ChunkIndex
}

func toCandidate(r vectorindex.ScoredPoint) (matching.Candidate, error) {
	issueID, err := uuid.Parse(r.Payload.IssueID)
	if err != nil {
		return matching.Candidate{}, fmt.Errorf("invalid issue id %q: %w", r.Payload.IssueID, err)
	}
	return matching.Candidate{
		IssueID:        issueID,
		Score:          r.Score,
		Category:       models.IssueCategory(r.Payload.Category),
		SourceType:     models.EmbeddingSourceType(r.Payload.SourceType),
		ChunkIndex:     r.Payload.ChunkIndex,
		IssueCreatedAt: r.Payload.CreatedAt,
	}, nil
}
