package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ticketmatch/internal/cache"
	"ticketmatch/internal/embedding"
	"ticketmatch/internal/models"
	"ticketmatch/internal/vectorindex"
	"ticketmatch/pkg/config"
)

const thresholdCacheTag = "thresholds"

// ThresholdService computes, per (tenant, category), the minimum similarity
// that should count as a genuine match. It samples how a category's own
// tickets score against each other and takes a low percentile minus a safety
// margin; categories without enough data fall back to volume-based defaults.
// Estimation never blocks ticket creation: any failure degrades to static
// defaults.
type ThresholdService struct {
	issues   IssueStore
	embedder embedding.Client
	index    vectorindex.Index
	cache    cache.Store
	cfg      *config.MatchingConfig
	logger   *zap.Logger
	group    singleflight.Group
}

func NewThresholdService(
	issues IssueStore,
	embedder embedding.Client,
	index vectorindex.Index,
	store cache.Store,
	cfg *config.MatchingConfig,
	logger *zap.Logger,
) *ThresholdService {
	return &ThresholdService{
		issues:   issues,
		embedder: embedder,
		index:    index,
		cache:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// ThresholdFor resolves the threshold for one category. Unknown or empty
// categories get the global default. Never returns an error.
func (s *ThresholdService) ThresholdFor(ctx context.Context, tenantID string, category models.IssueCategory) float64 {
	thresholds := s.Thresholds(ctx, tenantID)
	if v, ok := thresholds[category]; ok {
		return v
	}
	return s.defaultFor(category)
}

// Thresholds returns the full per-category map for a tenant, cached for the
// configured TTL. Concurrent callers during a recompute share one flight.
func (s *ThresholdService) Thresholds(ctx context.Context, tenantID string) map[models.IssueCategory]float64 {
	key := "thresholds:" + tenantID

	if entry, err := s.cache.Get(ctx, key); err == nil && entry != nil {
		var cached map[models.IssueCategory]float64
		if err := json.Unmarshal(entry.Value, &cached); err == nil {
			return cached
		}
	}

	v, _, _ := s.group.Do(tenantID, func() (interface{}, error) {
		thresholds := s.compute(ctx, tenantID)

		if payload, err := json.Marshal(thresholds); err == nil {
			tags := []string{thresholdCacheTag, "tenant:" + tenantID}
			if err := s.cache.Set(ctx, key, payload, s.cfg.ThresholdTTL, tags); err != nil {
				s.logger.Warn("Failed to cache thresholds",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
			}
		}
		return thresholds, nil
	})
	return v.(map[models.IssueCategory]float64)
}

// compute runs the sampling algorithm for every category the tenant has
// data for and fills the rest with defaults.
func (s *ThresholdService) compute(ctx context.Context, tenantID string) map[models.IssueCategory]float64 {
	thresholds := s.staticDefaults()

	counts, err := s.issues.CountsByCategory(ctx, tenantID)
	if err != nil {
		s.logger.Warn("Threshold computation degraded to defaults",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return thresholds
	}

	for category, count := range counts {
		if category == "" || count == 0 {
			continue
		}
		thresholds[category] = s.computeForCategory(ctx, tenantID, category, count)
	}

	s.logger.Info("Thresholds recomputed",
		zap.String("tenant_id", tenantID),
		zap.Int("categories_with_data", len(counts)),
	)
	return thresholds
}

func (s *ThresholdService) computeForCategory(ctx context.Context, tenantID string, category models.IssueCategory, count int) float64 {
	reps, err := s.issues.RecentByCategory(ctx, tenantID, category, s.cfg.SampleSize)
	if err != nil || len(reps) == 0 {
		return s.volumeFallback(count)
	}

	// Each representative is embedded and searched independently; one
	// failing probe never aborts the others.
	var mu sync.Mutex
	var scores []float64
	g, gctx := errgroup.WithContext(ctx)
	for _, rep := range reps {
		rep := rep
		g.Go(func() error {
			repScores, err := s.probe(gctx, tenantID, rep)
			if err != nil {
				s.logger.Warn("Threshold probe failed",
					zap.String("tenant_id", tenantID),
					zap.String("issue_id", rep.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			scores = append(scores, repScores...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(scores) == 0 {
		// No same-category neighbors: new or singleton categories demand a
		// tighter match the fewer examples exist.
		return s.volumeFallback(count)
	}

	sort.Float64s(scores)
	idx := int(math.Floor(float64(len(scores)) * s.cfg.Percentile))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	value := scores[idx] - s.cfg.SafetyMargin
	return s.clamp(value)
}

// probe embeds one representative and collects the similarity scores of its
// same-category neighbors. The search is tenant-scoped but deliberately not
// category-scoped: the point is to observe what the category's own items
// score inside the tenant's full corpus.
func (s *ThresholdService) probe(ctx context.Context, tenantID string, rep *models.IssueRecord) ([]float64, error) {
	vec, err := s.embedder.Embed(ctx, rep.Subject+" "+rep.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to embed representative: %w", err)
	}

	active := true
	results, err := s.index.Search(ctx, vec, vectorindex.Filter{
		TenantID: tenantID,
		IsActive: &active,
	}, s.cfg.SampleTopK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search representatives: %w", err)
	}

	repID := rep.ID.String()
	var scores []float64
	for _, r := range results {
		if r.Payload.IssueID == repID {
			continue
		}
		if r.Payload.Category != string(rep.Category) {
			continue
		}
		scores = append(scores, r.Score)
	}
	return scores, nil
}

func (s *ThresholdService) volumeFallback(count int) float64 {
	switch {
	case count >= 3:
		return 0.50
	case count == 2:
		return 0.55
	default:
		return 0.60
	}
}

func (s *ThresholdService) clamp(v float64) float64 {
	if v < s.cfg.MinThreshold {
		return s.cfg.MinThreshold
	}
	if v > s.cfg.MaxThreshold {
		return s.cfg.MaxThreshold
	}
	return v
}

// staticDefaults seeds every known category with its no-data default.
func (s *ThresholdService) staticDefaults() map[models.IssueCategory]float64 {
	thresholds := make(map[models.IssueCategory]float64, len(models.AllCategories()))
	for _, category := range models.AllCategories() {
		thresholds[category] = s.defaultFor(category)
	}
	return thresholds
}

// defaultFor gives Performance and Workflow a looser default; both
// empirically tolerate looser matching.
func (s *ThresholdService) defaultFor(category models.IssueCategory) float64 {
	if category == models.CategoryPerformance || category == models.CategoryWorkflow {
		return s.cfg.RelaxedThreshold
	}
	return s.cfg.DefaultThreshold
}
