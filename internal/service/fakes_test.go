package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticketmatch/internal/models"
	"ticketmatch/internal/vectorindex"
	"ticketmatch/pkg/config"
)

// Fakes shared by the service tests. They implement the narrow store
// contracts in memory with optional injected failures.

type fakeIssueStore struct {
	mu        sync.Mutex
	issues    map[uuid.UUID]*models.IssueRecord
	recent    map[models.IssueCategory][]*models.IssueRecord
	counts    map[models.IssueCategory]int
	countsErr error

	countsCalls int
}

func newFakeIssueStore() *fakeIssueStore {
	return &fakeIssueStore{
		issues: make(map[uuid.UUID]*models.IssueRecord),
		recent: make(map[models.IssueCategory][]*models.IssueRecord),
		counts: make(map[models.IssueCategory]int),
	}
}

func (f *fakeIssueStore) Create(_ context.Context, issue *models.IssueRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues[issue.ID] = issue
	return nil
}

func (f *fakeIssueStore) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*models.IssueRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[id]
	if !ok || issue.TenantID != tenantID {
		return nil, errors.New("issue not found")
	}
	return issue, nil
}

func (f *fakeIssueStore) UpdateStatus(_ context.Context, tenantID string, id uuid.UUID, status models.IssueStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[id]
	if !ok || issue.TenantID != tenantID {
		return errors.New("issue not found")
	}
	issue.Status = status
	return nil
}

func (f *fakeIssueStore) RecentByCategory(_ context.Context, _ string, category models.IssueCategory, limit int) ([]*models.IssueRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reps := f.recent[category]
	if len(reps) > limit {
		reps = reps[:limit]
	}
	return reps, nil
}

func (f *fakeIssueStore) CountsByCategory(_ context.Context, _ string) (map[models.IssueCategory]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countsCalls++
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	out := make(map[models.IssueCategory]int, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out, nil
}

type fakeEmbeddingStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.EmbeddingRecord
}

func newFakeEmbeddingStore() *fakeEmbeddingStore {
	return &fakeEmbeddingStore{records: make(map[uuid.UUID]*models.EmbeddingRecord)}
}

func (f *fakeEmbeddingStore) Create(_ context.Context, rec *models.EmbeddingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *rec
	f.records[rec.ID] = &clone
	return nil
}

func (f *fakeEmbeddingStore) Deactivate(_ context.Context, ids []uuid.UUID, reason string) ([]*models.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deactivated []*models.EmbeddingRecord
	for _, id := range ids {
		rec, ok := f.records[id]
		if !ok || !rec.IsActive {
			continue
		}
		rec.IsActive = false
		rec.DeprecatedReason = reason
		deactivated = append(deactivated, rec)
	}
	return deactivated, nil
}

func (f *fakeEmbeddingStore) ActiveByIssue(_ context.Context, tenantID string, issueID uuid.UUID) ([]*models.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.EmbeddingRecord
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.IssueID == issueID && rec.IsActive {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeEmbeddingStore) ActiveCount(_ context.Context, tenantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.records {
		if rec.TenantID == tenantID && rec.IsActive {
			count++
		}
	}
	return count, nil
}

// fakeEmbedder returns a fixed vector, with optional per-text failures.
type fakeEmbedder struct {
	vec      []float32
	err      error
	failOn   map[string]bool
	mu       sync.Mutex
	embedded []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.embedded = append(f.embedded, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn[text] {
		return nil, errors.New("provider unavailable")
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			continue
		}
		results[i] = vec
	}
	return results, nil
}

// fakeSearchIndex serves canned search results; writes are recorded.
type fakeSearchIndex struct {
	mu        sync.Mutex
	results   []vectorindex.ScoredPoint
	searchErr error
	upserted  []vectorindex.Point
	deleted   []string
	deleteErr error
	count     int
}

func (f *fakeSearchIndex) Upsert(_ context.Context, points []vectorindex.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeSearchIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeSearchIndex) Search(_ context.Context, _ []float32, filter vectorindex.Filter, topK int, _ float64) ([]vectorindex.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []vectorindex.ScoredPoint
	for _, r := range f.results {
		if r.Payload.TenantID != filter.TenantID {
			continue
		}
		if filter.IsActive != nil && r.Payload.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, r)
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeSearchIndex) Count(_ context.Context, _ vectorindex.Filter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

// fixedThresholds always answers with one value.
type fixedThresholds struct {
	value float64
}

func (f fixedThresholds) ThresholdFor(context.Context, string, models.IssueCategory) float64 {
	return f.value
}

func testMatchingConfig() *config.MatchingConfig {
	return &config.MatchingConfig{
		MinQueryLength:   10,
		DefaultLimit:     5,
		MaxLimit:         20,
		TopKMultiplier:   2,
		SampleSize:       3,
		SampleTopK:       10,
		Percentile:       0.25,
		SafetyMargin:     0.05,
		MinThreshold:     0.45,
		MaxThreshold:     0.70,
		DefaultThreshold: 0.55,
		RelaxedThreshold: 0.50,
		ThresholdTTL:     time.Hour,
	}
}
