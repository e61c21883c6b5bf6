package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"ticketmatch/internal/matching"
)

// MemoryIndex is a map-backed Index with the same filtering and ordering
// semantics as the pgvector implementation. Used in tests and provider-less
// development.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, filter Filter, topK int, scoreFloor float64) ([]ScoredPoint, error) {
	if filter.TenantID == "" {
		return nil, matching.ErrTenantRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []ScoredPoint
	for _, p := range m.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		score := cosineSimilarity(vector, p.Vector)
		if score < scoreFloor {
			continue
		}
		results = append(results, ScoredPoint{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sortScored(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Count(_ context.Context, filter Filter) (int, error) {
	if filter.TenantID == "" {
		return 0, matching.ErrTenantRequired
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, p := range m.points {
		if matchesFilter(p.Payload, filter) {
			count++
		}
	}
	return count, nil
}

func matchesFilter(p Payload, f Filter) bool {
	if p.TenantID != f.TenantID {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.Category != nil && p.Category != *f.Category {
		return false
	}
	if f.SourceType != nil && p.SourceType != *f.SourceType {
		return false
	}
	return true
}

// sortScored applies the contract ordering: score desc, newest first, id asc.
func sortScored(results []ScoredPoint) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Payload.CreatedAt.Equal(results[j].Payload.CreatedAt) {
			return results[i].Payload.CreatedAt.After(results[j].Payload.CreatedAt)
		}
		return results[i].ID < results[j].ID
	})
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
