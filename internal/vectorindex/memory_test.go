package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketmatch/internal/matching"
)

func point(id, tenant string, vec []float32, mutate ...func(*Payload)) Point {
	p := Point{
		ID:     id,
		Vector: vec,
		Payload: Payload{
			TenantID:   tenant,
			IssueID:    "issue-" + id,
			Category:   "Other",
			SourceType: "description",
			IsActive:   true,
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, fn := range mutate {
		fn(&p.Payload)
	}
	return p
}

func TestMemoryIndexSearchOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	query := []float32{1, 0, 0}
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("a", "t1", []float32{1, 0, 0}, func(p *Payload) { p.CreatedAt = older }),
		point("b", "t1", []float32{1, 0, 0}, func(p *Payload) { p.CreatedAt = newer }),
		point("c", "t1", []float32{0.5, 0.5, 0}),
		point("d", "t1", []float32{0, 1, 0}),
	}))

	results, err := idx.Search(ctx, query, Filter{TenantID: "t1"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Equal scores break newest-first, then id.
	assert.Equal(t, "b", results[0].ID)
	assert.Equal(t, "a", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
	assert.Equal(t, "d", results[3].ID)
	assert.Greater(t, results[0].Score, results[2].Score)
}

func TestMemoryIndexSearchDeterministicTieBreak(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	// Identical vectors and timestamps: ordering falls back to id.
	require.NoError(t, idx.Upsert(ctx, []Point{
		point("z", "t1", []float32{1, 0}),
		point("a", "t1", []float32{1, 0}),
		point("m", "t1", []float32{1, 0}),
	}))

	for i := 0; i < 5; i++ {
		results, err := idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1"}, 10, 0)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "m", results[1].ID)
		assert.Equal(t, "z", results[2].ID)
	}
}

func TestMemoryIndexTenantIsolation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("a", "t1", []float32{1, 0}),
		point("b", "t2", []float32{1, 0}),
	}))

	results, err := idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	_, err = idx.Search(ctx, []float32{1, 0}, Filter{}, 10, 0)
	assert.ErrorIs(t, err, matching.ErrTenantRequired)

	_, err = idx.Count(ctx, Filter{})
	assert.ErrorIs(t, err, matching.ErrTenantRequired)
}

func TestMemoryIndexFilters(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("active", "t1", []float32{1, 0}),
		point("inactive", "t1", []float32{1, 0}, func(p *Payload) { p.IsActive = false }),
		point("perf", "t1", []float32{1, 0}, func(p *Payload) { p.Category = "Performance" }),
		point("resolution", "t1", []float32{1, 0}, func(p *Payload) { p.SourceType = "resolution" }),
	}))

	active := true
	results, err := idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1", IsActive: &active}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, results, 3, "inactive points are filtered out")

	perf := "Performance"
	results, err = idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1", Category: &perf}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "perf", results[0].ID)

	resolution := "resolution"
	results, err = idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1", SourceType: &resolution}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "resolution", results[0].ID)
}

func TestMemoryIndexScoreFloorInclusive(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("exact", "t1", []float32{1, 0}),
		point("orthogonal", "t1", []float32{0, 1}),
	}))

	results, err := idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1"}, 10, 1.0)
	require.NoError(t, err)
	require.Len(t, results, 1, "a score equal to the floor is kept")
	assert.Equal(t, "exact", results[0].ID)
}

func TestMemoryIndexTopK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("a", "t1", []float32{1, 0}),
		point("b", "t1", []float32{0.9, 0.1}),
		point("c", "t1", []float32{0.8, 0.2}),
	}))

	results, err := idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1"}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryIndexDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{point("a", "t1", []float32{1, 0})}))

	require.NoError(t, idx.Delete(ctx, []string{"a", "never-existed"}))
	require.NoError(t, idx.Delete(ctx, []string{"a"}))

	count, err := idx.Count(ctx, Filter{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryIndexDeleteSynchronous(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{
		point("a", "t1", []float32{1, 0}),
		point("b", "t1", []float32{1, 0}),
	}))
	require.NoError(t, idx.Delete(ctx, []string{"a"}))

	results, err := idx.Search(ctx, []float32{1, 0}, Filter{TenantID: "t1"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, []Point{point("a", "t1", []float32{1, 0})}))
	require.NoError(t, idx.Upsert(ctx, []Point{point("a", "t1", []float32{0, 1})}))

	results, err := idx.Search(ctx, []float32{0, 1}, Filter{TenantID: "t1"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}
