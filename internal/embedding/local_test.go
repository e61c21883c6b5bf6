package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketmatch/internal/matching"
)

func TestLocalClientDeterministic(t *testing.T) {
	c := NewLocalClient(64, 2000)
	ctx := context.Background()

	a, err := c.Embed(ctx, "upload keeps failing with timeout")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "upload keeps failing with timeout")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestLocalClientNormalized(t *testing.T) {
	c := NewLocalClient(64, 2000)

	vec, err := c.Embed(context.Background(), "dashboard renders a blank page")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalClientSimilarTextScoresHigher(t *testing.T) {
	c := NewLocalClient(256, 2000)
	ctx := context.Background()

	base, _ := c.Embed(ctx, "cannot upload attachment to ticket")
	similar, _ := c.Embed(ctx, "upload attachment fails on ticket")
	unrelated, _ := c.Embed(ctx, "quarterly finance report totals wrong")

	assert.Greater(t, dot(base, similar), dot(base, unrelated))
}

func TestLocalClientEmptyText(t *testing.T) {
	c := NewLocalClient(64, 2000)
	_, err := c.Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, matching.ErrEmptyText)
}

func TestLocalClientEmbedBatchSkipsEmpty(t *testing.T) {
	c := NewLocalClient(64, 2000)

	results, err := c.EmbedBatch(context.Background(), []string{"first text", "", "third text"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
