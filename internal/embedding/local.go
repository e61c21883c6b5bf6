package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"ticketmatch/internal/matching"
)

// LocalClient is a deterministic, provider-free embedder: each word hashes
// into a fixed number of buckets and the result is L2-normalized. Similar
// wordings land near each other, which is enough for development and for the
// fallback chain when no provider key is configured. Not a substitute for a
// real embedding model.
type LocalClient struct {
	dimensions int
	maxTextLen int
}

func NewLocalClient(dimensions, maxTextLen int) *LocalClient {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &LocalClient{dimensions: dimensions, maxTextLen: maxTextLen}
}

func (c *LocalClient) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, matching.ErrEmptyText
	}
	text = Truncate(text, c.maxTextLen)

	vec := make([]float32, c.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%c.dimensions] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (c *LocalClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			continue
		}
		results[i] = vec
	}
	return results, nil
}
