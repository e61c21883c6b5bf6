package embedding

import (
	"context"
)

// Client turns text into fixed-length vectors. EmbedBatch never lets one
// failed item abort the rest: the result slice always has one element per
// input, nil where that item's embedding failed.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Usage is the cumulative provider consumption of a client, tracked
// best-effort for cost observability.
type Usage struct {
	Requests int64
	Tokens   int64
	Failures int64
}

// Truncate silently caps text at maxLen runes before embedding; oversized
// input is documented behavior, not an error.
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
