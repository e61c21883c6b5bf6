package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"ticketmatch/internal/cache"
	"ticketmatch/internal/matching"
	"ticketmatch/pkg/config"
	"ticketmatch/pkg/metrics"
)

const cacheTag = "embeddings"

// HTTPClient talks to an OpenAI-compatible /v1/embeddings endpoint. Identical
// text hits the cache instead of the provider; transient provider failures
// are retried with exponential backoff; a weighted semaphore caps in-flight
// provider calls. That ceiling is an external rate-limit contract, not a
// tuning knob.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxTextLen int

	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	sem      *semaphore.Weighted
	cache    cache.Store
	cacheTTL time.Duration

	logger  *zap.Logger
	metrics *metrics.Metrics

	requests atomic.Int64
	tokens   atomic.Int64
	failures atomic.Int64
}

func NewHTTPClient(cfg *config.EmbeddingConfig, store cache.Store, logger *zap.Logger, m *metrics.Metrics) *HTTPClient {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	inFlight := cfg.MaxInFlight
	if inFlight <= 0 {
		inFlight = 5
	}
	return &HTTPClient{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		maxTextLen:  cfg.MaxTextLength,
		maxAttempts: maxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		sem:         semaphore.NewWeighted(inFlight),
		cache:       store,
		cacheTTL:    cfg.CacheTTL,
		logger:      logger,
		metrics:     m,
	}
}

// Usage reports cumulative provider consumption since construction.
func (c *HTTPClient) Usage() Usage {
	return Usage{
		Requests: c.requests.Load(),
		Tokens:   c.tokens.Load(),
		Failures: c.failures.Load(),
	}
}

func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, matching.ErrEmptyText
	}
	text = Truncate(text, c.maxTextLen)

	key := c.cacheKey(text)
	if c.cache != nil {
		if entry, err := c.cache.Get(ctx, key); err == nil && entry != nil {
			if vec, err := DecodeVector(entry.Value); err == nil {
				return vec, nil
			}
		}
	}

	vec, err := c.embedRemote(ctx, text)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, EncodeVector(vec), c.cacheTTL, []string{cacheTag}); err != nil {
			c.logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}
	return vec, nil
}

// EmbedBatch embeds each item independently so a single provider failure
// yields a nil at that index while the rest of the batch survives.
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			vec, err := c.Embed(ctx, text)
			if err != nil {
				c.logger.Warn("Batch item embedding failed",
					zap.Int("index", i),
					zap.Error(err),
				)
				return
			}
			results[i] = vec
		}(i, text)
	}
	wg.Wait()
	return results, nil
}

func (c *HTTPClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

// embedRemote performs the provider call with the concurrency ceiling and
// retry policy applied.
func (c *HTTPClient) embedRemote(ctx context.Context, text string) ([]float32, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			// Backoff must not outlive the caller's deadline.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		vec, err := c.callProvider(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
		c.logger.Warn("Embedding attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	c.failures.Add(1)
	c.metrics.EmbeddingFailure()
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// backoff returns the delay before retry attempt (0-based); exponential with
// a cap.
func (c *HTTPClient) backoff(attempt int) time.Duration {
	d := c.backoffBase
	for i := 0; i < attempt && d < c.backoffCap; i++ {
		d *= 2
	}
	if d > c.backoffCap {
		d = c.backoffCap
	}
	return d
}

type providerError struct {
	status int
	body   string
}

func (e *providerError) Error() string {
	return fmt.Sprintf("embedding provider returned status %d: %s", e.status, e.body)
}

// isTransient reports whether the failure is worth retrying: rate limits,
// server-side errors and connection-level failures.
func isTransient(err error) bool {
	var pe *providerError
	if errors.As(err, &pe) {
		return pe.status == http.StatusTooManyRequests ||
			pe.status == http.StatusRequestTimeout ||
			pe.status >= 500
	}
	// Connection resets, DNS failures and timeouts surface as transport
	// errors without a status.
	return true
}

func (c *HTTPClient) callProvider(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"input": []string{text},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.requests.Add(1)
	c.metrics.EmbeddingRequest()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &providerError{status: resp.StatusCode, body: string(bodyBytes)}
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	c.tokens.Add(int64(out.Usage.TotalTokens))
	c.metrics.AddEmbeddingTokens(out.Usage.TotalTokens)

	vec := out.Data[0].Embedding
	if c.dimensions > 0 && len(vec) != c.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), c.dimensions)
	}
	return vec, nil
}
