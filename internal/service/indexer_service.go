package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticketmatch/internal/cache"
	"ticketmatch/internal/embedding"
	"ticketmatch/internal/models"
	"ticketmatch/internal/vectorindex"
	"ticketmatch/pkg/config"
)

// IndexerService consumes ticket lifecycle events and keeps the vector index
// and its relational mirror in step. Record rows are soft-deactivated for
// audit history; the vectors themselves are physically deleted so stale
// content can never surface in a match.
type IndexerService struct {
	issues     IssueStore
	embeddings EmbeddingStore
	embedder   embedding.Client
	index      vectorindex.Index
	cache      cache.Store
	cfg        *config.EmbeddingConfig
	logger     *zap.Logger
}

func NewIndexerService(
	issues IssueStore,
	embeddings EmbeddingStore,
	embedder embedding.Client,
	index vectorindex.Index,
	store cache.Store,
	cfg *config.EmbeddingConfig,
	logger *zap.Logger,
) *IndexerService {
	return &IndexerService{
		issues:     issues,
		embeddings: embeddings,
		embedder:   embedder,
		index:      index,
		cache:      store,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleIssueCreated records the ticket and indexes its subject and
// description. Chunks whose embedding failed are skipped, not fatal: the rest
// of the ticket still becomes searchable.
func (s *IndexerService) HandleIssueCreated(ctx context.Context, issue *models.IssueRecord) error {
	if issue.TenantID == "" {
		return fmt.Errorf("issue %s has no tenant", issue.ID)
	}
	if issue.Category == "" {
		issue.Category = ClassifyCategory(issue.Subject + " " + issue.Description)
	}
	if issue.Status == "" {
		issue.Status = models.IssueStatusOpen
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}

	sources := []struct {
		sourceType models.EmbeddingSourceType
		text       string
	}{
		{models.SourceSubject, issue.Subject},
		{models.SourceDescription, issue.Description},
	}
	for _, src := range sources {
		if err := s.indexText(ctx, issue, src.sourceType, src.text); err != nil {
			return err
		}
	}

	s.invalidateTenant(ctx, issue.TenantID)
	s.logger.Info("Issue indexed",
		zap.String("tenant_id", issue.TenantID),
		zap.String("issue_id", issue.ID.String()),
		zap.String("category", string(issue.Category)),
	)
	return nil
}

// HandleResolutionAdded indexes the resolution text of an issue and marks it
// resolved. Resolutions are what the matcher ultimately surfaces, so a ticket
// without one only ever matches by symptom.
func (s *IndexerService) HandleResolutionAdded(ctx context.Context, tenantID string, issueID uuid.UUID, resolution string) error {
	issue, err := s.issues.GetByID(ctx, tenantID, issueID)
	if err != nil {
		return fmt.Errorf("failed to load issue for resolution: %w", err)
	}

	if err := s.indexText(ctx, issue, models.SourceResolution, resolution); err != nil {
		return err
	}
	if err := s.issues.UpdateStatus(ctx, tenantID, issueID, models.IssueStatusResolved); err != nil {
		return fmt.Errorf("failed to mark issue resolved: %w", err)
	}

	s.invalidateTenant(ctx, tenantID)
	s.logger.Info("Resolution indexed",
		zap.String("tenant_id", tenantID),
		zap.String("issue_id", issueID.String()),
	)
	return nil
}

// HandleIssueStatusChanged reacts to lifecycle transitions. Reopening a
// ticket retires its resolution embeddings: a resolution that did not hold
// must stop being offered as a solution.
func (s *IndexerService) HandleIssueStatusChanged(ctx context.Context, tenantID string, issueID uuid.UUID, status models.IssueStatus) error {
	if err := s.issues.UpdateStatus(ctx, tenantID, issueID, status); err != nil {
		return fmt.Errorf("failed to update issue status: %w", err)
	}
	if status != models.IssueStatusReopened {
		return nil
	}

	records, err := s.embeddings.ActiveByIssue(ctx, tenantID, issueID)
	if err != nil {
		return fmt.Errorf("failed to list embeddings for reopened issue: %w", err)
	}
	var ids []uuid.UUID
	for _, rec := range records {
		if rec.SourceType == models.SourceResolution || rec.SourceType == models.SourceRootCause {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.DeactivateEmbeddings(ctx, tenantID, ids, "issue reopened")
}

// DeactivateEmbeddings soft-flags the records and physically removes their
// vectors. The relational update is authoritative; a failed index deletion is
// logged and retried by the next consistency sweep rather than failing the
// call. Already-inactive records are untouched.
func (s *IndexerService) DeactivateEmbeddings(ctx context.Context, tenantID string, ids []uuid.UUID, reason string) error {
	deactivated, err := s.embeddings.Deactivate(ctx, ids, reason)
	if err != nil {
		return fmt.Errorf("failed to deactivate embeddings: %w", err)
	}
	if len(deactivated) == 0 {
		return nil
	}

	vectorIDs := make([]string, 0, len(deactivated))
	for _, rec := range deactivated {
		vectorIDs = append(vectorIDs, rec.VectorID)
	}
	if err := s.index.Delete(ctx, vectorIDs); err != nil {
		s.logger.Error("Failed to delete vectors for deactivated embeddings",
			zap.String("tenant_id", tenantID),
			zap.Int("count", len(vectorIDs)),
			zap.Error(err),
		)
	}

	s.invalidateTenant(ctx, tenantID)
	s.logger.Info("Embeddings deactivated",
		zap.String("tenant_id", tenantID),
		zap.String("reason", reason),
		zap.Int("count", len(deactivated)),
	)
	return nil
}

// VerifyConsistency compares the active record count with the index count for
// a tenant. Drift is reported, never repaired here: it means a physical
// deletion was lost and the sweep job should reconcile.
func (s *IndexerService) VerifyConsistency(ctx context.Context, tenantID string) error {
	recordCount, err := s.embeddings.ActiveCount(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to count active embeddings: %w", err)
	}
	active := true
	indexCount, err := s.index.Count(ctx, vectorindex.Filter{TenantID: tenantID, IsActive: &active})
	if err != nil {
		return fmt.Errorf("failed to count indexed vectors: %w", err)
	}

	if recordCount != indexCount {
		s.logger.Warn("Embedding records and vector index disagree",
			zap.String("tenant_id", tenantID),
			zap.Int("active_records", recordCount),
			zap.Int("indexed_vectors", indexCount),
		)
	}
	return nil
}

// indexText chunks, embeds and indexes one source field of an issue.
func (s *IndexerService) indexText(ctx context.Context, issue *models.IssueRecord, sourceType models.EmbeddingSourceType, text string) error {
	chunks := chunkText(text, s.cfg.MaxTextLength)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed %s chunks: %w", sourceType, err)
	}

	now := time.Now()
	var points []vectorindex.Point
	for i, vec := range vectors {
		if vec == nil {
			s.logger.Warn("Skipping chunk with failed embedding",
				zap.String("issue_id", issue.ID.String()),
				zap.String("source_type", string(sourceType)),
				zap.Int("chunk_index", i),
			)
			continue
		}

		rec := &models.EmbeddingRecord{
			ID:          uuid.New(),
			TenantID:    issue.TenantID,
			IssueID:     issue.ID,
			Category:    issue.Category,
			SourceType:  sourceType,
			ChunkIndex:  i,
			TextContent: chunks[i],
			VectorID:    uuid.NewString(),
			IsActive:    true,
			CreatedAt:   now,
		}
		if err := s.embeddings.Create(ctx, rec); err != nil {
			return fmt.Errorf("failed to store embedding record: %w", err)
		}

		points = append(points, vectorindex.Point{
			ID:     rec.VectorID,
			Vector: vec,
			Payload: vectorindex.Payload{
				TenantID:   issue.TenantID,
				IssueID:    issue.ID.String(),
				Category:   string(issue.Category),
				SourceType: string(sourceType),
				ChunkIndex: i,
				IsActive:   true,
				CreatedAt:  issue.CreatedAt,
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	if err := s.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("failed to index %s vectors: %w", sourceType, err)
	}
	return nil
}

// invalidateTenant drops the tenant's cached thresholds after any change to
// its corpus. Invalidation failures are logged; the TTL bounds staleness.
func (s *IndexerService) invalidateTenant(ctx context.Context, tenantID string) {
	if _, err := s.cache.InvalidateByTag(ctx, "tenant:"+tenantID); err != nil {
		s.logger.Warn("Failed to invalidate tenant cache",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
}

// chunkText splits text into rune-safe chunks of at most maxLen. Whitespace
// only input produces no chunks.
func chunkText(text string, maxLen int) []string {
	runes := []rune(text)
	trimmed := false
	for _, r := range runes {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			trimmed = true
			break
		}
	}
	if !trimmed || maxLen <= 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
