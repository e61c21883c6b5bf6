package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticketmatch/internal/dto"
	"ticketmatch/internal/models"
	"ticketmatch/internal/service"
)

type EventHandler struct {
	indexer *service.IndexerService
	logger  *zap.Logger
}

func NewEventHandler(indexer *service.IndexerService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		indexer: indexer,
		logger:  logger,
	}
}

func (h *EventHandler) IssueCreated(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var event dto.IssueCreatedEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	issueID, err := uuid.Parse(event.IssueID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid issue ID",
		})
	}
	if event.Subject == "" && event.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Subject or description is required",
		})
	}

	issue := &models.IssueRecord{
		ID:          issueID,
		TenantID:    tenantID,
		Category:    models.IssueCategory(event.Category),
		Subject:     event.Subject,
		Description: event.Description,
		Status:      models.IssueStatusOpen,
	}
	if event.CreatedAt != "" {
		if createdAt, err := time.Parse(time.RFC3339, event.CreatedAt); err == nil {
			issue.CreatedAt = createdAt
		}
	}

	if err := h.indexer.HandleIssueCreated(c.Context(), issue); err != nil {
		h.logger.Error("Failed to ingest issue", zap.String("issue_id", event.IssueID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest issue",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.EventAcceptedResponse{Status: "accepted"})
}

func (h *EventHandler) StatusChanged(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var event dto.StatusChangedEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	issueID, err := uuid.Parse(event.IssueID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid issue ID",
		})
	}
	status := models.IssueStatus(event.Status)
	switch status {
	case models.IssueStatusOpen, models.IssueStatusResolved, models.IssueStatusClosed, models.IssueStatusReopened:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	if err := h.indexer.HandleIssueStatusChanged(c.Context(), tenantID, issueID, status); err != nil {
		h.logger.Error("Failed to apply status change", zap.String("issue_id", event.IssueID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to apply status change",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.EventAcceptedResponse{Status: "accepted"})
}

func (h *EventHandler) ResolutionAdded(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var event dto.ResolutionAddedEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	issueID, err := uuid.Parse(event.IssueID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid issue ID",
		})
	}
	if event.Resolution == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Resolution text is required",
		})
	}

	if err := h.indexer.HandleResolutionAdded(c.Context(), tenantID, issueID, event.Resolution); err != nil {
		h.logger.Error("Failed to index resolution", zap.String("issue_id", event.IssueID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to index resolution",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.EventAcceptedResponse{Status: "accepted"})
}

func (h *EventHandler) AttachmentsDeprecated(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var event dto.AttachmentsDeprecatedEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(event.EmbeddingIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one embedding ID is required",
		})
	}

	ids := make([]uuid.UUID, 0, len(event.EmbeddingIDs))
	for _, raw := range event.EmbeddingIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid embedding ID",
			})
		}
		ids = append(ids, id)
	}

	reason := event.Reason
	if reason == "" {
		reason = "attachment deprecated"
	}
	if err := h.indexer.DeactivateEmbeddings(c.Context(), tenantID, ids, reason); err != nil {
		h.logger.Error("Failed to deprecate embeddings", zap.Int("count", len(ids)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to deprecate embeddings",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.EventAcceptedResponse{Status: "accepted"})
}
