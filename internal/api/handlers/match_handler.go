package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ticketmatch/internal/dto"
	"ticketmatch/internal/matching"
	"ticketmatch/internal/models"
	"ticketmatch/internal/service"
)

type MatchHandler struct {
	matcher *service.MatcherService
	logger  *zap.Logger
}

func NewMatchHandler(matcher *service.MatcherService, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		matcher: matcher,
		logger:  logger,
	}
}

// Match runs a deduplication query for the authenticated tenant. A no-match
// outcome is a 200 with status "no_match"; a matching failure (embedding
// provider or index down) is a 502 so the caller knows to retry rather than
// create a duplicate ticket.
func (h *MatchHandler) Match(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	decision, err := h.matcher.FindSolution(c.Context(), service.FindQuery{
		TenantID: tenantID,
		Text:     req.Query,
		Category: models.IssueCategory(req.Category),
		Limit:    req.Limit,
	})
	if err != nil {
		return h.matchError(c, tenantID, err)
	}

	return c.JSON(dto.NewMatchResponse(decision))
}

// Check answers the narrower question the ticket-creation flow asks: should a
// new ticket be created, or does an existing one already cover this?
func (h *MatchHandler) Check(c *fiber.Ctx) error {
	tenantID, err := getTenantID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req dto.MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	decision, err := h.matcher.FindSolution(c.Context(), service.FindQuery{
		TenantID: tenantID,
		Text:     req.Query,
		Category: models.IssueCategory(req.Category),
		Limit:    req.Limit,
	})
	if err != nil {
		return h.matchError(c, tenantID, err)
	}

	return c.JSON(dto.CheckResponse{
		CreateNewTicket: decision.Status == matching.StatusNoMatch,
		ThresholdUsed:   decision.ThresholdUsed,
	})
}

func (h *MatchHandler) matchError(c *fiber.Ctx, tenantID string, err error) error {
	if errors.Is(err, matching.ErrQueryTooShort) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query must be at least 10 characters",
		})
	}
	h.logger.Error("Matching failed",
		zap.String("tenant_id", tenantID),
		zap.Error(err),
	)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Matching temporarily unavailable",
	})
}

func getTenantID(c *fiber.Ctx) (string, error) {
	tenantID, ok := c.Locals("tenantID").(string)
	if !ok || tenantID == "" {
		return "", fiber.ErrUnauthorized
	}
	return tenantID, nil
}
