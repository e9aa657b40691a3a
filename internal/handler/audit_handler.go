package handler

import (
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	service service.AuditService
}

func NewAuditHandler(s service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// ListAuditLogs pages the audit trail, newest first
// GET /audit-logs?entityType&entityId&actorId&page&pageSize
func (h *AuditHandler) ListAuditLogs(c *fiber.Ctx) error {
	filter := repository.AuditFilter{
		EntityType: c.Query("entityType"),
		EntityID:   c.Query("entityId"),
		ActorID:    c.Query("actorId"),
	}
	result, err := h.service.List(filter, c.QueryInt("page", 1), c.QueryInt("pageSize", service.DefaultPageSize))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
