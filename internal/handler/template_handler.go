package handler

import (
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type TemplateHandler struct {
	service service.TemplateService
}

func NewTemplateHandler(s service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: s}
}

// ListTemplates
// GET /task-templates?phaseId&specialtyId
func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	var filter repository.TemplateFilter
	var err error
	if filter.PhaseID, err = queryUUID(c, "phaseId"); err != nil {
		return err
	}
	if filter.SpecialtyID, err = queryUUID(c, "specialtyId"); err != nil {
		return err
	}
	templates, err := h.service.List(filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": templates})
}

// GetTemplate
// GET /task-templates/:id
func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.service.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

// CreateTemplate
// POST /task-templates
func (h *TemplateHandler) CreateTemplate(c *fiber.Ctx) error {
	var req service.TemplateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	t, err := h.service.Create(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// UpdateTemplate
// PUT /task-templates/:id
func (h *TemplateHandler) UpdateTemplate(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.TemplateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	t, err := h.service.Update(user(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(t)
}

// DeleteTemplate
// DELETE /task-templates/:id
func (h *TemplateHandler) DeleteTemplate(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(user(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateInstances creates task instances for the requested localities
// POST /task-templates/:id/generate-instances
func (h *TemplateHandler) GenerateInstances(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.GenerateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.GenerateInstances(c.UserContext(), user(c), id, &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
