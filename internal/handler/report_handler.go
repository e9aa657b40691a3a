package handler

import (
	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(s service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

type reviewRequest struct {
	Note string `json:"note"`
}

// SubmitReport attaches evidence to a task
// POST /task-instances/:id/reports
func (h *ReportHandler) SubmitReport(c *fiber.Ctx) error {
	taskID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.ReportRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	rep, err := h.service.Submit(user(c), taskID, &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rep)
}

// ListReports
// GET /task-instances/:id/reports
func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	taskID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	reports, err := h.service.List(user(c), taskID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": reports})
}

// ApproveReport
// PUT /reports/:id/approve
func (h *ReportHandler) ApproveReport(c *fiber.Ctx) error {
	return h.review(c, h.service.Approve)
}

// RejectReport
// PUT /reports/:id/reject
func (h *ReportHandler) RejectReport(c *fiber.Ctx) error {
	return h.review(c, h.service.Reject)
}

func (h *ReportHandler) review(c *fiber.Ctx, apply func(*rbac.User, uuid.UUID, string) (*model.TaskReportResponse, error)) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req reviewRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	rep, err := apply(user(c), id, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(rep)
}
