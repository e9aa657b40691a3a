package handler

import (
	"strconv"
	"time"

	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TaskHandler struct {
	service service.TaskService
}

func NewTaskHandler(s service.TaskService) *TaskHandler {
	return &TaskHandler{service: s}
}

// ListTasks returns a page of task instances in the caller's scope
// GET /task-instances?localityId&phaseId&status&assigneeId&dueFrom&dueTo&page&pageSize
func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	filter, err := taskFilter(c)
	if err != nil {
		return err
	}
	result, err := h.service.List(user(c), filter, c.QueryInt("page", 1), c.QueryInt("pageSize", service.DefaultPageSize))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetTask
// GET /task-instances/:id
func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	task, err := h.service.Get(user(c), id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// UpdateStatus moves a task through the status machine
// PUT /task-instances/:id/status
func (h *TaskHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	task, err := h.service.UpdateStatus(user(c), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// UpdateProgress
// PUT /task-instances/:id/progress
func (h *TaskHandler) UpdateProgress(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		ProgressPercent *int `json:"progressPercent"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.ProgressPercent == nil {
		return service.ErrValidation.WithMessage("progressPercent is required")
	}
	task, err := h.service.UpdateProgress(user(c), id, *req.ProgressPercent)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// Assign
// PUT /task-instances/:id/assign
func (h *TaskHandler) Assign(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	task, err := h.service.Assign(user(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// SetDependencies replaces the blocked-by list
// PUT /task-instances/:id/dependencies
func (h *TaskHandler) SetDependencies(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req struct {
		BlockedByIDs []uuid.UUID `json:"blockedByIds"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	task, err := h.service.SetDependencies(user(c), id, req.BlockedByIDs)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// BatchAssign
// POST /task-instances/batch-assign
func (h *TaskHandler) BatchAssign(c *fiber.Ctx) error {
	var req service.BatchAssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.BatchAssign(c.UserContext(), user(c), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// BatchStatus
// POST /task-instances/batch-status
func (h *TaskHandler) BatchStatus(c *fiber.Ctx) error {
	var req service.BatchStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.BatchStatus(c.UserContext(), user(c), req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// DeleteTask soft-deletes a task instance
// DELETE /task-instances/:id
func (h *TaskHandler) DeleteTask(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(user(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Gantt
// GET /task-instances/gantt
func (h *TaskHandler) Gantt(c *fiber.Ctx) error {
	filter, err := taskFilter(c)
	if err != nil {
		return err
	}
	rows, err := h.service.Gantt(user(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": rows})
}

// Calendar groups the year's tasks by due day
// GET /task-instances/calendar?year
func (h *TaskHandler) Calendar(c *fiber.Ctx) error {
	filter, err := taskFilter(c)
	if err != nil {
		return err
	}
	year := time.Now().UTC().Year()
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1 {
			return service.ErrValidation.WithMessage("Invalid year")
		}
		year = y
	}
	cal, err := h.service.Calendar(user(c), year, filter)
	if err != nil {
		return err
	}
	return c.JSON(cal)
}
