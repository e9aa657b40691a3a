package handler

import (
	"go-taskboard/internal/model"
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CommentHandler serves the same thread endpoints for tasks and activities;
// the entity type is fixed per route.
type CommentHandler struct {
	service service.CommentService
}

func NewCommentHandler(s service.CommentService) *CommentHandler {
	return &CommentHandler{service: s}
}

func entityID(c *fiber.Ctx, entityType string) (string, error) {
	if entityType == model.EntityTaskInstance {
		id, err := paramUUID(c, "id")
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
	return c.Params("id"), nil
}

// List returns the thread and the unread count
// GET /task-instances/:id/comments, GET /activities/:id/comments
func (h *CommentHandler) List(entityType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := entityID(c, entityType)
		if err != nil {
			return err
		}
		thread, err := h.service.List(user(c), entityType, id)
		if err != nil {
			return err
		}
		return c.JSON(thread)
	}
}

// Add
// POST /task-instances/:id/comments, POST /activities/:id/comments
func (h *CommentHandler) Add(entityType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := entityID(c, entityType)
		if err != nil {
			return err
		}
		var req struct {
			Body string `json:"body"`
		}
		if err := parseBody(c, &req); err != nil {
			return err
		}
		comment, err := h.service.Add(user(c), entityType, id, req.Body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	}
}

// MarkSeen moves the caller's read watermark to now
// PUT /task-instances/:id/comments/seen, PUT /activities/:id/comments/seen
func (h *CommentHandler) MarkSeen(entityType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := entityID(c, entityType)
		if err != nil {
			return err
		}
		if err := h.service.MarkSeen(user(c), entityType, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
