package handler

import (
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetUsers returns a page of users
// GET /users?page&pageSize
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	result, err := h.userService.List(c.QueryInt("page", 1), c.QueryInt("pageSize", service.DefaultPageSize))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// GetUser
// GET /users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.userService.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

// CreateUser handles user creation
// POST /users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.userService.Create(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

// UpdateUser changes name, locality, specialty or the active flag
// PUT /users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.userService.Update(user(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

// UpdateUserRoles replaces the user's roles
// PUT /users/:id/roles
func (h *UserHandler) UpdateUserRoles(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.RolesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	u, err := h.userService.UpdateRoles(user(c), id, req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

// ResetPassword sets a new password for another user
// PUT /users/:id/password
func (h *UserHandler) ResetPassword(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.PasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.userService.ResetPassword(user(c), id, req.Password); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
