package handler

import (
	"bytes"
	"strconv"

	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RoleHandler administers roles, permissions and the portable catalog.
type RoleHandler struct {
	service service.RBACService
}

func NewRoleHandler(s service.RBACService) *RoleHandler {
	return &RoleHandler{service: s}
}

// GetRoles returns all roles with their permissions
// GET /roles
func (h *RoleHandler) GetRoles(c *fiber.Ctx) error {
	roles, err := h.service.ListRoles()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": roles})
}

// CreateRole
// POST /roles
func (h *RoleHandler) CreateRole(c *fiber.Ctx) error {
	var req service.RoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, err := h.service.CreateRole(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(role)
}

// SetRolePermissions replaces a role's permissions with the given keys
// PUT /roles/:id/permissions
func (h *RoleHandler) SetRolePermissions(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return service.ErrValidation.WithMessage("Invalid role ID")
	}
	var req service.PermissionKeysRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	role, err := h.service.SetRolePermissions(user(c), uint(id), req.Permissions)
	if err != nil {
		return err
	}
	return c.JSON(role)
}

// GetPermissions
// GET /permissions
func (h *RoleHandler) GetPermissions(c *fiber.Ctx) error {
	perms, err := h.service.ListPermissions()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": perms})
}

// CreatePermission
// POST /permissions
func (h *RoleHandler) CreatePermission(c *fiber.Ctx) error {
	var req service.PermissionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	perm, err := h.service.CreatePermission(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(perm)
}

// ExportCatalog writes the catalog as YAML
// GET /rbac/export
func (h *RoleHandler) ExportCatalog(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.service.Export(&buf); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.Send(buf.Bytes())
}

// ImportCatalog upserts a YAML catalog from the request body
// POST /rbac/import
func (h *RoleHandler) ImportCatalog(c *fiber.Ctx) error {
	result, err := h.service.Import(user(c), bytes.NewReader(c.Body()))
	if err != nil {
		return err
	}
	return c.JSON(result)
}
