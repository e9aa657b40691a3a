package handler

import (
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler exposes the authenticated principal. Tokens are issued out of band.
type AuthHandler struct {
	userRepo repository.UserRepository
}

func NewAuthHandler(userRepo repository.UserRepository) *AuthHandler {
	return &AuthHandler{userRepo: userRepo}
}

// Me returns the caller's profile and effective grants
// GET /auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal := user(c)
	if principal == nil {
		return service.ErrUnauthenticated
	}
	u, err := h.userRepo.FindByID(principal.ID)
	if err != nil {
		return service.ErrUnauthenticated.WithMessage("User not found")
	}

	grants := make([]string, 0, len(principal.Permissions))
	for _, g := range principal.Permissions {
		grants = append(grants, g.Resource+":"+g.Action+":"+string(g.Scope))
	}
	return c.JSON(fiber.Map{
		"user":        u.ToResponse(),
		"permissions": grants,
		"wildcard":    principal.Wildcard,
	})
}
