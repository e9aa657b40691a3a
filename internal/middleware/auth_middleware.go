package middleware

import (
	"strings"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const userKey = "user"

// RequireAuth validates the bearer token, reloads the user with roles and
// permissions, and stores the resulting principal in the request locals.
func RequireAuth(userRepo repository.UserRepository, secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return service.ErrUnauthenticated.WithMessage("Missing authorization token")
		}

		// "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return service.ErrUnauthenticated.WithMessage("Invalid authorization format. Use: Bearer <token>")
		}

		principal, err := Authenticate(userRepo, secret, parts[1], log)
		if err != nil {
			return err
		}

		c.Locals(userKey, principal)
		c.Locals("user_id", principal.ID.String())
		return c.Next()
	}
}

// Authenticate turns a raw token into a principal. The websocket upgrade uses it
// directly because browsers cannot set headers on that request.
func Authenticate(userRepo repository.UserRepository, secret, token string, log *zap.Logger) (*rbac.User, error) {
	claims, err := jwt.ValidateToken(secret, token)
	if err != nil {
		return nil, service.ErrUnauthenticated.WithMessage("Invalid or expired token")
	}
	user, err := userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, service.ErrUnauthenticated.WithMessage("User not found")
	}
	if !user.IsActive {
		return nil, service.ErrUnauthenticated.WithMessage("User is inactive")
	}
	if err := userRepo.UpdateLastSeen(user.ID); err != nil {
		log.Warn("update last seen failed", zap.String("user", user.ID.String()), zap.Error(err))
	}
	return rbac.FromModel(user), nil
}

// CurrentUser returns the principal stored by RequireAuth, or nil.
func CurrentUser(c *fiber.Ctx) *rbac.User {
	u, _ := c.Locals(userKey).(*rbac.User)
	return u
}

// RequirePermission checks that the user holds resource:action at any scope.
// Row-level narrowing happens in the services.
func RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return service.ErrUnauthenticated
		}
		if !rbac.Can(user, resource, action, "") {
			return service.ErrForbidden.WithMessage("Forbidden: requires '%s:%s'", resource, action)
		}
		return c.Next()
	}
}

// RequireNational restricts a route to callers whose grant for resource:action is NATIONAL.
func RequireNational(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return service.ErrUnauthenticated
		}
		if !rbac.ScopeFor(user, resource, action).National {
			return service.ErrForbidden.WithMessage("Forbidden: requires '%s:%s:%s'", resource, action, model.ScopeNational)
		}
		return c.Next()
	}
}
