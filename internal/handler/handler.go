package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go-taskboard/internal/middleware"
	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorBody is the single error envelope every endpoint returns.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ErrorHandler renders domain errors with their status and code. Anything else
// is logged and reported as INTERNAL without leaking the cause.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var de *service.DomainError
		if errors.As(err, &de) {
			return c.Status(de.Status).JSON(ErrorBody{Message: de.Message, Code: de.Code, Details: de.Details})
		}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorBody{Message: fe.Message})
		}
		log.Error("unhandled request error",
			zap.Error(err),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		)
		internal := service.ErrInternal
		return c.Status(internal.Status).JSON(ErrorBody{Message: internal.Message, Code: internal.Code})
	}
}

func user(c *fiber.Ctx) *rbac.User {
	return middleware.CurrentUser(c)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return service.ErrValidation.WithMessage("Invalid JSON")
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, service.ErrValidation.WithMessage("Invalid %s", name)
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, service.ErrValidation.WithMessage("Invalid %s", name)
	}
	return &id, nil
}

// queryTime accepts RFC3339 or a plain YYYY-MM-DD date (midnight UTC).
func queryTime(c *fiber.Ctx, name string) (*time.Time, error) {
	t, _, err := parseQueryTime(c, name)
	return t, err
}

// queryUntil is queryTime for inclusive upper bounds: a plain date covers the whole day.
func queryUntil(c *fiber.Ctx, name string) (*time.Time, error) {
	t, dateOnly, err := parseQueryTime(c, name)
	if t != nil && dateOnly {
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		return &end, nil
	}
	return t, err
}

func parseQueryTime(c *fiber.Ctx, name string) (*time.Time, bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false, service.ErrValidation.WithMessage("Invalid %s, use YYYY-MM-DD or RFC3339", name)
	}
	return &t, true, nil
}

func queryFloat(c *fiber.Ctx, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, service.ErrValidation.WithMessage("Invalid %s", name)
	}
	return &v, nil
}

// taskFilter reads the shared task list query parameters.
func taskFilter(c *fiber.Ctx) (repository.TaskFilter, error) {
	var f repository.TaskFilter
	var err error
	if f.LocalityID, err = queryUUID(c, "localityId"); err != nil {
		return f, err
	}
	if f.PhaseID, err = queryUUID(c, "phaseId"); err != nil {
		return f, err
	}
	if f.TemplateID, err = queryUUID(c, "templateId"); err != nil {
		return f, err
	}
	if f.AssigneeID, err = queryUUID(c, "assigneeId"); err != nil {
		return f, err
	}
	if f.DueFrom, err = queryTime(c, "dueFrom"); err != nil {
		return f, err
	}
	if f.DueTo, err = queryUntil(c, "dueTo"); err != nil {
		return f, err
	}
	if raw := c.Query("status"); raw != "" {
		status := model.TaskStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return f, service.ErrInvalidStatus.WithMessage("unknown task status %q", raw)
		}
		f.Status = &status
	}
	f.Command = c.Query("command")
	return f, nil
}
