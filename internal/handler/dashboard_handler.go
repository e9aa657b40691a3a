package handler

import (
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// dashboardFilter reads from, to, phaseId, threshold and command.
func dashboardFilter(c *fiber.Ctx) (service.DashboardFilter, error) {
	var f service.DashboardFilter
	var err error
	if f.From, err = queryTime(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryUntil(c, "to"); err != nil {
		return f, err
	}
	if f.PhaseID, err = queryUUID(c, "phaseId"); err != nil {
		return f, err
	}
	if f.Threshold, err = queryFloat(c, "threshold"); err != nil {
		return f, err
	}
	f.Command = c.Query("command")
	return f, nil
}

// GetLocalityProgress returns overall and per-phase progress of one locality
// GET /dashboard/localities/:id/progress
func (h *DashboardHandler) GetLocalityProgress(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	data, err := h.service.LocalityProgress(c.UserContext(), user(c), id)
	if err != nil {
		return err
	}
	return c.JSON(data)
}

// GetNational
// GET /dashboard/national
func (h *DashboardHandler) GetNational(c *fiber.Ctx) error {
	filter, err := dashboardFilter(c)
	if err != nil {
		return err
	}
	data, err := h.service.National(c.UserContext(), user(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(data)
}

// GetExecutive returns risk scores, lead times and the late trend
// GET /dashboard/executive?from&to&phaseId&threshold&command
func (h *DashboardHandler) GetExecutive(c *fiber.Ctx) error {
	filter, err := dashboardFilter(c)
	if err != nil {
		return err
	}
	data, err := h.service.Executive(c.UserContext(), user(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(data)
}

// GetRecruits
// GET /dashboard/recruits
func (h *DashboardHandler) GetRecruits(c *fiber.Ctx) error {
	data, err := h.service.Recruits(c.UserContext(), user(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": data})
}
