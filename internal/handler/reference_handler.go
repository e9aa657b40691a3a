package handler

import (
	"go-taskboard/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReferenceHandler serves localities and the small reference catalogs.
type ReferenceHandler struct {
	service service.ReferenceService
}

func NewReferenceHandler(s service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: s}
}

// ListLocalities
// GET /localities?command
func (h *ReferenceHandler) ListLocalities(c *fiber.Ctx) error {
	items, err := h.service.ListLocalities(user(c), c.Query("command"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// GetLocality
// GET /localities/:id
func (h *ReferenceHandler) GetLocality(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	l, err := h.service.GetLocality(user(c), id)
	if err != nil {
		return err
	}
	return c.JSON(l)
}

// CreateLocality
// POST /localities
func (h *ReferenceHandler) CreateLocality(c *fiber.Ctx) error {
	var req service.LocalityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	l, err := h.service.CreateLocality(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(l)
}

// UpdateLocality
// PUT /localities/:id
func (h *ReferenceHandler) UpdateLocality(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.LocalityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	l, err := h.service.UpdateLocality(user(c), id, &req)
	if err != nil {
		return err
	}
	return c.JSON(l)
}

// RecordRecruits stores a new recruits count and its history row
// POST /localities/:id/recruits
func (h *ReferenceHandler) RecordRecruits(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.RecruitsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	entry, err := h.service.RecordRecruits(user(c), id, req.Count)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// ListPhases
// GET /phases
func (h *ReferenceHandler) ListPhases(c *fiber.Ctx) error {
	items, err := h.service.ListPhases()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// CreatePhase
// POST /phases
func (h *ReferenceHandler) CreatePhase(c *fiber.Ctx) error {
	var req service.PhaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	p, err := h.service.CreatePhase(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListSpecialties
// GET /specialties
func (h *ReferenceHandler) ListSpecialties(c *fiber.Ctx) error {
	items, err := h.service.ListSpecialties()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// CreateSpecialty
// POST /specialties
func (h *ReferenceHandler) CreateSpecialty(c *fiber.Ctx) error {
	var req service.NameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sp, err := h.service.CreateSpecialty(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sp)
}

// ListEloRoles
// GET /elo-roles
func (h *ReferenceHandler) ListEloRoles(c *fiber.Ctx) error {
	items, err := h.service.ListEloRoles()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// CreateEloRole
// POST /elo-roles
func (h *ReferenceHandler) CreateEloRole(c *fiber.Ctx) error {
	var req service.NameRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	r, err := h.service.CreateEloRole(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

// ListElos
// GET /elos?localityId
func (h *ReferenceHandler) ListElos(c *fiber.Ctx) error {
	localityID, err := queryUUID(c, "localityId")
	if err != nil {
		return err
	}
	items, err := h.service.ListElos(user(c), localityID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// CreateElo
// POST /elos
func (h *ReferenceHandler) CreateElo(c *fiber.Ctx) error {
	var req service.EloRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	e, err := h.service.CreateElo(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

// ListMeetings
// GET /meetings?localityId
func (h *ReferenceHandler) ListMeetings(c *fiber.Ctx) error {
	localityID, err := queryUUID(c, "localityId")
	if err != nil {
		return err
	}
	items, err := h.service.ListMeetings(user(c), localityID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items})
}

// CreateMeeting
// POST /meetings
func (h *ReferenceHandler) CreateMeeting(c *fiber.Ctx) error {
	var req service.MeetingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	m, err := h.service.CreateMeeting(user(c), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}
