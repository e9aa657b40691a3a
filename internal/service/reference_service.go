package service

import (
	"time"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"

	"github.com/google/uuid"
)

// ReferenceService owns localities and the small catalogs tasks point at.
type ReferenceService interface {
	ListLocalities(user *rbac.User, command string) ([]model.Locality, error)
	GetLocality(user *rbac.User, id uuid.UUID) (*model.Locality, error)
	CreateLocality(user *rbac.User, req *LocalityRequest) (*model.Locality, error)
	UpdateLocality(user *rbac.User, id uuid.UUID, req *LocalityRequest) (*model.Locality, error)
	RecordRecruits(user *rbac.User, id uuid.UUID, count int) (*model.RecruitsHistory, error)

	ListPhases() ([]model.Phase, error)
	CreatePhase(user *rbac.User, req *PhaseRequest) (*model.Phase, error)
	ListSpecialties() ([]model.Specialty, error)
	CreateSpecialty(user *rbac.User, req *NameRequest) (*model.Specialty, error)
	ListEloRoles() ([]model.EloRole, error)
	CreateEloRole(user *rbac.User, req *NameRequest) (*model.EloRole, error)

	ListElos(user *rbac.User, localityID *uuid.UUID) ([]model.Elo, error)
	CreateElo(user *rbac.User, req *EloRequest) (*model.Elo, error)
	ListMeetings(user *rbac.User, localityID *uuid.UUID) ([]model.Meeting, error)
	CreateMeeting(user *rbac.User, req *MeetingRequest) (*model.Meeting, error)
}

type LocalityRequest struct {
	Code           string `json:"code" validate:"required,max=30"`
	Name           string `json:"name" validate:"required"`
	CommandName    string `json:"commandName"`
	CommanderName  string `json:"commanderName"`
	RecruitsTarget int    `json:"recruitsTarget" validate:"gte=0"`
	Notes          string `json:"notes"`
}

type RecruitsRequest struct {
	Count int `json:"count" validate:"gte=0"`
}

type PhaseRequest struct {
	Code         string `json:"code" validate:"required,max=30"`
	Name         string `json:"name" validate:"required"`
	DisplayOrder int    `json:"displayOrder"`
	DisplayName  string `json:"displayName"`
}

type NameRequest struct {
	Name string `json:"name" validate:"required"`
}

type EloRequest struct {
	LocalityID uuid.UUID `json:"localityId" validate:"uuid_required"`
	EloRoleID  uuid.UUID `json:"eloRoleId" validate:"uuid_required"`
	Name       string    `json:"name" validate:"required"`
	Email      string    `json:"email" validate:"omitempty,email"`
	Phone      string    `json:"phone"`
}

type MeetingRequest struct {
	Title       string     `json:"title" validate:"required"`
	LocalityID  *uuid.UUID `json:"localityId"`
	ScheduledAt time.Time  `json:"scheduledAt" validate:"required"`
	Notes       string     `json:"notes"`
}

type referenceService struct {
	localities repository.LocalityRepository
	refs       repository.ReferenceRepository
	audit      AuditService
	now        Clock
}

func NewReferenceService(localities repository.LocalityRepository, refs repository.ReferenceRepository, audit AuditService, now Clock) ReferenceService {
	return &referenceService{localities: localities, refs: refs, audit: audit, now: now}
}

func (s *referenceService) scope(user *rbac.User, resource, action string) (rbac.Scope, error) {
	scope := rbac.ScopeFor(user, resource, action)
	if !scope.Allowed {
		return scope, ErrForbidden
	}
	return scope, nil
}

// locality loads id and hides it when outside the caller's scope for action.
func (s *referenceService) locality(user *rbac.User, id uuid.UUID, action string) (*model.Locality, error) {
	scope, err := s.scope(user, model.ResLocalities, action)
	if err != nil {
		return nil, err
	}
	if !scope.PermitsLocality(id) {
		return nil, ErrNotFound.WithMessage("locality not found")
	}
	l, err := s.localities.FindByID(id)
	if err != nil {
		return nil, lookup(err, "locality")
	}
	return l, nil
}

func (s *referenceService) ListLocalities(user *rbac.User, command string) ([]model.Locality, error) {
	scope, err := s.scope(user, model.ResLocalities, model.ActRead)
	if err != nil {
		return nil, err
	}
	return s.localities.FindAll(scope, command)
}

func (s *referenceService) GetLocality(user *rbac.User, id uuid.UUID) (*model.Locality, error) {
	return s.locality(user, id, model.ActRead)
}

func (s *referenceService) CreateLocality(user *rbac.User, req *LocalityRequest) (*model.Locality, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if _, err := s.scope(user, model.ResLocalities, model.ActCreate); err != nil {
		return nil, err
	}
	l := &model.Locality{
		Code:           req.Code,
		Name:           req.Name,
		CommandName:    req.CommandName,
		CommanderName:  req.CommanderName,
		RecruitsTarget: req.RecruitsTarget,
		Notes:          req.Notes,
	}
	l.CreatedBy = user.ID.String()
	l.UpdatedBy = user.ID.String()
	if err := s.localities.Create(l); err != nil {
		return nil, duplicate(err, ErrValidation.WithMessage("locality code %q already exists", req.Code))
	}
	if err := s.audit.Record(nil, user, "locality.create", "locality", l.ID.String(), map[string]any{"code": l.Code}); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *referenceService) UpdateLocality(user *rbac.User, id uuid.UUID, req *LocalityRequest) (*model.Locality, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	l, err := s.locality(user, id, model.ActUpdate)
	if err != nil {
		return nil, err
	}
	l.Code = req.Code
	l.Name = req.Name
	l.CommandName = req.CommandName
	l.CommanderName = req.CommanderName
	l.RecruitsTarget = req.RecruitsTarget
	l.Notes = req.Notes
	l.UpdatedBy = user.ID.String()
	if err := s.localities.Update(l); err != nil {
		return nil, duplicate(err, ErrValidation.WithMessage("locality code %q already exists", req.Code))
	}
	if err := s.audit.Record(nil, user, "locality.update", "locality", l.ID.String(), map[string]any{"code": l.Code}); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *referenceService) RecordRecruits(user *rbac.User, id uuid.UUID, count int) (*model.RecruitsHistory, error) {
	if err := validate(&RecruitsRequest{Count: count}); err != nil {
		return nil, err
	}
	l, err := s.locality(user, id, model.ActUpdate)
	if err != nil {
		return nil, err
	}
	previous := l.RecruitsCurrent
	entry, err := s.localities.RecordRecruits(l, count, s.now(), user.ID.String())
	if err != nil {
		return nil, err
	}
	if err := s.audit.Record(nil, user, "locality.recruits", "locality", l.ID.String(), map[string]any{"from": previous, "to": count}); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *referenceService) ListPhases() ([]model.Phase, error) {
	return s.refs.ListPhases()
}

func (s *referenceService) CreatePhase(user *rbac.User, req *PhaseRequest) (*model.Phase, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	p := &model.Phase{Code: req.Code, Name: req.Name, DisplayOrder: req.DisplayOrder, DisplayName: req.DisplayName}
	p.CreatedBy = user.ID.String()
	if err := s.refs.CreatePhase(p); err != nil {
		return nil, duplicate(err, ErrValidation.WithMessage("phase code %q already exists", req.Code))
	}
	return p, s.audit.Record(nil, user, "phase.create", "phase", p.ID.String(), map[string]any{"code": p.Code})
}

func (s *referenceService) ListSpecialties() ([]model.Specialty, error) {
	return s.refs.ListSpecialties()
}

func (s *referenceService) CreateSpecialty(user *rbac.User, req *NameRequest) (*model.Specialty, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	sp := &model.Specialty{Name: req.Name}
	sp.CreatedBy = user.ID.String()
	if err := s.refs.CreateSpecialty(sp); err != nil {
		return nil, duplicate(err, ErrValidation.WithMessage("specialty %q already exists", req.Name))
	}
	return sp, s.audit.Record(nil, user, "specialty.create", "specialty", sp.ID.String(), nil)
}

func (s *referenceService) ListEloRoles() ([]model.EloRole, error) {
	return s.refs.ListEloRoles()
}

func (s *referenceService) CreateEloRole(user *rbac.User, req *NameRequest) (*model.EloRole, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	r := &model.EloRole{Name: req.Name}
	r.CreatedBy = user.ID.String()
	if err := s.refs.CreateEloRole(r); err != nil {
		return nil, duplicate(err, ErrValidation.WithMessage("elo role %q already exists", req.Name))
	}
	return r, s.audit.Record(nil, user, "elo_role.create", "elo_role", r.ID.String(), nil)
}

// pinLocality narrows a locality-scoped caller to their own locality and rejects
// explicit filters outside it.
func pinLocality(scope rbac.Scope, localityID *uuid.UUID) (*uuid.UUID, error) {
	if scope.National {
		return localityID, nil
	}
	if scope.LocalityID == nil {
		return nil, ErrForbidden
	}
	if localityID != nil && *localityID != *scope.LocalityID {
		return nil, ErrNotFound.WithMessage("locality not found")
	}
	return scope.LocalityID, nil
}

func (s *referenceService) ListElos(user *rbac.User, localityID *uuid.UUID) ([]model.Elo, error) {
	scope, err := s.scope(user, model.ResElos, model.ActRead)
	if err != nil {
		return nil, err
	}
	pinned, err := pinLocality(scope, localityID)
	if err != nil {
		return nil, err
	}
	return s.refs.ListElos(pinned)
}

func (s *referenceService) CreateElo(user *rbac.User, req *EloRequest) (*model.Elo, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	scope, err := s.scope(user, model.ResElos, model.ActCreate)
	if err != nil {
		return nil, err
	}
	if !scope.PermitsLocality(req.LocalityID) {
		return nil, ErrNotFound.WithMessage("locality not found")
	}
	if _, err := s.localities.FindByID(req.LocalityID); err != nil {
		return nil, lookup(err, "locality")
	}
	e := &model.Elo{LocalityID: req.LocalityID, EloRoleID: req.EloRoleID, Name: req.Name, Email: req.Email, Phone: req.Phone}
	e.CreatedBy = user.ID.String()
	if err := s.refs.CreateElo(e); err != nil {
		return nil, err
	}
	if err := s.audit.Record(nil, user, "elo.create", "elo", e.ID.String(), map[string]any{"localityId": e.LocalityID.String()}); err != nil {
		return nil, err
	}
	return s.refs.FindElo(e.ID)
}

func (s *referenceService) ListMeetings(user *rbac.User, localityID *uuid.UUID) ([]model.Meeting, error) {
	scope, err := s.scope(user, model.ResMeetings, model.ActRead)
	if err != nil {
		return nil, err
	}
	pinned, err := pinLocality(scope, localityID)
	if err != nil {
		return nil, err
	}
	return s.refs.ListMeetings(pinned)
}

func (s *referenceService) CreateMeeting(user *rbac.User, req *MeetingRequest) (*model.Meeting, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	scope, err := s.scope(user, model.ResMeetings, model.ActCreate)
	if err != nil {
		return nil, err
	}
	if req.LocalityID == nil {
		if !scope.National {
			return nil, ErrForbidden.WithMessage("only national scope can create meetings without a locality")
		}
	} else {
		if !scope.PermitsLocality(*req.LocalityID) {
			return nil, ErrNotFound.WithMessage("locality not found")
		}
		if _, err := s.localities.FindByID(*req.LocalityID); err != nil {
			return nil, lookup(err, "locality")
		}
	}
	m := &model.Meeting{Title: req.Title, LocalityID: req.LocalityID, ScheduledAt: req.ScheduledAt.UTC(), Notes: req.Notes}
	m.CreatedBy = user.ID.String()
	if err := s.refs.CreateMeeting(m); err != nil {
		return nil, err
	}
	return m, s.audit.Record(nil, user, "meeting.create", "meeting", m.ID.String(), nil)
}
