package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-taskboard/internal/events"
	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"
	"go-taskboard/pkg/metrics"
	"go-taskboard/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TemplateService interface {
	List(filter repository.TemplateFilter) ([]model.TaskTemplate, error)
	Get(id uuid.UUID) (*model.TaskTemplate, error)
	Create(user *rbac.User, req *TemplateRequest) (*model.TaskTemplate, error)
	Update(user *rbac.User, id uuid.UUID, req *TemplateRequest) (*model.TaskTemplate, error)
	Delete(user *rbac.User, id uuid.UUID) error
	GenerateInstances(ctx context.Context, user *rbac.User, templateID uuid.UUID, req *GenerateRequest) (*GenerateResult, error)
}

type TemplateRequest struct {
	Title                  string     `json:"title" validate:"required,max=255"`
	Description            string     `json:"description"`
	PhaseID                uuid.UUID  `json:"phaseId" validate:"uuid_required"`
	SpecialtyID            *uuid.UUID `json:"specialtyId"`
	EloRoleID              *uuid.UUID `json:"eloRoleId"`
	AppliesToAllLocalities bool       `json:"appliesToAllLocalities"`
	ReportRequiredDefault  bool       `json:"reportRequiredDefault"`
}

// GenerateTarget is one requested (locality, due date) pair.
type GenerateTarget struct {
	LocalityID uuid.UUID `json:"localityId"`
	DueDate    string    `json:"dueDate"`
}

type GenerateRequest struct {
	Localities []GenerateTarget `json:"localities"`
	// DueDate is used with appliesToAllLocalities templates when Localities is empty.
	DueDate        string     `json:"dueDate"`
	ReportRequired *bool      `json:"reportRequired"`
	Priority       string     `json:"priority"`
	MeetingID      *uuid.UUID `json:"meetingId"`
	AssignedToID   *uuid.UUID `json:"assignedToId"`
}

type GenerateResult struct {
	Items    []model.TaskInstanceResponse `json:"items"`
	Accepted int                          `json:"accepted"`
	Rejected []BatchRejection             `json:"rejected"`
}

type templateService struct {
	db         *gorm.DB
	templates  repository.TemplateRepository
	tasks      repository.TaskRepository
	localities repository.LocalityRepository
	users      repository.UserRepository
	refs       repository.ReferenceRepository
	audit      AuditService
	events     events.Publisher
	log        *zap.Logger
	now        Clock
}

func NewTemplateService(
	db *gorm.DB,
	templates repository.TemplateRepository,
	tasks repository.TaskRepository,
	localities repository.LocalityRepository,
	users repository.UserRepository,
	refs repository.ReferenceRepository,
	audit AuditService,
	publisher events.Publisher,
	log *zap.Logger,
	now Clock,
) TemplateService {
	return &templateService{
		db:         db,
		templates:  templates,
		tasks:      tasks,
		localities: localities,
		users:      users,
		refs:       refs,
		audit:      audit,
		events:     publisher,
		log:        log,
		now:        now,
	}
}

func (s *templateService) List(filter repository.TemplateFilter) ([]model.TaskTemplate, error) {
	templates, err := s.templates.FindAll(filter)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []model.TaskTemplate{}
	}
	return templates, nil
}

func (s *templateService) Get(id uuid.UUID) (*model.TaskTemplate, error) {
	t, err := s.templates.FindByID(id)
	if err != nil {
		return nil, lookup(err, "task template")
	}
	return t, nil
}

func (s *templateService) apply(t *model.TaskTemplate, req *TemplateRequest) error {
	if err := validate(req); err != nil {
		return err
	}
	if _, err := s.refs.FindPhase(req.PhaseID); err != nil {
		return lookup(err, "phase")
	}
	if req.SpecialtyID != nil {
		if _, err := s.refs.FindSpecialty(*req.SpecialtyID); err != nil {
			return lookup(err, "specialty")
		}
	}
	t.Title = strings.TrimSpace(req.Title)
	t.Description = req.Description
	t.PhaseID = req.PhaseID
	t.SpecialtyID = req.SpecialtyID
	t.EloRoleID = req.EloRoleID
	t.AppliesToAllLocalities = req.AppliesToAllLocalities
	t.ReportRequiredDefault = req.ReportRequiredDefault

	_, err := s.templates.FindDuplicate(t)
	switch {
	case err == nil:
		return ErrDuplicateTemplate
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

func (s *templateService) Create(user *rbac.User, req *TemplateRequest) (*model.TaskTemplate, error) {
	t := &model.TaskTemplate{}
	if err := s.apply(t, req); err != nil {
		return nil, err
	}
	t.CreatedBy = user.ID.String()
	t.UpdatedBy = user.ID.String()
	if err := s.templates.Create(t); err != nil {
		return nil, err
	}
	if err := s.audit.Record(nil, user, "template.create", "task_template", t.ID.String(), map[string]any{"title": t.Title}); err != nil {
		return nil, err
	}
	return s.Get(t.ID)
}

func (s *templateService) Update(user *rbac.User, id uuid.UUID, req *TemplateRequest) (*model.TaskTemplate, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t.Phase, t.Specialty = nil, nil
	if err := s.apply(t, req); err != nil {
		return nil, err
	}
	t.UpdatedBy = user.ID.String()
	if err := s.templates.Update(t); err != nil {
		return nil, err
	}
	if err := s.audit.Record(nil, user, "template.update", "task_template", t.ID.String(), map[string]any{"title": t.Title}); err != nil {
		return nil, err
	}
	return s.Get(t.ID)
}

func (s *templateService) Delete(user *rbac.User, id uuid.UUID) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := s.templates.Delete(t, user.ID.String()); err != nil {
		return err
	}
	return s.audit.Record(nil, user, "template.delete", "task_template", t.ID.String(), map[string]any{"title": t.Title})
}

// parseDueDate accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("dueDate is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("dueDate %q is not a date", raw)
	}
	return t.UTC(), nil
}

func generationKey(localityID uuid.UUID, due time.Time) string {
	return localityID.String() + "|" + due.UTC().Format(time.RFC3339Nano)
}

// GenerateInstances validates every requested row, then creates all accepted rows in
// one transaction. Rejected rows are reported, never skipped silently.
func (s *templateService) GenerateInstances(ctx context.Context, user *rbac.User, templateID uuid.UUID, req *GenerateRequest) (*GenerateResult, error) {
	_, span := tracing.Tracer().Start(ctx, "templates.generateInstances")
	defer span.End()

	tmpl, err := s.Get(templateID)
	if err != nil {
		return nil, err
	}
	scope := rbac.ScopeFor(user, model.ResTaskTemplates, model.ActGenerate)
	if !scope.Allowed {
		return nil, ErrForbidden
	}

	priority := model.PriorityMedium
	if req.Priority != "" {
		priority = model.TaskPriority(strings.ToUpper(req.Priority))
		if !priority.Valid() {
			return nil, ErrInvalidPriority.WithMessage("unknown priority %q", req.Priority)
		}
	}
	if req.MeetingID != nil {
		if _, err := s.refs.FindMeeting(*req.MeetingID); err != nil {
			return nil, lookup(err, "meeting")
		}
	}
	var assignee *model.User
	if req.AssignedToID != nil {
		assignee, err = s.users.FindByID(*req.AssignedToID)
		if err != nil || !assignee.IsActive {
			return nil, ErrInvalidAssignee.WithMessage("user %s cannot be assigned", req.AssignedToID)
		}
	}

	targets := req.Localities
	if len(targets) == 0 {
		if !tmpl.AppliesToAllLocalities {
			return nil, ErrValidation.WithMessage("localities is required")
		}
		all, err := s.localities.FindAll(scope, "")
		if err != nil {
			return nil, err
		}
		for _, l := range all {
			if scope.PermitsLocality(l.ID) {
				targets = append(targets, GenerateTarget{LocalityID: l.ID, DueDate: req.DueDate})
			}
		}
	}

	localityIDs := make([]uuid.UUID, 0, len(targets))
	for _, t := range targets {
		localityIDs = append(localityIDs, t.LocalityID)
	}
	localities, err := s.localities.FindByIDs(localityIDs)
	if err != nil {
		return nil, err
	}
	known := make(map[uuid.UUID]bool, len(localities))
	for _, l := range localities {
		known[l.ID] = true
	}
	existing, err := s.tasks.GenerationKeys(tmpl.ID, localityIDs)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, k := range existing {
		taken[generationKey(k.LocalityID, k.DueDate)] = true
	}

	reportRequired := tmpl.ReportRequiredDefault
	if req.ReportRequired != nil {
		reportRequired = *req.ReportRequired
	}

	result := &GenerateResult{Items: []model.TaskInstanceResponse{}, Rejected: []BatchRejection{}}
	var created []model.TaskInstance
	for row, target := range targets {
		rejectRow := func(code, reason string) {
			result.Rejected = append(result.Rejected, BatchRejection{Row: row, ID: target.LocalityID.String(), Code: code, Reason: reason})
		}
		if !known[target.LocalityID] {
			rejectRow(ErrNotFound.Code, "locality not found")
			continue
		}
		if !scope.PermitsLocality(target.LocalityID) {
			rejectRow(ErrForbidden.Code, "locality outside your scope")
			continue
		}
		due, err := parseDueDate(target.DueDate)
		if err != nil {
			rejectRow(ErrValidation.Code, err.Error())
			continue
		}
		key := generationKey(target.LocalityID, due)
		if taken[key] {
			rejectRow(ErrDuplicateInstance.Code, ErrDuplicateInstance.Message)
			continue
		}
		taken[key] = true

		inst := model.TaskInstance{
			TemplateID:     tmpl.ID,
			LocalityID:     target.LocalityID,
			DueDate:        due,
			Status:         model.StatusNotStarted,
			Priority:       priority,
			ReportRequired: reportRequired,
			MeetingID:      req.MeetingID,
			EloRoleID:      tmpl.EloRoleID,
		}
		inst.ID = uuid.New()
		inst.CreatedBy = user.ID.String()
		inst.UpdatedBy = user.ID.String()
		if assignee != nil {
			kind := model.AssigneeUser
			id := assignee.ID
			inst.AssigneeType = &kind
			inst.AssignedToID = &id
		}
		created = append(created, inst)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.CreateBatch(tx, created); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "template.generate", "task_template", tmpl.ID.String(), map[string]any{
			"accepted": len(created),
			"rejected": len(result.Rejected),
		})
	})
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(created))
	for i := range created {
		ids[i] = created[i].ID
	}
	loaded, err := s.tasks.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.TaskInstance, len(loaded))
	for _, t := range loaded {
		byID[t.ID] = t
	}
	fresh := make([]model.TaskInstance, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			fresh = append(fresh, t)
		}
	}
	now := s.now()
	for i := range fresh {
		s.events.Publish(events.FromTask(events.TaskCreated, &fresh[i], now))
	}
	result.Items = presentTasks(user, fresh, now, map[uuid.UUID]model.TaskStatus{})
	result.Accepted = len(created)

	metrics.ObserveGenerated(result.Accepted, len(result.Rejected))
	span.SetAttributes(attribute.Int("generate.accepted", result.Accepted), attribute.Int("generate.rejected", len(result.Rejected)))
	s.log.Info("instances generated",
		zap.String("template", tmpl.ID.String()),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}
