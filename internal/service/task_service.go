package service

import (
	"context"
	"errors"
	"sort"
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

type TaskService interface {
	List(user *rbac.User, filter repository.TaskFilter, page, pageSize int) (*PageResult[model.TaskInstanceResponse], error)
	Get(user *rbac.User, id uuid.UUID) (*model.TaskInstanceResponse, error)
	UpdateStatus(user *rbac.User, id uuid.UUID, status string) (*model.TaskInstanceResponse, error)
	UpdateProgress(user *rbac.User, id uuid.UUID, percent int) (*model.TaskInstanceResponse, error)
	Assign(user *rbac.User, id uuid.UUID, req AssignRequest) (*model.TaskInstanceResponse, error)
	SetDependencies(user *rbac.User, id uuid.UUID, blockedBy []uuid.UUID) (*model.TaskInstanceResponse, error)
	BatchAssign(ctx context.Context, user *rbac.User, req BatchAssignRequest) (*BatchResult, error)
	BatchStatus(ctx context.Context, user *rbac.User, req BatchStatusRequest) (*BatchResult, error)
	Delete(user *rbac.User, id uuid.UUID) error
	Gantt(user *rbac.User, filter repository.TaskFilter) ([]GanttRow, error)
	Calendar(user *rbac.User, year int, filter repository.TaskFilter) (*Calendar, error)
}

// AssignRequest accepts every assignee shape clients send. An empty request unassigns.
type AssignRequest struct {
	AssigneeType string     `json:"assigneeType"`
	AssigneeID   *uuid.UUID `json:"assigneeId"`
	AssignedToID *uuid.UUID `json:"assignedToId"`
	LocalityID   *uuid.UUID `json:"localityId"`
}

type BatchAssignRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
	AssignRequest
}

type BatchStatusRequest struct {
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1"`
	Status string      `json:"status" validate:"required"`
}

// BatchRejection explains why one row of a batch was not applied.
type BatchRejection struct {
	Row    int    `json:"row"`
	ID     string `json:"id,omitempty"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type BatchResult struct {
	Updated  int              `json:"updated"`
	Accepted []uuid.UUID      `json:"accepted"`
	Rejected []BatchRejection `json:"rejected"`
}

type GanttRow struct {
	ID           uuid.UUID        `json:"id"`
	Title        string           `json:"title"`
	LocalityID   uuid.UUID        `json:"localityId"`
	LocalityCode string           `json:"localityCode,omitempty"`
	PhaseID      uuid.UUID        `json:"phaseId"`
	PhaseName    string           `json:"phaseName,omitempty"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Status       model.TaskStatus `json:"status"`
	Progress     int              `json:"progressPercent"`
	BlockedByIDs []uuid.UUID      `json:"blockedByIds"`
	IsLate       bool             `json:"isLate"`
	IsBlocked    bool             `json:"isBlocked"`
	phaseOrder   int
}

type CalendarDay struct {
	Date  string                       `json:"date"`
	Items []model.TaskInstanceResponse `json:"items"`
}

type Calendar struct {
	Year int           `json:"year"`
	Days []CalendarDay `json:"days"`
}

type taskService struct {
	db         *gorm.DB
	tasks      repository.TaskRepository
	reports    repository.ReportRepository
	localities repository.LocalityRepository
	users      repository.UserRepository
	refs       repository.ReferenceRepository
	audit      AuditService
	events     events.Publisher
	log        *zap.Logger
	now        Clock
}

func NewTaskService(
	db *gorm.DB,
	tasks repository.TaskRepository,
	reports repository.ReportRepository,
	localities repository.LocalityRepository,
	users repository.UserRepository,
	refs repository.ReferenceRepository,
	audit AuditService,
	publisher events.Publisher,
	log *zap.Logger,
	now Clock,
) TaskService {
	return &taskService{
		db:         db,
		tasks:      tasks,
		reports:    reports,
		localities: localities,
		users:      users,
		refs:       refs,
		audit:      audit,
		events:     publisher,
		log:        log,
		now:        now,
	}
}

func (s *taskService) List(user *rbac.User, filter repository.TaskFilter, page, pageSize int) (*PageResult[model.TaskInstanceResponse], error) {
	page, pageSize = NormalizePage(page, pageSize)
	scope := rbac.ScopeFor(user, model.ResTaskInstances, model.ActRead)
	if !scope.Allowed {
		return nil, ErrForbidden
	}
	tasks, total, err := s.tasks.List(filter, scope, repository.Page{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, err
	}
	statuses, err := s.tasks.DependencyStatuses(tasks)
	if err != nil {
		return nil, err
	}
	return &PageResult[model.TaskInstanceResponse]{
		Items:    presentTasks(user, tasks, s.now(), statuses),
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// load fetches a task the user can see and checks that action is allowed on it.
// Rows outside the read scope are reported as not found.
func (s *taskService) load(user *rbac.User, id uuid.UUID, action string) (*model.TaskInstance, error) {
	scope := rbac.ScopeFor(user, model.ResTaskInstances, model.ActRead)
	actionScope := rbac.ScopeFor(user, model.ResTaskInstances, action)
	if !scope.Allowed {
		scope = actionScope
	}
	task, err := s.tasks.FindByID(id, scope)
	if err != nil {
		return nil, lookup(err, "task instance")
	}
	if !actionScope.PermitsTask(task) {
		return nil, ErrForbidden
	}
	return task, nil
}

func (s *taskService) respond(user *rbac.User, task *model.TaskInstance) (*model.TaskInstanceResponse, error) {
	statuses, err := s.tasks.DependencyStatuses([]model.TaskInstance{*task})
	if err != nil {
		return nil, err
	}
	resp := presentTask(user, task, s.now(), statuses)
	return &resp, nil
}

func (s *taskService) Get(user *rbac.User, id uuid.UUID) (*model.TaskInstanceResponse, error) {
	task, err := s.load(user, id, model.ActRead)
	if err != nil {
		return nil, err
	}
	return s.respond(user, task)
}

// checkStatus validates a move of task to status `to` against the state machine
// and the DONE gates.
func checkStatus(task *model.TaskInstance, to model.TaskStatus, approved bool, deps map[uuid.UUID]model.TaskStatus) error {
	if !to.Valid() {
		return ErrInvalidStatus.WithMessage("unknown status %q", to)
	}
	if !model.CanTransition(task, to) {
		return ErrInvalidTransition.WithMessage("cannot move task from %s to %s", task.Status, to)
	}
	if to == model.StatusDone && task.Status != model.StatusDone {
		if task.ReportRequired && !approved {
			return ErrReportRequired
		}
		if model.HasBlockingDependencies(task, deps) {
			return ErrBlockedByDependency
		}
	}
	return nil
}

func parseStatus(raw string) model.TaskStatus {
	return model.TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

func (s *taskService) UpdateStatus(user *rbac.User, id uuid.UUID, status string) (*model.TaskInstanceResponse, error) {
	task, err := s.load(user, id, model.ActUpdate)
	if err != nil {
		return nil, err
	}
	to := parseStatus(status)
	deps, err := s.tasks.DependencyStatuses([]model.TaskInstance{*task})
	if err != nil {
		return nil, err
	}
	approved := false
	if to == model.StatusDone && task.ReportRequired {
		if approved, err = s.reports.HasApproved(task.ID); err != nil {
			return nil, err
		}
	}
	if err := checkStatus(task, to, approved, deps); err != nil {
		var de *DomainError
		if errors.As(err, &de) {
			metrics.ObserveGateRejection(de.Code)
		}
		s.log.Info("status change rejected",
			zap.String("task", task.ID.String()),
			zap.String("from", string(task.Status)),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return nil, err
	}

	from := task.Status
	now := s.now()
	model.ApplyStatus(task, to, now)
	task.UpdatedBy = user.ID.String()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.Save(tx, task); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "task.status", model.EntityTaskInstance, task.ID.String(),
			map[string]any{"from": from, "to": to})
	})
	if err != nil {
		return nil, err
	}

	if from != to {
		metrics.ObserveTransition(string(from), string(to))
	}
	s.log.Info("task status changed",
		zap.String("task", task.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("by", user.ID.String()),
	)
	s.events.Publish(events.FromTask(events.TaskUpdated, task, now))
	return s.respond(user, task)
}

// UpdateProgress clamps percent to [0,100]. Progress never changes status.
func (s *taskService) UpdateProgress(user *rbac.User, id uuid.UUID, percent int) (*model.TaskInstanceResponse, error) {
	task, err := s.load(user, id, model.ActUpdate)
	if err != nil {
		return nil, err
	}
	previous := task.ProgressPercent
	task.ProgressPercent = model.ClampProgress(percent)
	task.UpdatedBy = user.ID.String()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.Save(tx, task); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "task.progress", model.EntityTaskInstance, task.ID.String(),
			map[string]any{"from": previous, "to": task.ProgressPercent, "requested": percent})
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.FromTask(events.TaskUpdated, task, s.now()))
	return s.respond(user, task)
}

// resolveAssignment normalises req into exactly one assignee representation on t.
func (s *taskService) resolveAssignment(t *model.TaskInstance, req AssignRequest) error {
	kind := model.AssigneeType(strings.ToUpper(strings.TrimSpace(req.AssigneeType)))
	target := req.AssigneeID
	if target == nil {
		target = req.AssignedToID
	}

	if kind == "" {
		switch {
		case target != nil:
			kind = model.AssigneeUser
		case req.LocalityID != nil:
			return ErrInvalidAssignee.WithMessage("assigneeType is required when localityId is given")
		default:
			model.ClearAssignee(t)
			return nil
		}
	}

	switch kind {
	case model.AssigneeUser:
		if target == nil {
			return ErrInvalidAssignee.WithMessage("assigneeId is required for USER")
		}
		u, err := s.users.FindByID(*target)
		if err != nil || !u.IsActive {
			return ErrInvalidAssignee.WithMessage("user %s cannot be assigned", target)
		}
		model.ClearAssignee(t)
		id := u.ID
		t.AssigneeType = &kind
		t.AssignedToID = &id
		t.AssignedTo = u

	case model.AssigneeElo:
		if target == nil {
			return ErrInvalidAssignee.WithMessage("assigneeId is required for ELO")
		}
		elo, err := s.refs.FindElo(*target)
		if err != nil {
			return ErrInvalidAssignee.WithMessage("elo %s not found", target)
		}
		if elo.LocalityID != t.LocalityID {
			return ErrInvalidAssignee.WithMessage("elo %s belongs to another locality", target)
		}
		model.ClearAssignee(t)
		id, name := elo.ID, elo.Name
		t.AssigneeType = &kind
		t.AssignedEloID = &id
		t.ExternalAssigneeName = &name
		if elo.EloRole != nil {
			role := elo.EloRole.Name
			t.ExternalAssigneeRole = &role
		}

	case model.AssigneeLocalityCommand, model.AssigneeLocalityCommander:
		localityID := t.LocalityID
		if req.LocalityID != nil {
			localityID = *req.LocalityID
		}
		loc, err := s.localities.FindByID(localityID)
		if err != nil {
			return ErrInvalidAssignee.WithMessage("locality %s not found", localityID)
		}
		name, role := loc.CommandName, "Command"
		if kind == model.AssigneeLocalityCommander {
			name, role = loc.CommanderName, "Commander"
		}
		if name == "" {
			return ErrInvalidAssignee.WithMessage("locality %s has no %s on record", loc.Code, strings.ToLower(role))
		}
		model.ClearAssignee(t)
		t.AssigneeType = &kind
		t.ExternalAssigneeName = &name
		t.ExternalAssigneeRole = &role

	default:
		return ErrInvalidAssignee.WithMessage("unknown assigneeType %q", req.AssigneeType)
	}
	return nil
}

func assigneeDetails(t *model.TaskInstance) map[string]any {
	d := map[string]any{"assigneeType": nil}
	if t.AssigneeType != nil {
		d["assigneeType"] = *t.AssigneeType
	}
	if t.AssignedToID != nil {
		d["assignedToId"] = t.AssignedToID.String()
	}
	if t.AssignedEloID != nil {
		d["assignedEloId"] = t.AssignedEloID.String()
	}
	return d
}

func (s *taskService) Assign(user *rbac.User, id uuid.UUID, req AssignRequest) (*model.TaskInstanceResponse, error) {
	task, err := s.load(user, id, model.ActAssign)
	if err != nil {
		return nil, err
	}
	if err := s.resolveAssignment(task, req); err != nil {
		return nil, err
	}
	task.UpdatedBy = user.ID.String()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.Save(tx, task); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "task.assign", model.EntityTaskInstance, task.ID.String(), assigneeDetails(task))
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.FromTask(events.TaskUpdated, task, s.now()))
	return s.respond(user, task)
}

func (s *taskService) SetDependencies(user *rbac.User, id uuid.UUID, blockedBy []uuid.UUID) (*model.TaskInstanceResponse, error) {
	task, err := s.load(user, id, model.ActUpdate)
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	var unique []uuid.UUID
	for _, dep := range blockedBy {
		if dep == task.ID {
			return nil, ErrValidation.WithMessage("a task cannot depend on itself")
		}
		if !seen[dep] {
			seen[dep] = true
			unique = append(unique, dep)
		}
	}
	found, err := s.tasks.Statuses(unique)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, dep := range unique {
		if _, ok := found[dep]; !ok {
			missing = append(missing, dep.String())
		}
	}
	if len(missing) > 0 {
		return nil, ErrValidation.WithMessage("unknown dependency ids").WithDetails(missing)
	}

	task.BlockedByIDs = unique
	task.UpdatedBy = user.ID.String()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.Save(tx, task); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "task.dependencies", model.EntityTaskInstance, task.ID.String(),
			map[string]any{"blockedByIds": unique})
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.FromTask(events.TaskUpdated, task, s.now()))
	return s.respond(user, task)
}

// batchTargets loads the batch rows and rejects missing, duplicate and out-of-scope ids.
func (s *taskService) batchTargets(user *rbac.User, ids []uuid.UUID, action string) ([]*model.TaskInstance, []int, []BatchRejection, error) {
	found, err := s.tasks.FindByIDs(ids)
	if err != nil {
		return nil, nil, nil, err
	}
	byID := make(map[uuid.UUID]*model.TaskInstance, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	readScope := rbac.ScopeFor(user, model.ResTaskInstances, model.ActRead)
	actionScope := rbac.ScopeFor(user, model.ResTaskInstances, action)

	var targets []*model.TaskInstance
	var rows []int
	var rejected []BatchRejection
	seen := make(map[uuid.UUID]bool)
	for row, id := range ids {
		t, ok := byID[id]
		switch {
		case seen[id]:
			rejected = append(rejected, BatchRejection{Row: row, ID: id.String(), Code: ErrValidation.Code, Reason: "duplicate id in request"})
		case !ok || !(readScope.PermitsTask(t) || actionScope.PermitsTask(t)):
			rejected = append(rejected, BatchRejection{Row: row, ID: id.String(), Code: ErrNotFound.Code, Reason: "task instance not found"})
		case !actionScope.PermitsTask(t):
			rejected = append(rejected, BatchRejection{Row: row, ID: id.String(), Code: ErrForbidden.Code, Reason: ErrForbidden.Message})
		default:
			targets = append(targets, t)
			rows = append(rows, row)
		}
		seen[id] = true
	}
	return targets, rows, rejected, nil
}

func reject(row int, id uuid.UUID, err error) BatchRejection {
	r := BatchRejection{Row: row, ID: id.String(), Code: ErrInternal.Code, Reason: err.Error()}
	var de *DomainError
	if errors.As(err, &de) {
		r.Code = de.Code
		r.Reason = de.Message
	}
	return r
}

// commitBatch saves every accepted task and one audit row per task in a single transaction.
func (s *taskService) commitBatch(user *rbac.User, action string, accepted []*model.TaskInstance, details func(*model.TaskInstance) map[string]any) error {
	if len(accepted) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range accepted {
			if err := s.tasks.Save(tx, t); err != nil {
				return err
			}
			if err := s.audit.Record(tx, user, action, model.EntityTaskInstance, t.ID.String(), details(t)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *taskService) BatchStatus(ctx context.Context, user *rbac.User, req BatchStatusRequest) (*BatchResult, error) {
	_, span := tracing.Tracer().Start(ctx, "tasks.batchStatus")
	defer span.End()

	if err := validate(&req); err != nil {
		return nil, err
	}
	to := parseStatus(req.Status)
	if !to.Valid() {
		return nil, ErrInvalidStatus.WithMessage("unknown status %q", req.Status)
	}
	targets, rows, rejected, err := s.batchTargets(user, req.IDs, model.ActUpdate)
	if err != nil {
		return nil, err
	}

	plain := make([]model.TaskInstance, len(targets))
	ids := make([]uuid.UUID, len(targets))
	for i, t := range targets {
		plain[i] = *t
		ids[i] = t.ID
	}
	deps, err := s.tasks.DependencyStatuses(plain)
	if err != nil {
		return nil, err
	}
	approved, err := s.reports.ApprovedTaskIDs(ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var accepted []*model.TaskInstance
	from := make(map[uuid.UUID]model.TaskStatus)
	for i, t := range targets {
		if err := checkStatus(t, to, approved[t.ID], deps); err != nil {
			rejected = append(rejected, reject(rows[i], t.ID, err))
			continue
		}
		from[t.ID] = t.Status
		model.ApplyStatus(t, to, now)
		t.UpdatedBy = user.ID.String()
		accepted = append(accepted, t)
	}

	err = s.commitBatch(user, "task.batch_status", accepted, func(t *model.TaskInstance) map[string]any {
		return map[string]any{"from": from[t.ID], "to": to}
	})
	if err != nil {
		return nil, err
	}
	result := s.finishBatch(accepted, rejected, now)
	for _, t := range accepted {
		if from[t.ID] != to {
			metrics.ObserveTransition(string(from[t.ID]), string(to))
		}
	}
	span.SetAttributes(attribute.Int("batch.accepted", len(result.Accepted)), attribute.Int("batch.rejected", len(result.Rejected)))
	s.log.Info("batch status applied", zap.String("to", string(to)), zap.Int("updated", result.Updated), zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

func (s *taskService) BatchAssign(ctx context.Context, user *rbac.User, req BatchAssignRequest) (*BatchResult, error) {
	_, span := tracing.Tracer().Start(ctx, "tasks.batchAssign")
	defer span.End()

	if err := validate(&req); err != nil {
		return nil, err
	}
	targets, rows, rejected, err := s.batchTargets(user, req.IDs, model.ActAssign)
	if err != nil {
		return nil, err
	}

	var accepted []*model.TaskInstance
	for i, t := range targets {
		candidate := *t
		if err := s.resolveAssignment(&candidate, req.AssignRequest); err != nil {
			rejected = append(rejected, reject(rows[i], t.ID, err))
			continue
		}
		candidate.UpdatedBy = user.ID.String()
		*t = candidate
		accepted = append(accepted, t)
	}

	if err := s.commitBatch(user, "task.batch_assign", accepted, assigneeDetails); err != nil {
		return nil, err
	}
	result := s.finishBatch(accepted, rejected, s.now())
	span.SetAttributes(attribute.Int("batch.accepted", len(result.Accepted)), attribute.Int("batch.rejected", len(result.Rejected)))
	s.log.Info("batch assign applied", zap.Int("updated", result.Updated), zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

func (s *taskService) finishBatch(accepted []*model.TaskInstance, rejected []BatchRejection, now time.Time) *BatchResult {
	result := &BatchResult{Updated: len(accepted), Accepted: []uuid.UUID{}, Rejected: rejected}
	if result.Rejected == nil {
		result.Rejected = []BatchRejection{}
	}
	sort.Slice(result.Rejected, func(i, j int) bool { return result.Rejected[i].Row < result.Rejected[j].Row })
	for _, t := range accepted {
		result.Accepted = append(result.Accepted, t.ID)
		s.events.Publish(events.FromTask(events.TaskUpdated, t, now))
	}
	return result
}

func (s *taskService) Delete(user *rbac.User, id uuid.UUID) error {
	task, err := s.load(user, id, model.ActDelete)
	if err != nil {
		return err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.SoftDelete(tx, task, user.ID.String()); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "task.delete", model.EntityTaskInstance, task.ID.String(),
			map[string]any{"templateId": task.TemplateID.String(), "localityId": task.LocalityID.String()})
	})
	if err != nil {
		return err
	}
	s.events.Publish(events.FromTask(events.TaskDeleted, task, s.now()))
	return nil
}

func (s *taskService) scoped(user *rbac.User, filter repository.TaskFilter) ([]model.TaskInstance, map[uuid.UUID]model.TaskStatus, error) {
	scope := rbac.ScopeFor(user, model.ResTaskInstances, model.ActRead)
	if !scope.Allowed {
		return nil, nil, ErrForbidden
	}
	tasks, err := s.tasks.FindAll(filter, scope)
	if err != nil {
		return nil, nil, err
	}
	statuses, err := s.tasks.DependencyStatuses(tasks)
	if err != nil {
		return nil, nil, err
	}
	return tasks, statuses, nil
}

// Gantt lays tasks out from creation to due date, grouped by phase order.
func (s *taskService) Gantt(user *rbac.User, filter repository.TaskFilter) ([]GanttRow, error) {
	tasks, statuses, err := s.scoped(user, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rows := make([]GanttRow, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		row := GanttRow{
			ID:           t.ID,
			LocalityID:   t.LocalityID,
			Start:        t.CreatedAt,
			End:          t.DueDate,
			Status:       t.Status,
			Progress:     t.ProgressPercent,
			BlockedByIDs: append([]uuid.UUID{}, t.BlockedByIDs...),
			IsLate:       model.IsLate(t, now),
			IsBlocked:    model.IsBlocked(t, statuses),
		}
		if row.Start.After(row.End) {
			row.Start = row.End
		}
		if t.Template != nil {
			row.Title = t.Template.Title
			row.PhaseID = t.Template.PhaseID
			if t.Template.Phase != nil {
				row.PhaseName = t.Template.Phase.Label()
				row.phaseOrder = t.Template.Phase.DisplayOrder
			}
		}
		if t.Locality != nil {
			row.LocalityCode = t.Locality.Code
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].phaseOrder != rows[j].phaseOrder {
			return rows[i].phaseOrder < rows[j].phaseOrder
		}
		return rows[i].End.Before(rows[j].End)
	})
	return rows, nil
}

// Calendar buckets a year's tasks by due day (UTC).
func (s *taskService) Calendar(user *rbac.User, year int, filter repository.TaskFilter) (*Calendar, error) {
	if year < 1970 || year > 9999 {
		return nil, ErrValidation.WithMessage("invalid year %d", year)
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)
	filter.DueFrom, filter.DueTo = &from, &to

	tasks, statuses, err := s.scoped(user, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cal := &Calendar{Year: year, Days: []CalendarDay{}}
	index := make(map[string]int)
	for i := range tasks {
		day := tasks[i].DueDate.UTC().Format("2006-01-02")
		pos, ok := index[day]
		if !ok {
			pos = len(cal.Days)
			index[day] = pos
			cal.Days = append(cal.Days, CalendarDay{Date: day})
		}
		cal.Days[pos].Items = append(cal.Days[pos].Items, presentTask(user, &tasks[i], now, statuses))
	}
	sort.Slice(cal.Days, func(i, j int) bool { return cal.Days[i].Date < cal.Days[j].Date })
	return cal, nil
}
