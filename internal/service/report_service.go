package service

import (
	"strings"

	"go-taskboard/internal/model"
	"go-taskboard/internal/rbac"
	"go-taskboard/internal/repository"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReportService handles the evidence that satisfies the REPORT_REQUIRED gate.
type ReportService interface {
	Submit(user *rbac.User, taskID uuid.UUID, req *ReportRequest) (*model.TaskReportResponse, error)
	List(user *rbac.User, taskID uuid.UUID) ([]model.TaskReportResponse, error)
	Approve(user *rbac.User, reportID uuid.UUID, note string) (*model.TaskReportResponse, error)
	Reject(user *rbac.User, reportID uuid.UUID, note string) (*model.TaskReportResponse, error)
}

type ReportRequest struct {
	Summary       string `json:"summary" validate:"required"`
	AttachmentURL string `json:"attachmentUrl" validate:"omitempty,url"`
}

type reportService struct {
	db      *gorm.DB
	reports repository.ReportRepository
	tasks   repository.TaskRepository
	audit   AuditService
	policy  *bluemonday.Policy
	log     *zap.Logger
	now     Clock
}

func NewReportService(db *gorm.DB, reports repository.ReportRepository, tasks repository.TaskRepository, audit AuditService, log *zap.Logger, now Clock) ReportService {
	return &reportService{
		db:      db,
		reports: reports,
		tasks:   tasks,
		audit:   audit,
		policy:  bluemonday.StrictPolicy(),
		log:     log,
		now:     now,
	}
}

// task loads the report's task through the caller's reports scope for action.
func (s *reportService) task(user *rbac.User, taskID uuid.UUID, action string) (*model.TaskInstance, error) {
	scope := rbac.ScopeFor(user, model.ResReports, action)
	if !scope.Allowed {
		return nil, ErrForbidden
	}
	t, err := s.tasks.FindByID(taskID, scope)
	if err != nil {
		return nil, lookup(err, "task instance")
	}
	return t, nil
}

func (s *reportService) Submit(user *rbac.User, taskID uuid.UUID, req *ReportRequest) (*model.TaskReportResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	t, err := s.task(user, taskID, model.ActCreate)
	if err != nil {
		return nil, err
	}
	summary := strings.TrimSpace(s.policy.Sanitize(req.Summary))
	if summary == "" {
		return nil, ErrValidation.WithMessage("summary is empty")
	}
	rep := &model.TaskReport{
		TaskInstanceID: t.ID,
		AuthorID:       user.ID,
		Summary:        summary,
		AttachmentURL:  req.AttachmentURL,
		Status:         model.ReportPending,
	}
	rep.CreatedBy = user.ID.String()
	rep.UpdatedBy = user.ID.String()
	if err := s.reports.Create(rep); err != nil {
		return nil, err
	}
	if err := s.audit.Record(nil, user, "report.submit", "task_report", rep.ID.String(), map[string]any{"taskId": t.ID.String()}); err != nil {
		return nil, err
	}
	return presentReport(user, rep), nil
}

func (s *reportService) List(user *rbac.User, taskID uuid.UUID) ([]model.TaskReportResponse, error) {
	readScope := rbac.ScopeFor(user, model.ResTaskInstances, model.ActRead)
	t, err := s.tasks.FindByID(taskID, readScope)
	if err != nil {
		return nil, lookup(err, "task instance")
	}
	reports, err := s.reports.ListByTask(t.ID)
	if err != nil {
		return nil, err
	}
	return presentReports(user, reports), nil
}

func (s *reportService) review(user *rbac.User, reportID uuid.UUID, status model.ReportStatus, note string) (*model.TaskReportResponse, error) {
	rep, err := s.reports.FindByID(reportID)
	if err != nil {
		return nil, lookup(err, "report")
	}
	if _, err := s.task(user, rep.TaskInstanceID, model.ActApprove); err != nil {
		return nil, err
	}
	if rep.Status != model.ReportPending {
		return nil, ErrInvalidTransition.WithMessage("report is already %s", rep.Status)
	}
	now := s.now()
	reviewer := user.ID
	rep.Status = status
	rep.ReviewedByID = &reviewer
	rep.ReviewedAt = &now
	rep.ReviewNote = strings.TrimSpace(s.policy.Sanitize(note))
	rep.UpdatedBy = user.ID.String()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.reports.Update(tx, rep); err != nil {
			return err
		}
		return s.audit.Record(tx, user, "report."+strings.ToLower(string(status)), "task_report", rep.ID.String(),
			map[string]any{"taskId": rep.TaskInstanceID.String()})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report reviewed", zap.String("report", rep.ID.String()), zap.String("status", string(status)))
	return presentReport(user, rep), nil
}

func (s *reportService) Approve(user *rbac.User, reportID uuid.UUID, note string) (*model.TaskReportResponse, error) {
	return s.review(user, reportID, model.ReportApproved, note)
}

func (s *reportService) Reject(user *rbac.User, reportID uuid.UUID, note string) (*model.TaskReportResponse, error) {
	return s.review(user, reportID, model.ReportRejected, note)
}
