package service_test

import (
	"errors"
	"testing"

	"go-taskboard/internal/events"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/internal/testutil"
	"go-taskboard/pkg/config"

	"go.uber.org/zap"
)

type testEnv struct {
	*testutil.Fixtures
	Events *events.Recorder

	Tasks      service.TaskService
	Templates  service.TemplateService
	Reports    service.ReportService
	Comments   service.CommentService
	Dashboard  service.DashboardService
	References service.ReferenceService
	Users      service.UserService
	RBAC       service.RBACService
	Audit      service.AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	f := testutil.NewFixtures(t)
	db := f.DB
	log := zap.NewNop()
	now := f.Clock.Now
	rec := &events.Recorder{}

	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	taskRepo := repository.NewTaskRepo(db)
	reportRepo := repository.NewReportRepo(db)
	localityRepo := repository.NewLocalityRepo(db)
	refRepo := repository.NewReferenceRepo(db)
	audit := service.NewAuditService(repository.NewAuditRepo(db), log, now)

	return &testEnv{
		Fixtures:   f,
		Events:     rec,
		Tasks:      service.NewTaskService(db, taskRepo, reportRepo, localityRepo, userRepo, refRepo, audit, rec, log, now),
		Templates:  service.NewTemplateService(db, repository.NewTemplateRepo(db), taskRepo, localityRepo, userRepo, refRepo, audit, rec, log, now),
		Reports:    service.NewReportService(db, reportRepo, taskRepo, audit, log, now),
		Comments:   service.NewCommentService(repository.NewCommentRepo(db), taskRepo, now),
		Dashboard:  service.NewDashboardService(taskRepo, reportRepo, localityRepo, config.DefaultRiskWeights, config.DefaultRiskThreshold, now),
		References: service.NewReferenceService(localityRepo, refRepo, audit, now),
		Users:      service.NewUserService(db, userRepo, roleRepo, localityRepo, refRepo, audit),
		RBAC:       service.NewRBACService(db, repository.NewPermissionRepo(db), roleRepo, audit, log),
		Audit:      audit,
	}
}

// expectCode fails unless err is a DomainError with code.
func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *service.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected %s, got %v", code, err)
	}
	if de.Code != code {
		t.Fatalf("expected %s, got %s (%s)", code, de.Code, de.Message)
	}
}
