package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-taskboard/internal/events"
	"go-taskboard/internal/handler"
	"go-taskboard/internal/model"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/internal/testutil"
	"go-taskboard/pkg/config"
	"go-taskboard/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type testApp struct {
	*testutil.Fixtures
	app *fiber.App
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	f := testutil.NewFixtures(t)
	db := f.DB
	log := zap.NewNop()
	now := f.Clock.Now

	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	taskRepo := repository.NewTaskRepo(db)
	reportRepo := repository.NewReportRepo(db)
	localityRepo := repository.NewLocalityRepo(db)
	refRepo := repository.NewReferenceRepo(db)
	audit := service.NewAuditService(repository.NewAuditRepo(db), log, now)
	publisher := events.Nop{}

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(log)})
	handler.Register(app, handler.Services{
		DB:         db,
		Users:      userRepo,
		JWTSecret:  testSecret,
		Log:        log,
		Tasks:      service.NewTaskService(db, taskRepo, reportRepo, localityRepo, userRepo, refRepo, audit, publisher, log, now),
		Templates:  service.NewTemplateService(db, repository.NewTemplateRepo(db), taskRepo, localityRepo, userRepo, refRepo, audit, publisher, log, now),
		Reports:    service.NewReportService(db, reportRepo, taskRepo, audit, log, now),
		Comments:   service.NewCommentService(repository.NewCommentRepo(db), taskRepo, now),
		Dashboard:  service.NewDashboardService(taskRepo, reportRepo, localityRepo, config.DefaultRiskWeights, config.DefaultRiskThreshold, now),
		References: service.NewReferenceService(localityRepo, refRepo, audit, now),
		UserAdmin:  service.NewUserService(db, userRepo, roleRepo, localityRepo, refRepo, audit),
		RBAC:       service.NewRBACService(db, repository.NewPermissionRepo(db), roleRepo, audit, log),
		Audit:      audit,
	})
	return &testApp{Fixtures: f, app: app}
}

func token(t *testing.T, u model.User) string {
	t.Helper()
	tok, err := jwt.GenerateToken(testSecret, u.ID, u.Email, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// do sends a request as u (anonymous when u is nil) and decodes the JSON body into out.
func (a *testApp) do(t *testing.T, u *model.User, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *u))
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func expectError(t *testing.T, status int, body handler.ErrorBody, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus || body.Code != wantCode || body.Message == "" {
		t.Fatalf("got %d %+v, want %d %s", status, body, wantStatus, wantCode)
	}
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t)
	var body map[string]string
	if status := a.do(t, nil, http.MethodGet, "/healthz", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", status, body)
	}
}

func TestAuthentication(t *testing.T) {
	a := newTestApp(t)
	var body handler.ErrorBody

	status := a.do(t, nil, http.MethodGet, "/task-instances", nil, &body)
	expectError(t, status, body, http.StatusUnauthorized, service.ErrUnauthenticated.Code)

	req := httptest.NewRequest(http.MethodGet, "/task-instances", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("malformed header must be rejected, got %d", resp.StatusCode)
	}

	if err := a.DB.Model(&model.User{}).Where("id = ?", a.Member.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	status = a.do(t, &a.Member, http.MethodGet, "/task-instances", nil, &body)
	expectError(t, status, body, http.StatusUnauthorized, service.ErrUnauthenticated.Code)

	var me struct {
		User        model.UserResponse `json:"user"`
		Permissions []string           `json:"permissions"`
	}
	if status := a.do(t, &a.Manager, http.MethodGet, "/auth/me", nil, &me); status != http.StatusOK || me.User.Email != a.Manager.Email {
		t.Fatalf("me = %d %+v", status, me)
	}
	if len(me.Permissions) == 0 {
		t.Fatalf("expected the manager's grants in /auth/me")
	}
}

func TestPermissionErrors(t *testing.T) {
	a := newTestApp(t)
	var body handler.ErrorBody

	status := a.do(t, &a.Member, http.MethodGet, "/task-templates", nil, &body)
	expectError(t, status, body, http.StatusForbidden, service.ErrForbidden.Code)

	// administration routes need a national grant
	status = a.do(t, &a.Manager, http.MethodGet, "/users", nil, &body)
	expectError(t, status, body, http.StatusForbidden, service.ErrForbidden.Code)

	foreign := a.Task(t, func(task *model.TaskInstance) { task.LocalityID = a.LocalityB.ID })
	status = a.do(t, &a.Manager, http.MethodGet, "/task-instances/"+foreign.ID.String(), nil, &body)
	expectError(t, status, body, http.StatusNotFound, service.ErrNotFound.Code)

	status = a.do(t, &a.Manager, http.MethodGet, "/task-instances/not-a-uuid", nil, &body)
	expectError(t, status, body, http.StatusBadRequest, service.ErrValidation.Code)

	status = a.do(t, &a.Manager, http.MethodGet, "/task-instances?status=PAUSED", nil, &body)
	expectError(t, status, body, http.StatusBadRequest, service.ErrInvalidStatus.Code)
}

func TestCompleteTaskThroughReportApproval(t *testing.T) {
	a := newTestApp(t)
	task := a.Task(t, func(task *model.TaskInstance) { task.ReportRequired = true })
	base := "/task-instances/" + task.ID.String()
	var body handler.ErrorBody

	status := a.do(t, &a.Manager, http.MethodPut, base+"/status", map[string]string{"status": "DONE"}, &body)
	expectError(t, status, body, http.StatusConflict, service.ErrReportRequired.Code)

	status = a.do(t, &a.Manager, http.MethodPut, base+"/status", map[string]string{"status": "PAUSED"}, &body)
	expectError(t, status, body, http.StatusBadRequest, service.ErrInvalidStatus.Code)

	var rep model.TaskReportResponse
	if status := a.do(t, &a.Manager, http.MethodPost, base+"/reports", map[string]string{"summary": "Venue booked"}, &rep); status != http.StatusCreated {
		t.Fatalf("submit report = %d", status)
	}
	if status := a.do(t, &a.National, http.MethodPut, "/reports/"+rep.ID.String()+"/approve", nil, &rep); status != http.StatusOK || rep.Status != model.ReportApproved {
		t.Fatalf("approve = %d %+v", status, rep)
	}

	var done model.TaskInstanceResponse
	if status := a.do(t, &a.Manager, http.MethodPut, base+"/status", map[string]string{"status": "DONE"}, &done); status != http.StatusOK {
		t.Fatalf("complete = %d", status)
	}
	if done.Status != model.StatusDone || done.CompletedAt == nil || done.IsLate {
		t.Fatalf("unexpected task %+v", done)
	}
}

func TestListTasksPageIsCapped(t *testing.T) {
	a := newTestApp(t)
	a.ManyTasks(t, 3, nil)

	var page struct {
		Items    []model.TaskInstanceResponse `json:"items"`
		Page     int                          `json:"page"`
		PageSize int                          `json:"pageSize"`
		Total    int64                        `json:"total"`
	}
	if status := a.do(t, &a.Manager, http.MethodGet, "/task-instances?pageSize=500&page=0", nil, &page); status != http.StatusOK {
		t.Fatalf("list = %d", status)
	}
	if page.Page != 1 || page.PageSize != service.MaxPageSize || page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestPlainDateUpperBoundCoversTheDay(t *testing.T) {
	a := newTestApp(t)
	evening := time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)
	a.Task(t, func(task *model.TaskInstance) { task.DueDate = evening })

	var page struct {
		Total int64 `json:"total"`
	}
	for path, want := range map[string]int64{
		"/task-instances?dueTo=2026-03-10":                    1,
		"/task-instances?dueTo=2026-03-09":                    0,
		"/task-instances?dueTo=2026-03-10T12:00:00Z":          0,
		"/task-instances?dueFrom=2026-03-10&dueTo=2026-03-10": 1,
	} {
		if status := a.do(t, &a.National, http.MethodGet, path, nil, &page); status != http.StatusOK || page.Total != want {
			t.Fatalf("%s = %d total %d, want %d", path, status, page.Total, want)
		}
	}

	var summary struct {
		Totals struct {
			Tasks int `json:"tasks"`
		} `json:"totals"`
	}
	if status := a.do(t, &a.National, http.MethodGet, "/dashboard/national?to=2026-03-10", nil, &summary); status != http.StatusOK || summary.Totals.Tasks != 1 {
		t.Fatalf("national to=2026-03-10 = %d %+v", status, summary)
	}
}

func TestExecutiveDashboardHidesCommander(t *testing.T) {
	a := newTestApp(t)
	a.Task(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/national", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, a.Executive))
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("national = %d %s", resp.StatusCode, raw)
	}
	if strings.Contains(string(raw), "Col. Reyes") || strings.Contains(string(raw), "commanderName") {
		t.Fatalf("commander leaked: %s", raw)
	}

	var body handler.ErrorBody
	status := a.do(t, &a.Executive, http.MethodGet, "/dashboard/executive?threshold=abc", nil, &body)
	expectError(t, status, body, http.StatusBadRequest, service.ErrValidation.Code)
}
