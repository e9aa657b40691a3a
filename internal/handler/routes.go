package handler

import (
	"go-taskboard/internal/middleware"
	"go-taskboard/internal/model"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/internal/ws"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles everything the routes need.
type Services struct {
	DB         *gorm.DB
	Users      repository.UserRepository
	JWTSecret  string
	Log        *zap.Logger
	Hub        *ws.Hub
	Tasks      service.TaskService
	Templates  service.TemplateService
	Reports    service.ReportService
	Comments   service.CommentService
	Dashboard  service.DashboardService
	References service.ReferenceService
	UserAdmin  service.UserService
	RBAC       service.RBACService
	Audit      service.AuditService
}

// Register mounts every route on app. Coarse resource:action checks happen
// here; services narrow rows to the caller's scope.
func Register(app *fiber.App, s Services) {
	need := middleware.RequirePermission
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	app.Get("/healthz", Healthz(s.DB))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	if s.Hub != nil {
		app.Use("/ws", WSUpgrade(s.Users, s.JWTSecret, log))
		app.Get("/ws", WSConnect(s.Hub))
	}

	api := app.Group("", middleware.RequireAuth(s.Users, s.JWTSecret, log))

	authH := NewAuthHandler(s.Users)
	api.Get("/auth/me", authH.Me)

	// Task instances
	tasks := NewTaskHandler(s.Tasks)
	reports := NewReportHandler(s.Reports)
	comments := NewCommentHandler(s.Comments)
	ti := api.Group("/task-instances")
	ti.Get("/", need(model.ResTaskInstances, model.ActRead), tasks.ListTasks)
	ti.Get("/gantt", need(model.ResTaskInstances, model.ActRead), tasks.Gantt)
	ti.Get("/calendar", need(model.ResTaskInstances, model.ActRead), tasks.Calendar)
	ti.Post("/batch-assign", need(model.ResTaskInstances, model.ActAssign), tasks.BatchAssign)
	ti.Post("/batch-status", need(model.ResTaskInstances, model.ActUpdate), tasks.BatchStatus)
	ti.Get("/:id", need(model.ResTaskInstances, model.ActRead), tasks.GetTask)
	ti.Put("/:id/status", need(model.ResTaskInstances, model.ActUpdate), tasks.UpdateStatus)
	ti.Put("/:id/progress", need(model.ResTaskInstances, model.ActUpdate), tasks.UpdateProgress)
	ti.Put("/:id/assign", need(model.ResTaskInstances, model.ActAssign), tasks.Assign)
	ti.Put("/:id/dependencies", need(model.ResTaskInstances, model.ActUpdate), tasks.SetDependencies)
	ti.Delete("/:id", need(model.ResTaskInstances, model.ActDelete), tasks.DeleteTask)
	ti.Get("/:id/reports", need(model.ResTaskInstances, model.ActRead), reports.ListReports)
	ti.Post("/:id/reports", need(model.ResReports, model.ActCreate), reports.SubmitReport)
	ti.Get("/:id/comments", need(model.ResComments, model.ActRead), comments.List(model.EntityTaskInstance))
	ti.Post("/:id/comments", need(model.ResComments, model.ActCreate), comments.Add(model.EntityTaskInstance))
	ti.Put("/:id/comments/seen", need(model.ResComments, model.ActRead), comments.MarkSeen(model.EntityTaskInstance))

	act := api.Group("/activities")
	act.Get("/:id/comments", need(model.ResComments, model.ActRead), comments.List(model.EntityActivity))
	act.Post("/:id/comments", need(model.ResComments, model.ActCreate), comments.Add(model.EntityActivity))
	act.Put("/:id/comments/seen", need(model.ResComments, model.ActRead), comments.MarkSeen(model.EntityActivity))

	api.Put("/reports/:id/approve", need(model.ResReports, model.ActApprove), reports.ApproveReport)
	api.Put("/reports/:id/reject", need(model.ResReports, model.ActApprove), reports.RejectReport)

	// Templates
	templates := NewTemplateHandler(s.Templates)
	tt := api.Group("/task-templates")
	tt.Get("/", need(model.ResTaskTemplates, model.ActRead), templates.ListTemplates)
	tt.Get("/:id", need(model.ResTaskTemplates, model.ActRead), templates.GetTemplate)
	tt.Post("/", need(model.ResTaskTemplates, model.ActCreate), templates.CreateTemplate)
	tt.Put("/:id", need(model.ResTaskTemplates, model.ActUpdate), templates.UpdateTemplate)
	tt.Delete("/:id", need(model.ResTaskTemplates, model.ActDelete), templates.DeleteTemplate)
	tt.Post("/:id/generate-instances", need(model.ResTaskTemplates, model.ActGenerate), templates.GenerateInstances)

	// Dashboards
	dash := NewDashboardHandler(s.Dashboard)
	d := api.Group("/dashboard", need(model.ResDashboard, model.ActRead))
	d.Get("/localities/:id/progress", dash.GetLocalityProgress)
	d.Get("/national", dash.GetNational)
	d.Get("/executive", dash.GetExecutive)
	d.Get("/recruits", dash.GetRecruits)

	// Reference data
	refs := NewReferenceHandler(s.References)
	api.Get("/localities", need(model.ResLocalities, model.ActRead), refs.ListLocalities)
	api.Get("/localities/:id", need(model.ResLocalities, model.ActRead), refs.GetLocality)
	api.Post("/localities", need(model.ResLocalities, model.ActCreate), refs.CreateLocality)
	api.Put("/localities/:id", need(model.ResLocalities, model.ActUpdate), refs.UpdateLocality)
	api.Post("/localities/:id/recruits", need(model.ResLocalities, model.ActUpdate), refs.RecordRecruits)
	api.Get("/phases", need(model.ResPhases, model.ActRead), refs.ListPhases)
	api.Post("/phases", need(model.ResPhases, model.ActManage), refs.CreatePhase)
	api.Get("/specialties", need(model.ResPhases, model.ActRead), refs.ListSpecialties)
	api.Post("/specialties", need(model.ResPhases, model.ActManage), refs.CreateSpecialty)
	api.Get("/elo-roles", need(model.ResPhases, model.ActRead), refs.ListEloRoles)
	api.Post("/elo-roles", need(model.ResPhases, model.ActManage), refs.CreateEloRole)
	api.Get("/elos", need(model.ResElos, model.ActRead), refs.ListElos)
	api.Post("/elos", need(model.ResElos, model.ActCreate), refs.CreateElo)
	api.Get("/meetings", need(model.ResMeetings, model.ActRead), refs.ListMeetings)
	api.Post("/meetings", need(model.ResMeetings, model.ActCreate), refs.CreateMeeting)

	// Administration
	nationalOnly := middleware.RequireNational
	users := NewUserHandler(s.UserAdmin)
	api.Get("/users", nationalOnly(model.ResUsers, model.ActRead), users.GetUsers)
	api.Get("/users/:id", nationalOnly(model.ResUsers, model.ActRead), users.GetUser)
	api.Post("/users", nationalOnly(model.ResUsers, model.ActManage), users.CreateUser)
	api.Put("/users/:id", nationalOnly(model.ResUsers, model.ActManage), users.UpdateUser)
	api.Put("/users/:id/roles", nationalOnly(model.ResUsers, model.ActManage), users.UpdateUserRoles)
	api.Put("/users/:id/password", nationalOnly(model.ResUsers, model.ActManage), users.ResetPassword)

	roles := NewRoleHandler(s.RBAC)
	api.Get("/roles", nationalOnly(model.ResRBAC, model.ActRead), roles.GetRoles)
	api.Post("/roles", nationalOnly(model.ResRBAC, model.ActManage), roles.CreateRole)
	api.Put("/roles/:id/permissions", nationalOnly(model.ResRBAC, model.ActManage), roles.SetRolePermissions)
	api.Get("/permissions", nationalOnly(model.ResRBAC, model.ActRead), roles.GetPermissions)
	api.Post("/permissions", nationalOnly(model.ResRBAC, model.ActManage), roles.CreatePermission)
	api.Get("/rbac/export", nationalOnly(model.ResRBAC, model.ActRead), roles.ExportCatalog)
	api.Post("/rbac/import", nationalOnly(model.ResRBAC, model.ActManage), roles.ImportCatalog)

	audit := NewAuditHandler(s.Audit)
	api.Get("/audit-logs", nationalOnly(model.ResAuditLogs, model.ActRead), audit.ListAuditLogs)
}
