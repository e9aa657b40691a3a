package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-taskboard/internal/events"
	"go-taskboard/internal/handler"
	"go-taskboard/internal/repository"
	"go-taskboard/internal/service"
	"go-taskboard/internal/ws"
	"go-taskboard/pkg/config"
	"go-taskboard/pkg/database"
	"go-taskboard/pkg/logger"
	"go-taskboard/pkg/metrics"
	"go-taskboard/pkg/tracing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog := logger.New(cfg.Log)
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, zlog, cfg.OTLPEndpoint, "go-taskboard", cfg.Env)
	if err != nil {
		zlog.Fatal("tracing init failed", zap.Error(err))
	}

	// 2. Setup Database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		zlog.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zlog.Fatal("database migrate failed", zap.Error(err))
	}

	// 3. Live updates: local hub, optionally fanned out through Redis
	hub := ws.NewHub(zlog)
	go hub.Run(ctx)
	var publisher events.Publisher = hub
	if cfg.RedisURL != "" {
		bus, err := events.NewRedisBus(cfg.RedisURL, hub, zlog)
		if err != nil {
			zlog.Fatal("redis event bus failed", zap.Error(err))
		}
		defer bus.Close()
		go bus.Run(ctx)
		publisher = bus
		zlog.Info("redis event bus enabled")
	}

	// 4. Dependency Injection (Wiring Layers)
	now := service.Clock(service.SystemClock)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	permRepo := repository.NewPermissionRepo(db)
	taskRepo := repository.NewTaskRepo(db)
	templateRepo := repository.NewTemplateRepo(db)
	reportRepo := repository.NewReportRepo(db)
	commentRepo := repository.NewCommentRepo(db)
	localityRepo := repository.NewLocalityRepo(db)
	refRepo := repository.NewReferenceRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	auditService := service.NewAuditService(auditRepo, zlog, now)
	rbacService := service.NewRBACService(db, permRepo, roleRepo, auditService, zlog)
	userService := service.NewUserService(db, userRepo, roleRepo, localityRepo, refRepo, auditService)

	// 5. Seed permissions, roles and the first admin
	if err := rbacService.Seed(); err != nil {
		zlog.Fatal("seed rbac catalog failed", zap.Error(err))
	}
	if created, err := userService.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		zlog.Warn("seed admin user failed", zap.Error(err))
	} else if created {
		zlog.Info("admin user created", zap.String("email", cfg.AdminEmail))
	}

	services := handler.Services{
		DB:         db,
		Users:      userRepo,
		JWTSecret:  cfg.JWTSecret,
		Log:        zlog,
		Hub:        hub,
		Tasks:      service.NewTaskService(db, taskRepo, reportRepo, localityRepo, userRepo, refRepo, auditService, publisher, zlog, now),
		Templates:  service.NewTemplateService(db, templateRepo, taskRepo, localityRepo, userRepo, refRepo, auditService, publisher, zlog, now),
		Reports:    service.NewReportService(db, reportRepo, taskRepo, auditService, zlog, now),
		Comments:   service.NewCommentService(commentRepo, taskRepo, now),
		Dashboard:  service.NewDashboardService(taskRepo, reportRepo, localityRepo, cfg.RiskWeights, cfg.RiskThreshold, now),
		References: service.NewReferenceService(localityRepo, refRepo, auditService, now),
		UserAdmin:  userService,
		RBAC:       rbacService,
		Audit:      auditService,
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Taskboard API v1.0",
		ErrorHandler: handler.ErrorHandler(zlog),
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))
	app.Use(metrics.Middleware())

	// 7. Routes
	handler.Register(app, services)

	// 8. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(tctx); err != nil {
		zlog.Warn("tracing shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}
