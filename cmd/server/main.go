// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onboard/internal/config"
	"onboard/internal/handlers"
	"onboard/internal/jobs"
	applog "onboard/internal/logger"
	"onboard/internal/metrics"
	"onboard/internal/middleware"
	"onboard/internal/repositories"
	"onboard/internal/repositories/cache"
	"onboard/internal/routes"
	"onboard/internal/services/auth"
	"onboard/internal/services/dashboard"
	"onboard/internal/services/drafts"
	"onboard/internal/services/review"
	"onboard/internal/services/submission"
	"onboard/internal/storage"
	"onboard/internal/tracing"
	"onboard/internal/utils"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("failed to load configuration", zap.Error(err))
	}

	zl := applog.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zl.Sync() }()
	log := applog.NewZapAdapter(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(cfg.Tracing, cfg.App.Name)
	if err != nil {
		zl.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			zl.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// Initialize databases (PostgreSQL + Redis)
	db, err := repositories.InitDB(cfg.Database.Postgres)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				zl.Warn("failed to close database connection", zap.Error(err))
			}
		}
	}()

	redisClient := cache.NewRedisClient(&cache.RedisConfig{
		Host:     cfg.Database.Redis.Host,
		Port:     cfg.Database.Redis.Port,
		Password: cfg.Database.Redis.Password,
		DB:       cfg.Database.Redis.DB,
	})
	cacheService := cache.NewCacheService(redisClient, time.Hour)
	defer func() {
		if err := cacheService.Close(); err != nil {
			zl.Warn("failed to close redis connection", zap.Error(err))
		}
	}()
	if err := cacheService.HealthCheck(ctx); err != nil {
		zl.Fatal("failed to connect to redis", zap.Error(err))
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		zl.Fatal("failed to initialise document store", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Storage.StagingDir, 0o750); err != nil {
		zl.Fatal("failed to create staging dir", zap.Error(err))
	}
	staging := afero.NewBasePathFs(afero.NewOsFs(), cfg.Storage.StagingDir)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	adminRepo := repositories.NewAdminRepository(db)
	orphanRepo := repositories.NewOrphanRepository(db)

	// Services
	tokens := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	authService := auth.NewService(userRepo, tokens, auth.NewGoogleProvider(cfg.Auth.Google), cacheService, log)
	submissionService := submission.NewService(store, appRepo, orphanRepo, log, submission.WithMetrics(m))
	draftService := drafts.NewService(cacheService, staging, submissionService, log, cfg.Uploads.MaxFileSize)
	reviewService := review.NewService(appRepo, messageRepo, log, review.WithMetrics(m))
	dashboardService := dashboard.NewService(appRepo, messageRepo, log, cfg.Dashboard.PollInterval, cfg.Dashboard.WatchTimeout)

	authMiddleware := middleware.NewAuthMiddleware(authService, log)
	adminGate := middleware.NewAdminGate(adminRepo, cacheService, m, log)
	unsubscribe := adminGate.EvictOnSignOut(authService)
	defer unsubscribe()

	// Background jobs
	scheduler := jobs.NewScheduler(log)
	if err := scheduler.Add("orphan-sweep", cfg.Jobs.OrphanSweep, jobs.NewOrphanSweeper(orphanRepo, store, m, log)); err != nil {
		zl.Fatal("failed to schedule jobs", zap.Error(err))
	}
	if err := scheduler.Add("staging-cleanup", cfg.Jobs.StagingCleanup, jobs.NewStagingCleaner(draftService, log)); err != nil {
		zl.Fatal("failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		BodyLimit:    int(cfg.Uploads.MaxFileSize) + 1<<20,
		ErrorHandler: response.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(middleware.RequestMetrics(m))

	authLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	})
	app.Use("/api/auth/signin", authLimiter)
	app.Use("/api/auth/signup", authLimiter)

	var files *handlers.FilesHandler
	if local, ok := store.(*storage.LocalStore); ok {
		files = handlers.NewFilesHandler(local.Fs(), local.Bucket(), "/files", adminGate.Handler)
	}

	// Routes
	routes.SetupRoutes(app, routes.Handlers{
		Auth:           handlers.NewAuthHandler(authService, cfg.IsProduction()),
		Intake:         handlers.NewIntakeHandler(draftService),
		Applications:   handlers.NewApplicationsHandler(dashboardService).WithShutdown(ctx),
		Admin:          handlers.NewAdminHandler(reviewService),
		Health:         handlers.NewHealthHandler(db, cacheService),
		Files:          files,
		AuthMiddleware: authMiddleware,
		AdminGate:      adminGate,
		Gatherer:       reg,
	})

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zl.Warn("server shutdown", zap.Error(err))
		}
	}()

	zl.Info("server starting", zap.String("port", cfg.App.Port), zap.String("storage", cfg.Storage.Driver))
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
}
