package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/wilddocs/wilddocs-api/api/swagger"
	"github.com/wilddocs/wilddocs-api/internal/handler"
	"github.com/wilddocs/wilddocs-api/internal/middleware"
	"github.com/wilddocs/wilddocs-api/internal/models"
	"github.com/wilddocs/wilddocs-api/internal/repository"
	"github.com/wilddocs/wilddocs-api/internal/service"
	"github.com/wilddocs/wilddocs-api/pkg/cache"
	"github.com/wilddocs/wilddocs-api/pkg/config"
	"github.com/wilddocs/wilddocs-api/pkg/database"
	"github.com/wilddocs/wilddocs-api/pkg/logger"
	"github.com/wilddocs/wilddocs-api/pkg/mailer"
	corsmiddleware "github.com/wilddocs/wilddocs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/wilddocs/wilddocs-api/pkg/middleware/requestid"
	"github.com/wilddocs/wilddocs-api/pkg/storage"
)

// @title WildDocs API
// @version 1.0.0
// @description Student document request portal for the registrar's office
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, statistics cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	slipStore, err := storage.NewLocalStorage(cfg.Slips.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init slip storage", "error", err)
	}
	slipSigner := storage.NewSignedURLSigner(cfg.Slips.SignedURLSecret, cfg.Slips.SignedURLTTL)

	var mailSink mailer.Sink
	if cfg.SMTP.Enabled {
		mailSink = mailer.NewSMTPSink(cfg.SMTP)
	} else {
		mailSink = mailer.NewNoopSink()
	}

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, profileRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "wilddocs-api",
	})

	documentService := service.NewDocumentService(documentRepo, nil, logr, cfg.Documents.DefaultFeeCents)

	notificationService := service.NewNotificationService(notificationRepo, profileRepo, requestRepo, mailSink, metricsService, service.NotificationConfig{
		From:         cfg.SMTP.From,
		QueueWorkers: cfg.Notifications.QueueWorkers,
		QueueRetries: cfg.Notifications.QueueRetries,
		RetryDelay:   cfg.Notifications.RetryDelay,
		ReminderDays: cfg.Reminders.ThresholdDays,
	}, logr)

	var statsCacheTTL time.Duration
	if cfg.Dashboard.Enabled {
		statsCacheTTL = cfg.Dashboard.CacheTTL
	}
	requestService := service.NewRequestService(requestRepo, historyRepo, documentService, profileRepo, notificationService, metricsService, cacheRepo, statsCacheTTL, cfg.Reminders.ThresholdDays, nil, logr)

	commentService := service.NewCommentService(commentRepo, requestRepo, notificationService, nil, logr)
	exportService := service.NewExportService(requestRepo, slipStore, slipSigner, metricsService, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	documentHandler := handler.NewDocumentHandler(documentService)
	requestHandler := handler.NewRequestHandler(requestService, exportService)
	adminHandler := handler.NewAdminHandler(requestService, exportService)
	commentHandler := handler.NewCommentHandler(commentService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	downloadHandler := handler.NewDownloadHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	scheduler := cron.New()
	if cfg.Reminders.Enabled {
		if _, err := scheduler.AddFunc(cfg.Reminders.CronSpec, func() {
			sent, err := notificationService.RunReminderSweep(ctx)
			if err != nil {
				logr.Sugar().Warnw("reminder sweep failed", "error", err)
				return
			}
			logr.Sugar().Infow("reminder sweep finished", "sent", sent)
		}); err != nil {
			logr.Sugar().Fatalw("invalid reminder cron spec", "spec", cfg.Reminders.CronSpec, "error", err)
		}
	}
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.Slips.CleanupInterval), func() {
		removed := exportService.CleanupSlips(cfg.Slips.CleanupInterval)
		if removed > 0 {
			logr.Sugar().Infow("slip cleanup finished", "removed", removed)
		}
	}); err != nil {
		logr.Sugar().Fatalw("failed to schedule slip cleanup", "error", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/documents", documentHandler.List)
		authed.GET("/documents/:id", documentHandler.Get)

		requests := authed.Group("/requests")
		requests.Use(middleware.RequireRoles(models.RoleStudent))
		{
			requests.POST("", middleware.Audit(userRepo, models.AuditActionRequestCreate, "request"), requestHandler.Create)
			requests.GET("", requestHandler.List)
			requests.GET("/statistics", requestHandler.Statistics)
			requests.GET("/summary", requestHandler.Summary)
			requests.GET("/:id", requestHandler.Get)
			requests.POST("/:id/cancel", middleware.Audit(userRepo, models.AuditActionRequestCancel, "request"), requestHandler.Cancel)
			requests.GET("/:id/timeline", requestHandler.Timeline)
			requests.GET("/:id/slip", middleware.Audit(userRepo, models.AuditActionSlipDownload, "request"), requestHandler.PickupSlip)
			requests.GET("/:id/receipt", middleware.Audit(userRepo, models.AuditActionSlipDownload, "request"), requestHandler.Receipt)
			requests.POST("/:id/comments", commentHandler.Create)
			requests.GET("/:id/comments", commentHandler.List)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
		}

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireRoles(models.RoleStaff, models.RoleAdmin))
		{
			admin.GET("/requests", adminHandler.List)
			admin.GET("/requests/overdue", adminHandler.Overdue)
			admin.GET("/requests/export", adminHandler.Export)
			admin.GET("/requests/:id", adminHandler.Get)
			admin.POST("/requests/:id/approve", middleware.Audit(userRepo, models.AuditActionRequestUpdate, "request"), adminHandler.Approve)
			admin.POST("/requests/:id/reject", middleware.Audit(userRepo, models.AuditActionRequestUpdate, "request"), adminHandler.Reject)
			admin.POST("/requests/:id/complete", middleware.Audit(userRepo, models.AuditActionRequestUpdate, "request"), adminHandler.Complete)
			admin.POST("/requests/:id/assign", middleware.Audit(userRepo, models.AuditActionRequestUpdate, "request"), adminHandler.Assign)
			admin.GET("/requests/:id/comments", commentHandler.List)
			admin.POST("/requests/:id/comments", commentHandler.Create)

			admin.POST("/documents", documentHandler.Create)
			admin.PUT("/documents/:id", documentHandler.Update)
			admin.DELETE("/documents/:id", documentHandler.Deactivate)

			admin.GET("/summary", adminHandler.Summary)
			admin.POST("/reminders/run", middleware.RequireRoles(models.RoleAdmin), notificationHandler.RunReminderSweep)
		}
	}

	api.GET("/downloads/:token", downloadHandler.Download)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
