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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/edusched/edusched-api/api/swagger"
	"github.com/edusched/edusched-api/internal/handler"
	"github.com/edusched/edusched-api/internal/middleware"
	"github.com/edusched/edusched-api/internal/models"
	"github.com/edusched/edusched-api/internal/repository"
	"github.com/edusched/edusched-api/internal/service"
	"github.com/edusched/edusched-api/pkg/cache"
	"github.com/edusched/edusched-api/pkg/config"
	"github.com/edusched/edusched-api/pkg/database"
	"github.com/edusched/edusched-api/pkg/jobs"
	"github.com/edusched/edusched-api/pkg/lock"
	"github.com/edusched/edusched-api/pkg/logger"
	corsmiddleware "github.com/edusched/edusched-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusched/edusched-api/pkg/middleware/requestid"
)

// @title EduSched API
// @version 1.0.0
// @description Scheduling and conflict-resolution engine for tutoring schools
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	profileRepo := repository.NewTeacherProfileRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	unavailabilityRepo := repository.NewUnavailabilityRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	metricsSvc := service.NewMetricsService()

	dispatcher := service.NewEventDispatcher(
		service.NewLoggingNotifier(logr),
		jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.BufferSize,
			MaxRetries: cfg.Events.MaxRetries,
			RetryDelay: cfg.Events.RetryDelay,
			Logger:     logr,
		},
		logr,
	)
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	dispatcher.Start(rootCtx)
	defer dispatcher.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: "edusched-api",
	})
	policySvc := service.NewPolicyService(schoolRepo, profileRepo, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, unavailabilityRepo, validate, logr)
	conflictSvc := service.NewConflictService(sessionRepo, unavailabilityRepo, schoolRepo, membershipRepo, logr)
	slotSvc := service.NewSlotService(availabilitySvc, sessionRepo, schoolRepo, policySvc, validate, logr)
	sessionSvc := service.NewSessionService(
		sessionRepo, schoolRepo, membershipRepo, policySvc, conflictSvc,
		lock.NewRedisLocker(redisClient), dispatcher, cfg.Booking.LockTTL, validate, logr,
	)
	templateSvc := service.NewTemplateService(templateRepo, sessionRepo, policySvc, conflictSvc, validate, logr)

	if cfg.Expander.Enabled {
		go runExpander(rootCtx, templateSvc, cfg.Expander, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, metricsSvc)
	slotHandler := handler.NewSlotHandler(slotSvc, metricsSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	templateHandler := handler.NewTemplateHandler(templateSvc, metricsSvc)
	policyHandler := handler.NewPolicyHandler(policySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/sessions", sessionHandler.Book)
		authed.GET("/sessions", sessionHandler.List)
		authed.GET("/sessions/:id", sessionHandler.Get)
		authed.POST("/sessions/:id/confirm", sessionHandler.Confirm)
		authed.POST("/sessions/:id/reject", sessionHandler.Reject)
		authed.POST("/sessions/:id/cancel", sessionHandler.Cancel)
		authed.POST("/sessions/:id/complete", sessionHandler.Complete)
		authed.POST("/sessions/:id/no-show", sessionHandler.NoShow)
		authed.POST("/sessions/:id/participants", sessionHandler.Join)

		authed.GET("/teachers/:id/slots", slotHandler.List)
		authed.GET("/teachers/:id/availability", availabilityHandler.List)

		staffOrTeacher := authed.Group("")
		staffOrTeacher.Use(middleware.RequireRoles(models.RoleOwner, models.RoleAdmin, models.RoleTeacher))
		{
			staffOrTeacher.POST("/availability", availabilityHandler.Create)
			staffOrTeacher.PUT("/availability/:id", availabilityHandler.Update)
			staffOrTeacher.DELETE("/availability/:id", availabilityHandler.Delete)
			staffOrTeacher.POST("/unavailability", availabilityHandler.CreateUnavailability)
			staffOrTeacher.DELETE("/unavailability/:id", availabilityHandler.DeleteUnavailability)
		}

		authed.GET("/schools/:schoolId/policy", policyHandler.Resolve)

		staff := authed.Group("")
		staff.Use(middleware.RequireStaff())
		{
			staff.PUT("/schools/:schoolId/teachers/:teacherId/profile", policyHandler.UpsertProfile)
			staff.POST("/templates", templateHandler.Create)
			staff.DELETE("/templates/:id", templateHandler.Deactivate)
			staff.POST("/templates/:id/expand", templateHandler.Expand)
		}
	}

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

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

// runExpander periodically materialises active recurring templates.
func runExpander(ctx context.Context, templates *service.TemplateService, cfg config.ExpanderConfig, logr *zap.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := templates.ExpandDue(ctx, cfg.WeeksAhead)
			if err != nil {
				logr.Sugar().Errorw("template expansion tick failed", "error", err)
				continue
			}
			var created, skipped, conflicts int
			for _, r := range results {
				created += r.Created
				skipped += r.Skipped
				conflicts += r.Conflicts
			}
			logr.Sugar().Infow("template expansion tick",
				"templates", len(results), "created", created, "skipped", skipped, "conflicts", conflicts)
		}
	}
}
