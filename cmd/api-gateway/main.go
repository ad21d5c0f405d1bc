package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/unipanel/unipanel-api/api/swagger"
	"github.com/unipanel/unipanel-api/internal/handler"
	"github.com/unipanel/unipanel-api/internal/middleware"
	"github.com/unipanel/unipanel-api/internal/models"
	"github.com/unipanel/unipanel-api/internal/repository"
	"github.com/unipanel/unipanel-api/internal/service"
	"github.com/unipanel/unipanel-api/pkg/cache"
	"github.com/unipanel/unipanel-api/pkg/config"
	"github.com/unipanel/unipanel-api/pkg/database"
	"github.com/unipanel/unipanel-api/pkg/jobs"
	"github.com/unipanel/unipanel-api/pkg/logger"
	corsmiddleware "github.com/unipanel/unipanel-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unipanel/unipanel-api/pkg/middleware/requestid"
)

// @title UniPanel API
// @version 1.0.0
// @description University enrollment and registration platform
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
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	termRepo := repository.NewTermRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(notificationRepo, nil, cfg.Notifications.Enabled, logr)
	notificationQueue := jobs.NewQueue("notifications", notificationSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	})
	notificationSvc.SetQueue(notificationQueue)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "unipanel-api",
		Audience:           []string{"unipanel"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	termSvc := service.NewTermService(termRepo, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, cfg.Bookings.MaxRecurrenceWeeks, validate, logr)
	catalogSvc := service.NewCatalogService(courseRepo, sectionRepo, termRepo, bookingSvc, validate, logr)
	billingSvc := service.NewBillingService(billingRepo, studentRepo, notificationSvc,
		cfg.Billing.PerCreditRate, cfg.Billing.FinancialHoldBalance, validate, logr)
	transcriptSvc := service.NewTranscriptService(enrollmentRepo, studentRepo, cacheRepo, nil,
		cfg.Transcripts.CacheTTL, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, sectionRepo, termRepo,
		billingSvc, notificationSvc, metricsSvc, validate, logr)
	gradeSvc := service.NewGradeService(enrollmentRepo, sectionRepo, transcriptSvc, notificationSvc,
		metricsSvc, validate, logr)
	reconciliationSvc := service.NewReconciliationService(sectionRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	termHandler := handler.NewTermHandler(termSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	transcriptHandler := handler.NewTranscriptHandler(transcriptSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	adminHandler := handler.NewAdminHandler(metricsSvc, reconciliationSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", adminHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", adminHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	students := protected.Group("/students")
	{
		students.GET("", middleware.RequirePermission(models.PermStudentsView), studentHandler.List)
		students.POST("", middleware.RequirePermission(models.PermStudentsEdit), studentHandler.Create)
		students.GET("/:studentId", middleware.RequirePermission(models.PermStudentsView), studentHandler.Get)
		students.PUT("/:studentId", middleware.RequirePermission(models.PermStudentsEdit), studentHandler.Update)
		students.DELETE("/:studentId", middleware.RequirePermission(models.PermStudentsEdit), studentHandler.Delete)
		students.PUT("/:studentId/holds", middleware.RequirePermission(models.PermStudentsEdit), studentHandler.SetHolds)
		students.GET("/:studentId/transcript", middleware.RequirePermission(models.PermTranscriptsView), transcriptHandler.Get)
		students.GET("/:studentId/transcript/pdf", middleware.RequirePermission(models.PermTranscriptsView), transcriptHandler.PDF)
		students.GET("/:studentId/transactions", middleware.RequirePermission(models.PermBillingView), billingHandler.ListTransactions)
		students.POST("/:studentId/payments",
			middleware.RequirePermission(models.PermBillingEdit),
			middleware.Audit(userRepo, models.AuditActionBillingWrite, "payments"),
			billingHandler.RecordPayment)
		students.GET("/:studentId/notifications", middleware.RequirePermission(models.PermStudentsView), notificationHandler.List)
	}

	terms := protected.Group("/terms")
	{
		terms.GET("", middleware.RequirePermission(models.PermCatalogView), termHandler.List)
		terms.GET("/current", middleware.RequirePermission(models.PermCatalogView), termHandler.Current)
		terms.GET("/:id", middleware.RequirePermission(models.PermCatalogView), termHandler.Get)
		terms.POST("", middleware.RequirePermission(models.PermTermsEdit), termHandler.Create)
		terms.PUT("/:id", middleware.RequirePermission(models.PermTermsEdit), termHandler.Update)
		terms.PUT("/:id/current", middleware.RequirePermission(models.PermTermsEdit), termHandler.SetCurrent)
		terms.DELETE("/:id", middleware.RequirePermission(models.PermTermsEdit), termHandler.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", middleware.RequirePermission(models.PermCatalogView), catalogHandler.ListCourses)
		courses.GET("/:id", middleware.RequirePermission(models.PermCatalogView), catalogHandler.GetCourse)
		courses.POST("", middleware.RequirePermission(models.PermCatalogEdit), catalogHandler.CreateCourse)
		courses.PUT("/:id", middleware.RequirePermission(models.PermCatalogEdit), catalogHandler.UpdateCourse)
	}

	sections := protected.Group("/sections")
	{
		sections.GET("", middleware.RequirePermission(models.PermCatalogView), catalogHandler.ListSections)
		sections.GET("/:id", middleware.RequirePermission(models.PermCatalogView), catalogHandler.GetSection)
		sections.GET("/:id/roster", middleware.RequirePermission(models.PermEnrollmentsView), gradeHandler.Roster)
		sections.POST("", middleware.RequirePermission(models.PermCatalogEdit), catalogHandler.CreateSection)
		sections.PUT("/:id", middleware.RequirePermission(models.PermCatalogEdit), catalogHandler.UpdateSection)
		sections.POST("/:id/finalize",
			middleware.RequirePermission(models.PermGradesFinalize),
			middleware.Audit(userRepo, models.AuditActionGradeWrite, "sections"),
			gradeHandler.Finalize)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", middleware.RequirePermission(models.PermEnrollmentsView), enrollmentHandler.List)
		enrollments.GET("/:id", middleware.RequirePermission(models.PermEnrollmentsView), enrollmentHandler.Get)
		enrollments.POST("",
			middleware.RequirePermission(models.PermEnrollmentsEdit),
			middleware.Audit(userRepo, models.AuditActionEnrollmentWrite, "enrollments"),
			enrollmentHandler.Enroll)
		enrollments.POST("/:id/drop",
			middleware.RequirePermission(models.PermEnrollmentsEdit),
			middleware.Audit(userRepo, models.AuditActionEnrollmentWrite, "enrollments"),
			enrollmentHandler.Drop)
		enrollments.POST("/:id/withdraw",
			middleware.RequirePermission(models.PermEnrollmentsEdit),
			middleware.Audit(userRepo, models.AuditActionEnrollmentWrite, "enrollments"),
			enrollmentHandler.Withdraw)
		enrollments.PUT("/:id/grade",
			middleware.RequirePermission(models.PermGradesEdit),
			middleware.Audit(userRepo, models.AuditActionGradeWrite, "enrollments"),
			gradeHandler.Submit)
	}

	bookings := protected.Group("")
	{
		bookings.GET("/rooms", middleware.RequirePermission(models.PermBookingsView), bookingHandler.ListRooms)
		bookings.GET("/bookings", middleware.RequirePermission(models.PermBookingsView), bookingHandler.List)
		bookings.POST("/bookings", middleware.RequirePermission(models.PermBookingsEdit), bookingHandler.Create)
		bookings.DELETE("/bookings/:id", middleware.RequirePermission(models.PermBookingsEdit), bookingHandler.Cancel)
	}

	protected.PUT("/notifications/:id/read", notificationHandler.MarkRead)

	users := protected.Group("/users", middleware.RequirePermission(models.PermUsersManage))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
	}

	admin := protected.Group("/admin", middleware.RequirePermission(models.PermAdminReconcile))
	{
		admin.GET("/metrics", adminHandler.Snapshot)
		admin.GET("/reconciliation", adminHandler.AuditCounters)
		admin.POST("/reconciliation", adminHandler.RepairCounters)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationQueue.Start(ctx)
	defer notificationQueue.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	if err := server.Shutdown(context.Background()); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
