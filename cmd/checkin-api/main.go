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

	_ "github.com/covenantkids/checkin-api/api/swagger"
	"github.com/covenantkids/checkin-api/internal/handler"
	"github.com/covenantkids/checkin-api/internal/middleware"
	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/repository"
	"github.com/covenantkids/checkin-api/internal/service"
	"github.com/covenantkids/checkin-api/pkg/cache"
	"github.com/covenantkids/checkin-api/pkg/config"
	"github.com/covenantkids/checkin-api/pkg/database"
	"github.com/covenantkids/checkin-api/pkg/jobs"
	"github.com/covenantkids/checkin-api/pkg/logger"
	corsmiddleware "github.com/covenantkids/checkin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/covenantkids/checkin-api/pkg/middleware/requestid"
)

// @title Covenant Kids Check-In API
// @version 0.1.0
// @description Children and teens ministry check-in service
// @BasePath /
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
	childRepo := repository.NewChildRepository(db)
	guardianRepo := repository.NewGuardianRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	checkInRepo := repository.NewCheckInRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	credentialRepo := repository.NewCredentialRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, true)

	notificationSvc := service.NewNotificationService(
		notificationRepo,
		&service.LogEmailSender{Logger: logr},
		&service.LogSMSSender{Logger: logr},
		logr,
		service.NotificationConfig{
			Enabled:      cfg.Notifications.Enabled,
			EmailEnabled: cfg.Notifications.EmailEnabled,
			SMSEnabled:   cfg.Notifications.SMSEnabled,
		},
	)

	deliveryQueue := jobs.NewQueue("notification-delivery", notificationSvc.DeliveryHandler, jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		Logger:     logr,
	})
	notificationSvc.AttachQueue(deliveryQueue)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	deliveryQueue.Start(queueCtx)
	defer deliveryQueue.Stop()

	credentialCfg := service.CredentialConfig{
		CheckinQRTTL: cfg.Credentials.CheckinQRTTL,
		PickupTTL:    cfg.Credentials.PickupTTL,
		MFAOTPTTL:    cfg.Credentials.MFAOTPTTL,
		OTPLength:    cfg.Credentials.OTPLength,
	}

	authSvc := service.NewAuthService(userRepo, credentialRepo, notificationSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		MFAOTPExpiry:       cfg.Credentials.MFAOTPTTL,
		OTPLength:          cfg.Credentials.OTPLength,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	childSvc := service.NewChildService(childRepo, guardianRepo, userRepo, notificationSvc, validate, logr)
	guardianSvc := service.NewGuardianService(guardianRepo, userRepo, validate, logr, service.GuardianConfig{
		SecondaryAuthWindow: cfg.Guardians.SecondaryAuthWindow,
	})
	groupSvc := service.NewGroupService(groupRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, sessionRepo, childRepo, guardianRepo, userRepo, validate, logr, cfg.Credentials.OTPLength)
	checkInSvc := service.NewCheckInService(childRepo, sessionRepo, bookingRepo, checkInRepo, guardianRepo, credentialRepo, userRepo, notificationSvc, validate, logr, credentialCfg)
	checkOutSvc := service.NewCheckOutService(childRepo, checkInRepo, bookingRepo, guardianRepo, credentialRepo, userRepo, notificationSvc, validate, logr, credentialCfg)
	reportSvc := service.NewReportService(reportRepo, cacheSvc, metricsSvc, cfg.Reports, logr)

	checkInSvc.AttachMetrics(metricsSvc)
	checkOutSvc.AttachMetrics(metricsSvc)

	// Birthday greetings go out once per day. The loop rides on the queue
	// context so shutdown stops it together with the delivery workers.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-queueCtx.Done():
				return
			case now := <-ticker.C:
				if sent, err := childSvc.SendBirthdayGreetings(queueCtx, now.UTC()); err != nil {
					logr.Sugar().Errorw("birthday greetings failed", "error", err)
				} else if sent > 0 {
					logr.Sugar().Infow("birthday greetings sent", "count", sent)
				}
			}
		}
	}()

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	childHandler := handler.NewChildHandler(childSvc)
	guardianHandler := handler.NewGuardianHandler(guardianSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	checkInHandler := handler.NewCheckInHandler(checkInSvc, guardianSvc)
	checkOutHandler := handler.NewCheckOutHandler(checkOutSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, guardianSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, reportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/verify-mfa", authHandler.VerifyMFA)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyGuardian := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleParent, models.RoleTeen)

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.POST("", adminOnly, userHandler.Create)
		users.PUT("/:id", adminOnly, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Delete)
	}

	children := protected.Group("/children")
	{
		children.GET("", anyGuardian, childHandler.List)
		children.GET("/:id", anyGuardian, childHandler.Get)
		children.POST("", anyGuardian, childHandler.Submit)
		children.PUT("/:id", staff, childHandler.Update)
		children.POST("/:id/approve", staff, childHandler.Approve)
		children.POST("/:id/reject", staff, childHandler.Reject)
		children.DELETE("/:id", adminOnly, childHandler.Delete)
		children.GET("/birthdays", staff, childHandler.Birthdays)
	}
	protected.GET("/children/:id/guardians", anyGuardian, func(c *gin.Context) {
		c.Params = append(c.Params, gin.Param{Key: "childID", Value: c.Param("id")})
		guardianHandler.ListForChild(c)
	})
	protected.DELETE("/children/:id/guardians/:guardianID", staff, func(c *gin.Context) {
		c.Params = append(c.Params,
			gin.Param{Key: "childID", Value: c.Param("id")},
			gin.Param{Key: "id", Value: c.Param("guardianID")},
		)
		guardianHandler.Revoke(c)
	})

	guardians := protected.Group("/guardians")
	{
		guardians.GET("", staff, guardianHandler.List)
		guardians.GET("/:id", anyGuardian, guardianHandler.Get)
		guardians.POST("", anyGuardian, guardianHandler.CreateSecondary)
		guardians.POST("/:id/renew", staff, guardianHandler.Renew)
		guardians.GET("/code/:code", staff, guardianHandler.GetByCode)
	}

	groups := protected.Group("/groups")
	{
		groups.GET("", anyGuardian, groupHandler.List)
		groups.POST("", adminOnly, groupHandler.Create)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.GET("", anyGuardian, sessionHandler.List)
		sessions.GET("/today", anyGuardian, sessionHandler.Today)
		sessions.GET("/:id", anyGuardian, sessionHandler.Get)
		sessions.POST("", staff, sessionHandler.Create)
		sessions.PUT("/:id", staff, sessionHandler.Update)
		sessions.DELETE("/:id", staff, sessionHandler.Cancel)
		sessions.POST("/:id/book", anyGuardian, bookingHandler.Book)
	}

	bookings := protected.Group("/bookings")
	{
		bookings.GET("", anyGuardian, bookingHandler.List)
		bookings.GET("/:id", anyGuardian, bookingHandler.Get)
		bookings.GET("/:id/qr", anyGuardian, bookingHandler.QRImage)
		bookings.DELETE("/:id", anyGuardian, bookingHandler.Cancel)
	}

	checkin := protected.Group("/checkin")
	{
		checkin.POST("/generate-qr", anyGuardian, checkInHandler.GenerateQR)
		checkin.POST("/scan-qr", staff, checkInHandler.ScanQR)
		checkin.POST("/verify-otp", staff, checkInHandler.VerifyOTP)
		checkin.POST("/manual", staff, checkInHandler.Manual)
		checkin.GET("/active", staff, checkInHandler.Active)
		checkin.GET("/status/:childID", anyGuardian, checkInHandler.Status)
		checkin.GET("/qr/:token", anyGuardian, checkInHandler.QRImage)
	}

	checkout := protected.Group("/checkout")
	{
		checkout.POST("/notify/:childID", staff, checkOutHandler.Notify)
		checkout.POST("/verify", staff, checkOutHandler.Verify)
		checkout.POST("/release/:childID", staff, checkOutHandler.Release)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", anyGuardian, notificationHandler.List)
		notifications.POST("/:id/read", anyGuardian, notificationHandler.MarkRead)
		notifications.POST("/read-all", anyGuardian, notificationHandler.MarkAllRead)
	}

	reports := protected.Group("/reports")
	{
		reports.GET("/attendance", staff, reportHandler.Attendance)
		reports.GET("/attendance/child/:id", anyGuardian, reportHandler.ChildHistory)
		reports.GET("/export", staff, middleware.Audit(userRepo, models.AuditActionReportExport, "report"), reportHandler.Export)
	}

	protected.GET("/metrics/system", adminOnly, metricsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
