package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/booking-reminders/api/swagger"
	"github.com/noah-isme/booking-reminders/internal/handler"
	"github.com/noah-isme/booking-reminders/internal/middleware"
	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/internal/repository"
	"github.com/noah-isme/booking-reminders/internal/service"
	"github.com/noah-isme/booking-reminders/pkg/cache"
	"github.com/noah-isme/booking-reminders/pkg/config"
	"github.com/noah-isme/booking-reminders/pkg/database"
	"github.com/noah-isme/booking-reminders/pkg/jobs"
	"github.com/noah-isme/booking-reminders/pkg/logger"
	"github.com/noah-isme/booking-reminders/pkg/mailer"
	reqidmiddleware "github.com/noah-isme/booking-reminders/pkg/middleware/requestid"
	"github.com/noah-isme/booking-reminders/pkg/mq"
	"github.com/noah-isme/booking-reminders/pkg/obs"
	"github.com/noah-isme/booking-reminders/pkg/sms"
)

const shutdownTimeout = 15 * time.Second

// @title Booking Reminders
// @version 1.0.0
// @description Ops surface of the booking reminder worker
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("reminder worker failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logr.Sugar().Warnw("tracer shutdown failed", "error", err)
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	bookingRepo := repository.NewBookingReminderRepository(db, metrics)

	notifier := service.NewNotificationService(
		mailer.New(cfg.Mail, cfg.Notify.HTTPTimeout, logr),
		sms.New(cfg.SMS, cfg.Notify.HTTPTimeout, logr),
		logr,
		cfg.Reminders.DefaultTimezone,
	)

	opts := []service.ReminderOption{service.WithMetrics(metrics)}

	if cfg.Reminders.DistributedLock {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		opts = append(opts, service.WithLocker(repository.NewSweepLockRepository(redisClient)))
		logr.Info("distributed sweep lock enabled")
	}

	if cfg.Broker.URL != "" {
		publisher, err := mq.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()

		events := service.NewReminderEventService(publisher, logr)
		queue := jobs.NewQueue("reminder-events", events.HandleJob, jobs.QueueConfig{
			Workers:    2,
			BufferSize: 256,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
		})
		events.AttachQueue(queue)
		queue.Start(ctx)
		defer queue.Stop()
		opts = append(opts, service.WithEvents(events))
		logr.Sugar().Infow("reminder events enabled", "exchange", cfg.Broker.Exchange)
	}

	reminders := service.NewReminderService(bookingRepo, notifier, logr, cfg.Reminders, opts...)
	authService := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret})

	router := newRouter(cfg, logr, metrics, reminders, authService, bookingRepo)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := reminders.Start(ctx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logr.Sugar().Errorw("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := reminders.Stop(shutdownCtx); err != nil {
		logr.Sugar().Warnw("reminder sweep did not stop cleanly", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logr.Info("reminder worker stopped")
	return nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, reminders *service.ReminderService,
	authService *service.AuthService, bookingRepo *repository.BookingReminderRepository) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{"postgres": bookingRepo})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	reminderHandler := handler.NewReminderHandler(reminders, metrics, cfg.Reminders, logr)
	internal := r.Group("/internal/reminders")
	internal.GET("/status", reminderHandler.Status)
	internal.POST("/sweep",
		middleware.JWT(authService),
		middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin),
		reminderHandler.Trigger,
	)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
