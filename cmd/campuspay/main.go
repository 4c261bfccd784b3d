package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campuspay/campuspay/db"
	"github.com/campuspay/campuspay/internal/activity"
	"github.com/campuspay/campuspay/internal/app"
	"github.com/campuspay/campuspay/internal/courses"
	"github.com/campuspay/campuspay/internal/dashboard"
	"github.com/campuspay/campuspay/internal/ledger"
	"github.com/campuspay/campuspay/internal/observability"
	platformcache "github.com/campuspay/campuspay/internal/platform/cache"
	platformdb "github.com/campuspay/campuspay/internal/platform/db"
	"github.com/campuspay/campuspay/internal/students"
	"github.com/campuspay/campuspay/internal/users"
	"github.com/campuspay/campuspay/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := platformdb.Migrate(dbpool, db.Migrations); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := platformcache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	activityRepo := activity.NewRepository(dbpool)
	activityService := activity.NewService(activityRepo, logger)
	activityHandler := activity.NewHandler(logger, activityService)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, activityService, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, metrics)

	studentsRepo := students.NewRepository(dbpool)
	studentsService := students.NewService(studentsRepo, activityService, logger)
	studentsHandler := students.NewHandler(logger, studentsService)

	coursesRepo := courses.NewRepository(dbpool)
	coursesService := courses.NewService(coursesRepo, activityService, logger)
	coursesHandler := courses.NewHandler(logger, coursesService, ledgerService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, activityService, logger)
	usersHandler := users.NewHandler(logger, usersService)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardTTL)
	dashboardRepo := dashboard.NewRepository(dbpool)
	dashboardService := dashboard.NewService(dashboardRepo, dashboardCache, logger)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledgerHandler,
		StudentsHandler:  studentsHandler,
		CoursesHandler:   coursesHandler,
		UsersHandler:     usersHandler,
		ActivityHandler:  activityHandler,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
