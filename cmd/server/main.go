package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/viewing-scheduler/internal/config"
	"github.com/iliyamo/viewing-scheduler/internal/database"
	"github.com/iliyamo/viewing-scheduler/internal/handler"
	"github.com/iliyamo/viewing-scheduler/internal/job"
	"github.com/iliyamo/viewing-scheduler/internal/logger"
	"github.com/iliyamo/viewing-scheduler/internal/middleware"
	"github.com/iliyamo/viewing-scheduler/internal/queue"
	"github.com/iliyamo/viewing-scheduler/internal/repository"
	"github.com/iliyamo/viewing-scheduler/internal/router"
	"github.com/iliyamo/viewing-scheduler/internal/service"
	"github.com/iliyamo/viewing-scheduler/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		notifier  store.Notifier
		publisher *service.EventPublisher
	)
	if cfg.EventsEnabled {
		publisher = &service.EventPublisher{
			URL:      cfg.AMQPURL,
			Queue:    cfg.EventsQueue,
			Timezone: cfg.Timezone,
			Logger:   lg.Named("events"),
		}
		notifier = publisher
	}

	st, err := store.New(store.Options{
		Timezone: cfg.Timezone,
		Days:     cfg.ScheduleDays,
		Notifier: notifier,
		Logger:   lg.Named("store"),
	})
	if err != nil {
		lg.Fatal("initialise store", zap.Error(err))
	}
	if publisher != nil {
		publisher.Timezone = st.Location().String()
	}

	var (
		db       *sql.DB
		auditLog *repository.EventRepo
	)
	if cfg.AuditEnabled() {
		db, err = database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			lg.Fatal("open audit database", zap.Error(err))
		}
		defer db.Close()
		auditLog = repository.NewEventRepo(db)
		if err := auditLog.EnsureSchema(ctx); err != nil {
			lg.Fatal("audit schema", zap.Error(err))
		}
	}

	if cfg.EventsEnabled && cfg.ConsumeEvents {
		var sink queue.Sink = queue.LogSink{Logger: lg.Named("audit")}
		if auditLog != nil {
			sink = auditLog
		}
		consumer := &queue.Consumer{URL: cfg.AMQPURL, Queue: cfg.EventsQueue, Sink: sink, Logger: lg.Named("consumer")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	if cfg.ReportSchedule != "" {
		c, err := job.StartInventoryReport(cfg.ReportSchedule, st, lg.Named("report"))
		if err != nil {
			lg.Fatal("inventory report", zap.Error(err))
		}
		defer c.Stop()
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		lg.Warn("redis unavailable; rate limiting and listing cache disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(lg.Named("http")))

	router.RegisterRoutes(e)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg.Named("ratelimit"))
	viewings := handler.NewViewingHandler(st, middleware.NewCachePurger(cacheCfg, rdb), lg.Named("http"))
	router.RegisterViewings(e, viewings, limiter, middleware.NewRedisCache(cacheCfg, rdb))
	if cfg.JWTSecret != "" && auditLog != nil {
		router.RegisterAdmin(e, &handler.AuditHandler{Events: auditLog, Logger: lg.Named("audit")}, cfg.JWTSecret, limiter)
	}

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", st.Location().String()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}
	if publisher != nil {
		publisher.Wait()
	}
}
