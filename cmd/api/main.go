package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screening-platform/internal/calls"
	"screening-platform/internal/candidates"
	"screening-platform/internal/config"
	"screening-platform/internal/dialer"
	"screening-platform/internal/notify"
	"screening-platform/internal/scheduler"
	"screening-platform/internal/timeexpr"
	"screening-platform/pkg/logger"
	"screening-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	callRepo := calls.NewPostgresRepo(db)
	candRepo := candidates.NewPostgresRepo(db)
	noteRepo := notify.NewPostgresRepo(db)
	publisher := notify.NewRedisPublisher(rdb, logger.Component(log, "notify"))

	callSvc := calls.NewService(callRepo, candRepo, noteRepo, publisher, logger.Component(log, "calls"))

	dial := dialer.New(cfg.Caller.BaseURL, cfg.Caller.DispatchTimeout)

	sched := scheduler.New(scheduler.Config{
		Tick:                cfg.Scheduler.Tick,
		SuccessGrace:        cfg.Scheduler.SuccessGrace,
		FailureGrace:        cfg.Scheduler.FailureGrace,
		DispatchTimeout:     cfg.Caller.DispatchTimeout,
		MaxDispatchFailures: cfg.Scheduler.MaxDispatchFailures,
	}, candRepo, scheduler.NewRedisGuard(rdb), dial, noteRepo, logger.Component(log, "scheduler"))

	reaper := scheduler.NewReaper(callSvc, cfg.Scheduler.ReaperInterval, cfg.Scheduler.StuckThreshold, logger.Component(log, "reaper"))

	sched.Start(rootCtx)
	reaper.Start(rootCtx)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		db:       db,
		calls:    callSvc,
		cands:    candRepo,
		notes:    noteRepo,
		sched:    sched,
		dialer:   dial,
		resolver: timeexpr.NewResolver(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	// Stop the background loops before draining HTTP so no dispatch fires
	// after the handlers stop accepting reports.
	sched.Stop()
	reaper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
