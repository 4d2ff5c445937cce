package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/database"
	"github.com/stemsi/vigil-backend/internal/handler"
	"github.com/stemsi/vigil-backend/internal/logger"
	"github.com/stemsi/vigil-backend/internal/repository"
	"github.com/stemsi/vigil-backend/internal/router"
	"github.com/stemsi/vigil-backend/internal/service"
	"github.com/stemsi/vigil-backend/internal/validator"
	"github.com/stemsi/vigil-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Vigil Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	eventBus := service.NewRedisEventBus(rdb, log)
	conflictService := service.NewConflictService(examRepo, assignmentRepo, attendanceRepo, log)
	examService := service.NewExamService(examRepo, assignmentRepo, attendanceRepo, conflictService, eventBus, rdb, log)
	assignmentService := service.NewAssignmentService(assignmentRepo, attendanceRepo, conflictService, log)
	attendanceService := service.NewAttendanceService(attendanceRepo, assignmentRepo, examRepo, profileRepo, eventBus, cfg.BreakAlertAfter, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:       handler.NewExamHandler(examService),
		Assignment: handler.NewAssignmentHandler(assignmentService),
		Attendance: handler.NewAttendanceHandler(attendanceService),
		Monitor:    handler.NewMonitorHandler(rdb, examService, assignmentService, attendanceService, log),
		WS:         handler.NewWSHandler(examService, attendanceService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	sweepWorker := worker.NewSweepWorker(attendanceService, cfg.SweepInterval, log)
	breakAlertWorker := worker.NewBreakAlertWorker(attendanceService, log)
	eventWorker := worker.NewEventWorker(pool, rdb, log)

	go sweepWorker.Start(workerCtx)
	go breakAlertWorker.Start(workerCtx)
	go eventWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every pending/active exam window into Redis BEFORE accepting
	// traffic, so countdown streams never stampede PostgreSQL at boot.
	if err := examService.PrewarmWindowCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the event queue to drain.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
