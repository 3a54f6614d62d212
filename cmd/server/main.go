package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"

	"github.com/gitclass/gitclass-backend/internal/authz"
	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/database"
	"github.com/gitclass/gitclass-backend/internal/handler"
	"github.com/gitclass/gitclass-backend/internal/logger"
	"github.com/gitclass/gitclass-backend/internal/provisioning"
	"github.com/gitclass/gitclass-backend/internal/repository"
	"github.com/gitclass/gitclass-backend/internal/router"
	"github.com/gitclass/gitclass-backend/internal/service"
	"github.com/gitclass/gitclass-backend/internal/validator"
	"github.com/gitclass/gitclass-backend/internal/worker"
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
		Msg("Starting GitClass Backend")

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
	userRepo := repository.NewUserRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)

	// ─── Initialize Authorization ──────────────────────────────────────
	registry := authz.NewRegistry()
	authz.RegisterDefaultHandlers(registry)
	checker := authz.NewChecker(registry)

	// ─── Initialize Provisioning Trigger ───────────────────────────────
	var trigger provisioning.Trigger
	if cfg.TemporalHostPort != "" {
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Temporal")
		}
		defer temporalClient.Close()
		trigger = provisioning.NewTemporalTrigger(temporalClient, cfg.TemporalTaskQueue, log)
		log.Info().Str("host_port", cfg.TemporalHostPort).Msg("Temporal provisioning enabled")
	} else {
		trigger = provisioning.NewLogTrigger(log)
		log.Warn().Msg("TEMPORAL_HOST_PORT unset, provisioning requests are log-only")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo, membershipRepo, groupRepo)
	ruleResolver := service.NewRuleResolver(cfg, rdb, courseRepo, assignmentRepo)
	joinCodes := service.NewJoinCodeGenerator(groupRepo)
	courseService := service.NewCourseService(courseRepo, membershipRepo, userRepo, checker, ruleResolver, authService, log)
	assignmentService := service.NewAssignmentService(assignmentRepo, courseRepo, checker, ruleResolver, log)
	groupService := service.NewGroupService(groupRepo, assignmentRepo, membershipRepo, ruleResolver, joinCodes, checker, trigger, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Course:     handler.NewCourseHandler(courseService),
		Assignment: handler.NewAssignmentHandler(assignmentService),
		Team:       handler.NewTeamHandler(groupService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	deadlineWorker := worker.NewDeadlineWorker(
		assignmentRepo, ruleResolver, groupService, rdb, cfg.DeadlineWorkerInterval, log)
	go deadlineWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 2. Stop background workers.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
