package main

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/logger"
	"github.com/gitclass/gitclass-backend/internal/provisioning"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if cfg.TemporalHostPort == "" {
		log.Fatal().Msg("TEMPORAL_HOST_PORT is required for the provisioning worker")
	}

	// ─── Connect to Temporal ───────────────────────────────────────────
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHostPort,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Temporal")
	}
	defer c.Close()

	log.Info().
		Str("host_port", cfg.TemporalHostPort).
		Str("task_queue", cfg.TemporalTaskQueue).
		Msg("Provisioning worker connected")

	// ─── Register Workflow and Activities ──────────────────────────────
	activities := &provisioning.Activities{
		Creator: provisioning.NewLogRepositoryCreator(log),
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(provisioning.ProvisionRepositoryWorkflow)
	w.RegisterActivity(activities.CreateRepository)
	w.RegisterActivity(activities.GrantMemberAccess)

	// ─── Run Worker ────────────────────────────────────────────────────
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("Worker exited with error")
	}
}
