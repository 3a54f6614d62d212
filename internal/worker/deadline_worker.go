package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/repository"
	"github.com/gitclass/gitclass-backend/internal/service"
)

// leaseTTL covers one locking pass with headroom. A crashed worker's
// lease expires on its own and another instance picks the assignment up.
const leaseTTL = 2 * time.Minute

// DeadlineWorker sweeps assignments whose team formation deadline has
// passed and locks their forming groups. A Redis lease per assignment
// keeps multiple server instances from locking the same assignment at
// once; locking itself is idempotent, so a lost lease only costs a
// redundant no-op pass.
type DeadlineWorker struct {
	assignments *repository.AssignmentRepository
	rules       *service.RuleResolver
	groups      *service.GroupService
	rdb         *redis.Client
	interval    time.Duration
	log         zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	assignments *repository.AssignmentRepository,
	rules *service.RuleResolver,
	groups *service.GroupService,
	rdb *redis.Client,
	interval time.Duration,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		assignments: assignments,
		rules:       rules,
		groups:      groups,
		rdb:         rdb,
		interval:    interval,
		log:         log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the periodic sweep. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	candidates, err := w.assignments.ListLockCandidates(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("List lock candidates")
		return
	}

	now := time.Now()
	for _, assignment := range candidates {
		if err := w.lockIfDue(ctx, &assignment, now); err != nil {
			w.log.Error().Err(err).
				Str("assignment_id", assignment.ID.String()).
				Msg("Deadline lock failed")
		}
	}
}

func (w *DeadlineWorker) lockIfDue(ctx context.Context, assignment *model.Assignment, now time.Time) error {
	rules, err := w.rules.Resolve(ctx, assignment)
	if err != nil {
		return err
	}
	if !rules.TeamsEnabled() || !rules.LockAtDeadline || !rules.DeadlinePassed(now) {
		return nil
	}

	leaseKey := config.WorkerKey.AssignmentLockLease(assignment.ID.String())
	acquired, err := w.rdb.SetNX(ctx, leaseKey, "1", leaseTTL).Result()
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer w.rdb.Del(ctx, leaseKey)

	w.log.Info().
		Str("assignment_id", assignment.ID.String()).
		Time("deadline", *rules.FormationDeadline).
		Msg("Formation deadline passed, locking teams")
	return w.groups.LockTeams(ctx, model.SystemPrincipal(), assignment.CourseID, assignment.ID)
}
