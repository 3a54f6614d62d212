// Package provisioning requests Git repository creation for finalized
// submission groups. The durable path runs a Temporal workflow; a
// log-only trigger stands in when no Temporal cluster is configured.
package provisioning

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request describes one repository to provision. Every finalized group
// gets exactly one, whether it is a team or an individual workspace.
type Request struct {
	GroupID      uuid.UUID `json:"group_id"`
	CourseID     uuid.UUID `json:"course_id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	MemberIDs    []int     `json:"member_ids"`
	IsTeam       bool      `json:"is_team"`
}

// Trigger fires repository provisioning for a finalized group. Implementations
// must be idempotent per group: firing twice for the same group id starts at
// most one provisioning run. The returned reference identifies the run.
type Trigger interface {
	RequestRepositoryProvisioning(ctx context.Context, req Request) (string, error)
}

// LogTrigger records provisioning requests without executing them. Used
// in development and tests where no Temporal cluster is available.
type LogTrigger struct {
	log zerolog.Logger
}

// NewLogTrigger creates a new LogTrigger.
func NewLogTrigger(log zerolog.Logger) *LogTrigger {
	return &LogTrigger{log: log.With().Str("component", "provisioning").Logger()}
}

// RequestRepositoryProvisioning logs the request and returns a synthetic
// run reference.
func (t *LogTrigger) RequestRepositoryProvisioning(_ context.Context, req Request) (string, error) {
	t.log.Info().
		Str("group_id", req.GroupID.String()).
		Str("assignment_id", req.AssignmentID.String()).
		Ints("member_ids", req.MemberIDs).
		Bool("is_team", req.IsTeam).
		Msg("Repository provisioning requested (log only)")
	return "log-" + req.GroupID.String(), nil
}
