package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// TemporalTrigger starts the repository provisioning workflow on a
// Temporal cluster. Idempotency comes from the deterministic workflow id
// plus the reject-duplicate reuse policy: a second trigger for the same
// group is answered with the already running execution instead of a new one.
type TemporalTrigger struct {
	client    client.Client
	taskQueue string
	log       zerolog.Logger
}

// NewTemporalTrigger creates a new TemporalTrigger.
func NewTemporalTrigger(c client.Client, taskQueue string, log zerolog.Logger) *TemporalTrigger {
	return &TemporalTrigger{
		client:    c,
		taskQueue: taskQueue,
		log:       log.With().Str("component", "provisioning").Logger(),
	}
}

// WorkflowID returns the deterministic workflow id for a group.
func WorkflowID(req Request) string {
	return "repo-provision-" + req.GroupID.String()
}

// RequestRepositoryProvisioning starts the workflow, treating a duplicate
// start as success.
func (t *TemporalTrigger) RequestRepositoryProvisioning(ctx context.Context, req Request) (string, error) {
	workflowID := WorkflowID(req)

	opts := client.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             t.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	run, err := t.client.ExecuteWorkflow(ctx, opts, ProvisionRepositoryWorkflow, req)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			t.log.Debug().
				Str("workflow_id", workflowID).
				Msg("Provisioning already started for group")
			return workflowID, nil
		}
		return "", fmt.Errorf("start provisioning workflow: %w", err)
	}

	t.log.Info().
		Str("workflow_id", run.GetID()).
		Str("run_id", run.GetRunID()).
		Str("group_id", req.GroupID.String()).
		Msg("Provisioning workflow started")
	return run.GetID(), nil
}
