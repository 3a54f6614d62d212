package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Result is the workflow output: where the provisioned repository lives.
type Result struct {
	RepositoryURL string `json:"repository_url"`
}

// ProvisionRepositoryWorkflow creates the repository and then grants
// every member access. Both steps retry independently, so a flaky Git
// host does not lose the provisioning request.
func ProvisionRepositoryWorkflow(ctx workflow.Context, req Request) (Result, error) {
	retryPolicy := &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    20,
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         retryPolicy,
	})

	var repoURL string
	if err := workflow.ExecuteActivity(ctx, "CreateRepository", req).Get(ctx, &repoURL); err != nil {
		return Result{}, err
	}

	if err := workflow.ExecuteActivity(ctx, "GrantMemberAccess", req, repoURL).Get(ctx, nil); err != nil {
		return Result{}, err
	}

	return Result{RepositoryURL: repoURL}, nil
}

// RepositoryCreator talks to the Git hosting backend.
type RepositoryCreator interface {
	CreateRepository(ctx context.Context, req Request) (string, error)
	GrantAccess(ctx context.Context, repoURL string, memberIDs []int) error
}

// Activities hosts the workflow's activities with their dependencies.
type Activities struct {
	Creator RepositoryCreator
}

// CreateRepository creates the group's repository and returns its URL.
func (a *Activities) CreateRepository(ctx context.Context, req Request) (string, error) {
	return a.Creator.CreateRepository(ctx, req)
}

// GrantMemberAccess grants every group member access to the repository.
func (a *Activities) GrantMemberAccess(ctx context.Context, req Request, repoURL string) error {
	return a.Creator.GrantAccess(ctx, repoURL, req.MemberIDs)
}

// LogRepositoryCreator is a RepositoryCreator that only logs. It stands
// in until a real Git hosting integration is configured.
type LogRepositoryCreator struct {
	log zerolog.Logger
}

// NewLogRepositoryCreator creates a new LogRepositoryCreator.
func NewLogRepositoryCreator(log zerolog.Logger) *LogRepositoryCreator {
	return &LogRepositoryCreator{log: log.With().Str("component", "repo_creator").Logger()}
}

func (c *LogRepositoryCreator) CreateRepository(_ context.Context, req Request) (string, error) {
	url := fmt.Sprintf("git://repos/%s/%s/%s.git", req.CourseID, req.AssignmentID, req.GroupID)
	c.log.Info().Str("repo_url", url).Msg("Repository created (log only)")
	return url, nil
}

func (c *LogRepositoryCreator) GrantAccess(_ context.Context, repoURL string, memberIDs []int) error {
	c.log.Info().Str("repo_url", repoURL).Ints("member_ids", memberIDs).Msg("Access granted (log only)")
	return nil
}
