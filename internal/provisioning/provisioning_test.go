package provisioning

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowIDDeterministic(t *testing.T) {
	groupID := uuid.New()
	a := Request{GroupID: groupID, MemberIDs: []int{1, 2}}
	b := Request{GroupID: groupID, MemberIDs: []int{3}}

	// Only the group identity goes into the id; retries with a different
	// member snapshot still deduplicate against the first request.
	assert.Equal(t, WorkflowID(a), WorkflowID(b))
	assert.Equal(t, "repo-provision-"+groupID.String(), WorkflowID(a))

	other := Request{GroupID: uuid.New()}
	assert.NotEqual(t, WorkflowID(a), WorkflowID(other))
}

func TestLogTrigger(t *testing.T) {
	trigger := NewLogTrigger(zerolog.Nop())
	groupID := uuid.New()

	ref, err := trigger.RequestRepositoryProvisioning(context.Background(), Request{
		GroupID:   groupID,
		MemberIDs: []int{1},
	})
	require.NoError(t, err)
	assert.Equal(t, "log-"+groupID.String(), ref)
}

func TestLogRepositoryCreator(t *testing.T) {
	creator := NewLogRepositoryCreator(zerolog.Nop())
	req := Request{GroupID: uuid.New(), CourseID: uuid.New(), AssignmentID: uuid.New()}

	url, err := creator.CreateRepository(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, url, req.GroupID.String())

	assert.NoError(t, creator.GrantAccess(context.Background(), url, []int{1, 2}))
}
