package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitclass/gitclass-backend/internal/model"
)

func groupOf(id uuid.UUID, members ...int) model.GroupWithMembers {
	return model.GroupWithMembers{
		SubmissionGroup: model.SubmissionGroup{ID: id},
		MemberIDs:       members,
	}
}

func rulesOf(min, max int) model.TeamFormationRules {
	return model.TeamFormationRules{MinGroupSize: min, MaxGroupSize: max}
}

func TestPlanAutoAssignFillsSmallestFirst(t *testing.T) {
	g1 := uuid.New()
	g2 := uuid.New()
	groups := []model.GroupWithMembers{
		groupOf(g1, 1, 2, 3),
		groupOf(g2, 4),
	}

	plan := PlanAutoAssign(groups, []int{10, 11}, rulesOf(1, 3))

	// Both unassigned students land in the group with one member.
	require.Len(t, plan.Moves, 2)
	assert.Equal(t, model.TeamMove{StudentID: 10, ToGroupID: g2}, plan.Moves[0])
	assert.Equal(t, model.TeamMove{StudentID: 11, ToGroupID: g2}, plan.Moves[1])
	assert.Empty(t, plan.NewGroups)
	assert.Empty(t, plan.DeleteGroups)
}

func TestPlanAutoAssignOpensNewGroupsWhenFull(t *testing.T) {
	g1 := uuid.New()
	groups := []model.GroupWithMembers{groupOf(g1, 1, 2)}

	plan := PlanAutoAssign(groups, []int{10, 11, 12}, rulesOf(1, 2))

	assert.Empty(t, plan.Moves, "existing group is at capacity")
	require.Len(t, plan.NewGroups, 2)
	assert.Equal(t, []int{10, 11}, plan.NewGroups[0])
	assert.Equal(t, []int{12}, plan.NewGroups[1])
	assert.Empty(t, plan.DeleteGroups)
}

func TestPlanAutoAssignDissolvesUndersized(t *testing.T) {
	small := uuid.New()
	healthy := uuid.New()
	groups := []model.GroupWithMembers{
		groupOf(small, 7),
		groupOf(healthy, 1, 2),
	}

	plan := PlanAutoAssign(groups, nil, rulesOf(2, 3))

	require.Equal(t, []uuid.UUID{small}, plan.DeleteGroups)
	require.Len(t, plan.Moves, 1)
	assert.Equal(t, model.TeamMove{StudentID: 7, ToGroupID: healthy}, plan.Moves[0])
	assert.Empty(t, plan.NewGroups)
}

func TestPlanAutoAssignDeterministic(t *testing.T) {
	g1 := uuid.New()
	g2 := uuid.New()
	groups := []model.GroupWithMembers{
		groupOf(g1, 1),
		groupOf(g2, 2),
	}

	// Unassigned order must not influence the plan.
	a := PlanAutoAssign(groups, []int{30, 10, 20}, rulesOf(1, 2))
	b := PlanAutoAssign(groups, []int{20, 30, 10}, rulesOf(1, 2))

	assert.Equal(t, a, b)
	require.Len(t, a.Moves, 2)
	assert.Equal(t, model.TeamMove{StudentID: 10, ToGroupID: g1}, a.Moves[0])
	assert.Equal(t, model.TeamMove{StudentID: 20, ToGroupID: g2}, a.Moves[1])
	require.Len(t, a.NewGroups, 1)
	assert.Equal(t, []int{30}, a.NewGroups[0])
}

func TestPlanAutoAssignEmptyInputs(t *testing.T) {
	plan := PlanAutoAssign(nil, nil, rulesOf(1, 3))
	assert.Empty(t, plan.Moves)
	assert.Empty(t, plan.NewGroups)
	assert.Empty(t, plan.DeleteGroups)
}
