package service

import (
	"sort"

	"github.com/google/uuid"

	"github.com/gitclass/gitclass-backend/internal/model"
)

// PlanAutoAssign computes the placements needed to bring an assignment's
// groups into shape at lock time: students without a group are spread
// over the groups with the fewest members, groups below the minimum size
// are dissolved and their members redistributed, and brand new groups are
// created once every existing one is full. The function is pure and fully
// deterministic: ties are broken by group creation order and ascending
// student id, so the same snapshot always yields the same plan.
func PlanAutoAssign(groups []model.GroupWithMembers, unassigned []int, rules model.TeamFormationRules) model.TeamLockPlan {
	var plan model.TeamLockPlan

	// Working pool of placement targets, preserving snapshot order.
	type target struct {
		id      uuid.UUID // zero for a group created by this plan
		members []int
	}
	var targets []target

	pool := append([]int(nil), unassigned...)

	for _, g := range groups {
		if len(g.MemberIDs) < rules.MinGroupSize {
			// Undersized groups are dissolved; their members rejoin the
			// pool and the emptied group row is removed.
			pool = append(pool, g.MemberIDs...)
			plan.DeleteGroups = append(plan.DeleteGroups, g.ID)
			continue
		}
		targets = append(targets, target{id: g.ID, members: append([]int(nil), g.MemberIDs...)})
	}
	sort.Ints(pool)

	// smallestOpen returns the index of the fillable target with the
	// fewest members, or -1 when everything is at capacity.
	smallestOpen := func() int {
		best := -1
		for i := range targets {
			if len(targets[i].members) >= rules.MaxGroupSize {
				continue
			}
			if best == -1 || len(targets[i].members) < len(targets[best].members) {
				best = i
			}
		}
		return best
	}

	for _, sid := range pool {
		i := smallestOpen()
		if i == -1 {
			targets = append(targets, target{})
			i = len(targets) - 1
		}
		targets[i].members = append(targets[i].members, sid)
		if targets[i].id != uuid.Nil {
			plan.Moves = append(plan.Moves, model.TeamMove{
				StudentID: sid,
				ToGroupID: targets[i].id,
			})
		}
	}

	for _, t := range targets {
		if t.id == uuid.Nil {
			plan.NewGroups = append(plan.NewGroups, t.members)
		}
	}
	return plan
}
