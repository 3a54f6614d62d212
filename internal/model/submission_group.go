package model

import (
	"time"

	"github.com/google/uuid"
)

// GroupState represents a submission group's lifecycle state.
// forming is the only state that accepts membership mutation.
type GroupState string

const (
	GroupStateForming  GroupState = "forming"
	GroupStateLocked   GroupState = "locked"
	GroupStateArchived GroupState = "archived"
)

// SubmissionGroup is the unit of work for one assignment: a team, or a
// single-member group for individual assignments. The join code is only
// meaningful (and only unique per assignment) while the group is forming.
type SubmissionGroup struct {
	ID           uuid.UUID  `json:"id"`
	CourseID     uuid.UUID  `json:"course_id"`
	AssignmentID uuid.UUID  `json:"assignment_id"`
	State        GroupState `json:"state"`
	JoinCode     *string    `json:"join_code,omitempty"`
	CreatedBy    int        `json:"created_by"`
	MemberCount  int        `json:"member_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SubmissionGroupMember links a student to a group. A student holds at
// most one membership per assignment at any time.
type SubmissionGroupMember struct {
	GroupID   uuid.UUID `json:"group_id"`
	StudentID int       `json:"student_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// GroupWithMembers pairs a group with its member ids, ordered by join time.
type GroupWithMembers struct {
	SubmissionGroup
	MemberIDs []int `json:"member_ids"`
}

// TeamMove places one student into a recipient group during
// auto-assignment, whether they come from a dissolved group or had no
// group at all.
type TeamMove struct {
	StudentID int       `json:"student_id"`
	ToGroupID uuid.UUID `json:"to_group_id"`
}

// TeamLockPlan is the deterministic output of the auto-assignment planner:
// the membership moves to apply, the fresh groups to open for students
// nothing could absorb, and the emptied donor groups to delete, all
// applied atomically before any group transitions to locked.
type TeamLockPlan struct {
	Moves        []TeamMove  `json:"moves"`
	NewGroups    [][]int     `json:"new_groups"`
	DeleteGroups []uuid.UUID `json:"delete_groups"`
}

// JoinTeamRequest is the payload for joining a forming team.
type JoinTeamRequest struct {
	JoinCode string `json:"join_code" binding:"required,len=6,alphanum"`
}

// CreatePredefinedTeamRequest is the payload for an instructor-created team.
type CreatePredefinedTeamRequest struct {
	MemberIDs []int `json:"member_ids" binding:"required,min=1,dive,min=1"`
}
