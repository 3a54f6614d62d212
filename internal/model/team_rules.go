package model

import (
	"fmt"
	"time"
)

// TeamFormationMode controls who forms teams for an assignment.
type TeamFormationMode string

const (
	// TeamModeSelfOrganized lets students create and join teams themselves.
	TeamModeSelfOrganized TeamFormationMode = "self_organized"
	// TeamModeInstructorPredefined means staff create every team.
	TeamModeInstructorPredefined TeamFormationMode = "instructor_predefined"
	// TeamModeHybrid allows both.
	TeamModeHybrid TeamFormationMode = "hybrid"
)

// TeamFormationRules is the fully resolved configuration governing team
// operations for one assignment. Produced by merging the baseline defaults
// with the course-level and assignment-level partial configs.
type TeamFormationRules struct {
	Mode                TeamFormationMode `json:"mode"`
	MaxGroupSize        int               `json:"max_group_size"`
	MinGroupSize        int               `json:"min_group_size"`
	FormationDeadline   *time.Time        `json:"formation_deadline,omitempty"`
	AllowStudentCreate  bool              `json:"allow_student_create"`
	AllowStudentJoin    bool              `json:"allow_student_join"`
	AllowStudentLeave   bool              `json:"allow_student_leave"`
	AutoAssignUnmatched bool              `json:"auto_assign_unmatched"`
	LockAtDeadline      bool              `json:"lock_at_deadline"`
	RequireApproval     bool              `json:"require_approval"`
}

// TeamFormationConfig is a partial overlay stored on a course or an
// assignment. Only present, non-null fields overwrite during resolution,
// so an assignment can override a single knob while inheriting the rest.
type TeamFormationConfig struct {
	Mode                         *TeamFormationMode `json:"mode,omitempty"`
	MaxGroupSize                 *int               `json:"max_group_size,omitempty" binding:"omitempty,min=1"`
	MinGroupSize                 *int               `json:"min_group_size,omitempty" binding:"omitempty,min=1"`
	FormationDeadline            *time.Time         `json:"formation_deadline,omitempty"`
	FormationDeadlineOffsetHours *int               `json:"formation_deadline_offset_hours,omitempty" binding:"omitempty,min=1"`
	AllowStudentCreate           *bool              `json:"allow_student_create,omitempty"`
	AllowStudentJoin             *bool              `json:"allow_student_join,omitempty"`
	AllowStudentLeave            *bool              `json:"allow_student_leave,omitempty"`
	AutoAssignUnmatched          *bool              `json:"auto_assign_unmatched,omitempty"`
	LockAtDeadline               *bool              `json:"lock_at_deadline,omitempty"`
	RequireApproval              *bool              `json:"require_approval,omitempty"`
}

// DefaultTeamFormationRules returns the hard-coded baseline every
// resolution starts from: individual assignments with student operations
// enabled but no auto-assignment or approval.
func DefaultTeamFormationRules() TeamFormationRules {
	return TeamFormationRules{
		Mode:                TeamModeSelfOrganized,
		MaxGroupSize:        1,
		MinGroupSize:        1,
		AllowStudentCreate:  true,
		AllowStudentJoin:    true,
		AllowStudentLeave:   true,
		AutoAssignUnmatched: false,
		LockAtDeadline:      true,
		RequireApproval:     false,
	}
}

// mergedDeadline tracks the two deadline fields separately during
// resolution; the absolute deadline wins over the offset only after all
// overlays are applied, so an assignment offset can still override a
// course offset.
type mergedDeadline struct {
	Absolute    *time.Time
	OffsetHours *int
}

// apply overlays a partial config field by field. Nil fields leave the
// current value untouched.
func (r *TeamFormationRules) apply(cfg *TeamFormationConfig, dl *mergedDeadline) {
	if cfg == nil {
		return
	}
	if cfg.Mode != nil {
		r.Mode = *cfg.Mode
	}
	if cfg.MaxGroupSize != nil {
		r.MaxGroupSize = *cfg.MaxGroupSize
	}
	if cfg.MinGroupSize != nil {
		r.MinGroupSize = *cfg.MinGroupSize
	}
	if cfg.FormationDeadline != nil {
		dl.Absolute = cfg.FormationDeadline
	}
	if cfg.FormationDeadlineOffsetHours != nil {
		dl.OffsetHours = cfg.FormationDeadlineOffsetHours
	}
	if cfg.AllowStudentCreate != nil {
		r.AllowStudentCreate = *cfg.AllowStudentCreate
	}
	if cfg.AllowStudentJoin != nil {
		r.AllowStudentJoin = *cfg.AllowStudentJoin
	}
	if cfg.AllowStudentLeave != nil {
		r.AllowStudentLeave = *cfg.AllowStudentLeave
	}
	if cfg.AutoAssignUnmatched != nil {
		r.AutoAssignUnmatched = *cfg.AutoAssignUnmatched
	}
	if cfg.LockAtDeadline != nil {
		r.LockAtDeadline = *cfg.LockAtDeadline
	}
	if cfg.RequireApproval != nil {
		r.RequireApproval = *cfg.RequireApproval
	}
}

// ResolveTeamFormationRules merges the baseline defaults with the course
// and assignment partial configs, in that order, and resolves the
// effective deadline. releasedAt anchors a relative offset; an absolute
// deadline always wins over an offset.
func ResolveTeamFormationRules(course *TeamFormationConfig, assignment *TeamFormationConfig, releasedAt *time.Time) (TeamFormationRules, error) {
	rules := DefaultTeamFormationRules()
	var dl mergedDeadline

	rules.apply(course, &dl)
	rules.apply(assignment, &dl)

	switch {
	case dl.Absolute != nil:
		rules.FormationDeadline = dl.Absolute
	case dl.OffsetHours != nil && releasedAt != nil:
		t := releasedAt.Add(time.Duration(*dl.OffsetHours) * time.Hour)
		rules.FormationDeadline = &t
	}

	if err := rules.Validate(); err != nil {
		return TeamFormationRules{}, err
	}
	return rules, nil
}

// Validate checks the resolved rule set for internal consistency.
func (r TeamFormationRules) Validate() error {
	if r.MaxGroupSize < 1 {
		return fmt.Errorf("max_group_size must be >= 1, got %d", r.MaxGroupSize)
	}
	if r.MinGroupSize < 1 {
		return fmt.Errorf("min_group_size must be >= 1, got %d", r.MinGroupSize)
	}
	if r.MinGroupSize > r.MaxGroupSize {
		return fmt.Errorf("min_group_size %d exceeds max_group_size %d", r.MinGroupSize, r.MaxGroupSize)
	}
	return nil
}

// TeamsEnabled reports whether team operations apply at all. With a max
// group size of 1 the assignment is individual-only and every team
// operation is categorically disabled, regardless of the other flags.
func (r TeamFormationRules) TeamsEnabled() bool {
	return r.MaxGroupSize > 1
}

// DeadlinePassed reports whether the formation deadline, if any, is behind
// the given instant.
func (r TeamFormationRules) DeadlinePassed(now time.Time) bool {
	return r.FormationDeadline != nil && now.After(*r.FormationDeadline)
}
