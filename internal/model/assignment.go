package model

import (
	"time"

	"github.com/google/uuid"
)

// Assignment represents one unit of assessed work in a course. Whether it
// is individual or team-based is decided by the resolved team formation
// rules, not by a flag on the assignment itself.
type Assignment struct {
	ID          uuid.UUID  `json:"id"`
	CourseID    uuid.UUID  `json:"course_id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	// TeamConfig is the assignment-level partial overlay; it takes
	// precedence over the course-level config field by field.
	TeamConfig *TeamFormationConfig `json:"team_config,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// CreateAssignmentRequest is the payload for creating an assignment.
type CreateAssignmentRequest struct {
	Slug        string               `json:"slug" binding:"required,min=2,max=100"`
	Title       string               `json:"title" binding:"required,min=2,max=200"`
	Description string               `json:"description" binding:"max=5000"`
	ReleasedAt  *time.Time           `json:"released_at,omitempty"`
	DueAt       *time.Time           `json:"due_at,omitempty"`
	TeamConfig  *TeamFormationConfig `json:"team_config,omitempty"`
}

// UpdateAssignmentRequest is the payload for updating an assignment.
type UpdateAssignmentRequest struct {
	Title       string               `json:"title" binding:"required,min=2,max=200"`
	Description string               `json:"description" binding:"max=5000"`
	ReleasedAt  *time.Time           `json:"released_at,omitempty"`
	DueAt       *time.Time           `json:"due_at,omitempty"`
	TeamConfig  *TeamFormationConfig `json:"team_config,omitempty"`
}
