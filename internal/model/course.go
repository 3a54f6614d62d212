package model

import (
	"time"

	"github.com/google/uuid"
)

// Course represents a course offering.
type Course struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       *uuid.UUID `json:"org_id,omitempty"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	// TeamConfig is the course-level partial team formation configuration.
	// Assignments overlay their own partial config on top of it.
	TeamConfig *TeamFormationConfig `json:"team_config,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	OrgID       *uuid.UUID           `json:"org_id,omitempty"`
	Slug        string               `json:"slug" binding:"required,min=2,max=100"`
	Title       string               `json:"title" binding:"required,min=2,max=200"`
	Description string               `json:"description" binding:"max=2000"`
	TeamConfig  *TeamFormationConfig `json:"team_config,omitempty"`
}

// UpdateCourseRequest is the payload for updating a course.
type UpdateCourseRequest struct {
	Title       string               `json:"title" binding:"required,min=2,max=200"`
	Description string               `json:"description" binding:"max=2000"`
	TeamConfig  *TeamFormationConfig `json:"team_config,omitempty"`
}
