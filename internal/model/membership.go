package model

import (
	"time"

	"github.com/google/uuid"
)

// CourseMembership assigns a course role to a user.
type CourseMembership struct {
	UserID    int        `json:"user_id"`
	CourseID  uuid.UUID  `json:"course_id"`
	Role      CourseRole `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// CourseMemberDetail joins a membership with the member's identity for
// staff-facing listings.
type CourseMemberDetail struct {
	UserID   int        `json:"user_id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Role     CourseRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

// OrgMembership assigns an organization-level role to a user.
type OrgMembership struct {
	UserID    int       `json:"user_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SetMemberRequest is the payload for assigning or changing a member's role.
type SetMemberRequest struct {
	Role CourseRole `json:"role" binding:"required,oneof=owner maintainer lecturer tutor student"`
}
