package model

import (
	"github.com/google/uuid"
)

// Claims is an immutable snapshot of a user's authorization facts, built
// once per request from persisted membership data. It is never mutated
// after construction, so it is safe to share across goroutines.
type Claims struct {
	UserID      int                      `json:"user_id"`
	Username    string                   `json:"username"`
	IsAdmin     bool                     `json:"is_admin"`
	SystemRoles []string                 `json:"system_roles,omitempty"`
	GroupIDs    []uuid.UUID              `json:"group_ids,omitempty"`
	CourseRoles map[uuid.UUID]CourseRole `json:"course_roles,omitempty"`
	OrgRoles    map[uuid.UUID]string     `json:"org_roles,omitempty"`
}

// ClaimsFromMemberships builds a Claims snapshot from membership records.
// If a user somehow holds multiple roles in the same course, the highest
// level wins so the result is deterministic regardless of row order.
func ClaimsFromMemberships(
	user *User,
	courseMemberships []CourseMembership,
	orgMemberships []OrgMembership,
	groupIDs []uuid.UUID,
) *Claims {
	courseRoles := make(map[uuid.UUID]CourseRole, len(courseMemberships))
	for _, m := range courseMemberships {
		if existing, ok := courseRoles[m.CourseID]; ok && existing.Level() >= m.Role.Level() {
			continue
		}
		courseRoles[m.CourseID] = m.Role
	}

	orgRoles := make(map[uuid.UUID]string, len(orgMemberships))
	for _, m := range orgMemberships {
		orgRoles[m.OrgID] = m.Role
	}

	return &Claims{
		UserID:      user.ID,
		Username:    user.Username,
		IsAdmin:     user.IsAdmin,
		SystemRoles: user.SystemRoles,
		GroupIDs:    groupIDs,
		CourseRoles: courseRoles,
		OrgRoles:    orgRoles,
	}
}

// CourseRole returns the user's role in the given course and whether one
// exists.
func (c *Claims) CourseRole(courseID uuid.UUID) (CourseRole, bool) {
	role, ok := c.CourseRoles[courseID]
	return role, ok
}
