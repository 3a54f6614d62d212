package model

import "github.com/google/uuid"

// Principal is the authenticated identity used for all authorization
// decisions. It wraps a Claims snapshot, lives for a single request, and
// carries no write access to storage.
type Principal struct {
	claims *Claims
}

// NewPrincipal wraps a Claims snapshot.
func NewPrincipal(claims *Claims) *Principal {
	return &Principal{claims: claims}
}

// SystemPrincipal is the identity background jobs act as. It carries
// admin authority and belongs to no course.
func SystemPrincipal() *Principal {
	return NewPrincipal(&Claims{IsAdmin: true})
}

// UserID returns the authenticated user's id.
func (p *Principal) UserID() int {
	return p.claims.UserID
}

// Username returns the authenticated user's username.
func (p *Principal) Username() string {
	return p.claims.Username
}

// IsAdmin reports whether the user holds the system admin flag. Admins
// bypass every course-level check.
func (p *Principal) IsAdmin() bool {
	return p.claims.IsAdmin
}

// HasCourseRole reports whether the user's role in the course satisfies
// the required role per the course-role hierarchy.
func (p *Principal) HasCourseRole(courseID uuid.UUID, required CourseRole) bool {
	role, ok := p.claims.CourseRole(courseID)
	if !ok {
		return false
	}
	return role.IsSufficient(required)
}

// CourseRole exposes the raw role for diagnostics and listings.
func (p *Principal) CourseRole(courseID uuid.UUID) (CourseRole, bool) {
	return p.claims.CourseRole(courseID)
}

// CourseIDs returns every course the user belongs to, in no particular order.
func (p *Principal) CourseIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.claims.CourseRoles))
	for id := range p.claims.CourseRoles {
		ids = append(ids, id)
	}
	return ids
}

// InGroup reports whether the user is a member of the given submission group.
func (p *Principal) InGroup(groupID uuid.UUID) bool {
	for _, id := range p.claims.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}
