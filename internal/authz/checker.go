package authz

import (
	"github.com/google/uuid"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/model"
)

// Checker decides whether a principal may perform a course-scoped action.
// Given identical claims and inputs the result is always the same; there
// is no time- or random-dependent behavior in here.
type Checker struct {
	registry *Registry
}

// NewChecker creates a Checker over the given handler registry.
func NewChecker(registry *Registry) *Checker {
	return &Checker{registry: registry}
}

// CheckCoursePermission verifies, in order:
//
//  1. Admin bypass: admins pass unconditionally, before anything else.
//  2. Role sufficiency: the principal's role in the course must satisfy
//     requiredRole.
//  3. Entity handler: if the entity's kind has a registered handler, its
//     capability for the action must also allow.
//
// A Forbidden failure from either layer fails the whole check and carries
// the course id and required role for diagnostics. Callers must run this
// before any state mutation.
func (c *Checker) CheckCoursePermission(p *model.Principal, courseID uuid.UUID, action Action, requiredRole model.CourseRole, entity Entity) error {
	if p.IsAdmin() {
		return nil
	}

	if !p.HasCourseRole(courseID, requiredRole) {
		return apperr.Forbidden("course role not sufficient",
			"course_id", courseID.String(),
			"required_role", string(requiredRole),
			"code", "INSUFFICIENT_COURSE_ROLE",
		)
	}

	if entity == nil {
		return nil
	}

	handler, ok := c.registry.Lookup(entity.EntityKind())
	if !ok {
		return nil
	}

	switch action {
	case ActionRead:
		return handler.CheckRead(p, entity)
	case ActionWrite:
		return handler.CheckWrite(p, entity)
	case ActionDelete:
		return handler.CheckDelete(p, entity)
	default:
		return apperr.Internal("unknown permission action "+string(action), nil)
	}
}
