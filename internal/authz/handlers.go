package authz

import (
	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/model"
)

// RegisterDefaultHandlers installs the production permission handlers.
// Called once during startup; tests install their own doubles instead.
func RegisterDefaultHandlers(r *Registry) {
	r.Register(KindCourse, &courseHandler{})
	r.Register(KindAssignment, &assignmentHandler{})
	r.Register(KindSubmissionGroup, &groupHandler{})
}

// courseHandler guards the course entity itself. Reading requires any
// membership; writing requires lecturer; deleting is owner-only no matter
// what role the checker was asked for.
type courseHandler struct{}

func (h *courseHandler) CheckRead(p *model.Principal, e Entity) error {
	course := e.(CourseEntity).Course
	if !p.HasCourseRole(course.ID, model.CourseRoleStudent) {
		return apperr.Forbidden("not a member of this course",
			"course_id", course.ID.String(),
			"code", "NOT_COURSE_MEMBER",
		)
	}
	return nil
}

func (h *courseHandler) CheckWrite(p *model.Principal, e Entity) error {
	course := e.(CourseEntity).Course
	if !p.HasCourseRole(course.ID, model.CourseRoleLecturer) {
		return forbiddenRole(course.ID.String(), model.CourseRoleLecturer)
	}
	return nil
}

func (h *courseHandler) CheckDelete(p *model.Principal, e Entity) error {
	course := e.(CourseEntity).Course
	if !p.HasCourseRole(course.ID, model.CourseRoleOwner) {
		return forbiddenRole(course.ID.String(), model.CourseRoleOwner)
	}
	return nil
}

// assignmentHandler guards assignments. Students cannot see an assignment
// before its release date; staff always can.
type assignmentHandler struct{}

func (h *assignmentHandler) CheckRead(p *model.Principal, e Entity) error {
	a := e.(AssignmentEntity).Assignment
	if p.HasCourseRole(a.CourseID, model.CourseRoleTutor) {
		return nil
	}
	if !p.HasCourseRole(a.CourseID, model.CourseRoleStudent) {
		return apperr.Forbidden("not a member of this course",
			"course_id", a.CourseID.String(),
			"code", "NOT_COURSE_MEMBER",
		)
	}
	if a.ReleasedAt == nil {
		return apperr.Forbidden("assignment is not released",
			"assignment_id", a.ID.String(),
		)
	}
	return nil
}

func (h *assignmentHandler) CheckWrite(p *model.Principal, e Entity) error {
	a := e.(AssignmentEntity).Assignment
	if !p.HasCourseRole(a.CourseID, model.CourseRoleLecturer) {
		return forbiddenRole(a.CourseID.String(), model.CourseRoleLecturer)
	}
	return nil
}

func (h *assignmentHandler) CheckDelete(p *model.Principal, e Entity) error {
	a := e.(AssignmentEntity).Assignment
	if !p.HasCourseRole(a.CourseID, model.CourseRoleLecturer) {
		return forbiddenRole(a.CourseID.String(), model.CourseRoleLecturer)
	}
	return nil
}

// groupHandler guards submission groups. Members read their own group;
// staff from tutor up read any. Writes are member-or-tutor; deletion is
// staff-only (a member "deleting" a group happens implicitly by being the
// last one to leave).
type groupHandler struct{}

func (h *groupHandler) CheckRead(p *model.Principal, e Entity) error {
	g := e.(GroupEntity).Group
	if p.HasCourseRole(g.CourseID, model.CourseRoleTutor) || p.InGroup(g.ID) {
		return nil
	}
	return apperr.Forbidden("not a member of this group",
		"group_id", g.ID.String(),
	)
}

func (h *groupHandler) CheckWrite(p *model.Principal, e Entity) error {
	g := e.(GroupEntity).Group
	if p.HasCourseRole(g.CourseID, model.CourseRoleTutor) || p.InGroup(g.ID) {
		return nil
	}
	return apperr.Forbidden("not a member of this group",
		"group_id", g.ID.String(),
	)
}

func (h *groupHandler) CheckDelete(p *model.Principal, e Entity) error {
	g := e.(GroupEntity).Group
	if !p.HasCourseRole(g.CourseID, model.CourseRoleLecturer) {
		return forbiddenRole(g.CourseID.String(), model.CourseRoleLecturer)
	}
	return nil
}

func forbiddenRole(courseID string, required model.CourseRole) error {
	return apperr.Forbidden("course role not sufficient",
		"course_id", courseID,
		"required_role", string(required),
		"code", "INSUFFICIENT_COURSE_ROLE",
	)
}
