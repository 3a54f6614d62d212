package model

// CourseRole represents a user's role within a single course.
type CourseRole string

const (
	CourseRoleOwner      CourseRole = "owner"
	CourseRoleMaintainer CourseRole = "maintainer"
	CourseRoleLecturer   CourseRole = "lecturer"
	CourseRoleTutor      CourseRole = "tutor"
	CourseRoleStudent    CourseRole = "student"
)

// courseRoleLevels is the fixed total order over course roles.
// Higher level means more authority.
var courseRoleLevels = map[CourseRole]int{
	CourseRoleOwner:      5,
	CourseRoleMaintainer: 4,
	CourseRoleLecturer:   3,
	CourseRoleTutor:      2,
	CourseRoleStudent:    1,
}

// AllCourseRoles lists every valid course role, strongest first.
var AllCourseRoles = []CourseRole{
	CourseRoleOwner,
	CourseRoleMaintainer,
	CourseRoleLecturer,
	CourseRoleTutor,
	CourseRoleStudent,
}

// Level returns the role's position in the hierarchy. Unknown roles map to
// 0, the weakest possible level, so a corrupted role value can never grant
// access.
func (r CourseRole) Level() int {
	return courseRoleLevels[r]
}

// Valid reports whether r is one of the known course roles.
func (r CourseRole) Valid() bool {
	_, ok := courseRoleLevels[r]
	return ok
}

// IsSufficient reports whether a user holding r satisfies a requirement of
// required. The comparison is by level, so any role satisfying "tutor" also
// satisfies "student".
func (r CourseRole) IsSufficient(required CourseRole) bool {
	return r.Level() >= required.Level()
}
