package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClaimsFromMemberships(t *testing.T) {
	courseA := uuid.New()
	courseB := uuid.New()
	orgID := uuid.New()
	groupID := uuid.New()

	user := &User{
		ID:          42,
		Username:    "rika",
		IsAdmin:     false,
		SystemRoles: []string{"reporter"},
	}

	claims := ClaimsFromMemberships(user,
		[]CourseMembership{
			{CourseID: courseA, UserID: 42, Role: CourseRoleStudent},
			{CourseID: courseB, UserID: 42, Role: CourseRoleTutor},
		},
		[]OrgMembership{{OrgID: orgID, UserID: 42, Role: "member"}},
		[]uuid.UUID{groupID},
	)

	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "rika", claims.Username)
	assert.False(t, claims.IsAdmin)
	assert.Equal(t, []string{"reporter"}, claims.SystemRoles)
	assert.Equal(t, []uuid.UUID{groupID}, claims.GroupIDs)
	assert.Equal(t, "member", claims.OrgRoles[orgID])

	role, ok := claims.CourseRole(courseA)
	assert.True(t, ok)
	assert.Equal(t, CourseRoleStudent, role)

	role, ok = claims.CourseRole(courseB)
	assert.True(t, ok)
	assert.Equal(t, CourseRoleTutor, role)

	_, ok = claims.CourseRole(uuid.New())
	assert.False(t, ok)
}

func TestClaimsFromMembershipsHighestRoleWins(t *testing.T) {
	courseID := uuid.New()
	user := &User{ID: 7, Username: "dup"}

	// Duplicate rows for the same course must resolve to the strongest
	// role regardless of their order.
	orders := [][]CourseMembership{
		{
			{CourseID: courseID, UserID: 7, Role: CourseRoleStudent},
			{CourseID: courseID, UserID: 7, Role: CourseRoleLecturer},
		},
		{
			{CourseID: courseID, UserID: 7, Role: CourseRoleLecturer},
			{CourseID: courseID, UserID: 7, Role: CourseRoleStudent},
		},
	}

	for _, memberships := range orders {
		claims := ClaimsFromMemberships(user, memberships, nil, nil)
		role, ok := claims.CourseRole(courseID)
		assert.True(t, ok)
		assert.Equal(t, CourseRoleLecturer, role)
	}
}
