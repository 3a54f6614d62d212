package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/authz"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/provisioning"
)

// ─── In-memory doubles ─────────────────────────────────────────────────

// memGroupStore implements GroupStore with the same atomicity and error
// contract as the Postgres repository: one group per student per
// assignment, one active join code per assignment, state and capacity
// checked under the same lock as the insert.
type memGroupStore struct {
	mu      sync.Mutex
	order   []uuid.UUID
	groups  map[uuid.UUID]*model.SubmissionGroup
	members map[uuid.UUID][]int
}

func newMemGroupStore() *memGroupStore {
	return &memGroupStore{
		groups:  make(map[uuid.UUID]*model.SubmissionGroup),
		members: make(map[uuid.UUID][]int),
	}
}

func (s *memGroupStore) studentGroupLocked(assignmentID uuid.UUID, studentID int) (uuid.UUID, bool) {
	for _, id := range s.order {
		g, ok := s.groups[id]
		if !ok || g.AssignmentID != assignmentID {
			continue
		}
		for _, sid := range s.members[id] {
			if sid == studentID {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}

func (s *memGroupStore) snapshot(g *model.SubmissionGroup) *model.SubmissionGroup {
	out := *g
	out.MemberCount = len(s.members[g.ID])
	if g.JoinCode != nil {
		code := *g.JoinCode
		out.JoinCode = &code
	}
	return &out
}

func (s *memGroupStore) GetByID(ctx context.Context, id uuid.UUID) (*model.SubmissionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, apperr.NotFound("submission group not found")
	}
	return s.snapshot(g), nil
}

func (s *memGroupStore) GetByStudent(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.SubmissionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.studentGroupLocked(assignmentID, studentID)
	if !ok {
		return nil, apperr.NotFound("submission group not found")
	}
	return s.snapshot(s.groups[id]), nil
}

func (s *memGroupStore) ListAvailable(ctx context.Context, assignmentID uuid.UUID, maxSize int) ([]model.SubmissionGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SubmissionGroup
	for _, id := range s.order {
		g, ok := s.groups[id]
		if !ok || g.AssignmentID != assignmentID || g.State != model.GroupStateForming {
			continue
		}
		if len(s.members[id]) >= maxSize {
			continue
		}
		out = append(out, *s.snapshot(g))
	}
	return out, nil
}

func (s *memGroupStore) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.GroupWithMembers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listWithMembersLocked(assignmentID, ""), nil
}

func (s *memGroupStore) listWithMembersLocked(assignmentID uuid.UUID, state model.GroupState) []model.GroupWithMembers {
	var out []model.GroupWithMembers
	for _, id := range s.order {
		g, ok := s.groups[id]
		if !ok || g.AssignmentID != assignmentID {
			continue
		}
		if state != "" && g.State != state {
			continue
		}
		out = append(out, model.GroupWithMembers{
			SubmissionGroup: *s.snapshot(g),
			MemberIDs:       append([]int(nil), s.members[id]...),
		})
	}
	return out
}

func (s *memGroupStore) ListMembers(ctx context.Context, groupID uuid.UUID) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.members[groupID]...), nil
}

func (s *memGroupStore) ActiveJoinCodeExists(ctx context.Context, assignmentID uuid.UUID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCodeLocked(assignmentID, code), nil
}

func (s *memGroupStore) activeCodeLocked(assignmentID uuid.UUID, code string) bool {
	for _, g := range s.groups {
		if g.AssignmentID == assignmentID && g.State == model.GroupStateForming &&
			g.JoinCode != nil && strings.EqualFold(*g.JoinCode, code) {
			return true
		}
	}
	return false
}

func (s *memGroupStore) CreateWithMember(ctx context.Context, g *model.SubmissionGroup, studentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.studentGroupLocked(g.AssignmentID, studentID); ok {
		return apperr.Conflict("student already has a group for this assignment",
			"code", "ALREADY_IN_TEAM")
	}
	if g.JoinCode != nil && s.activeCodeLocked(g.AssignmentID, *g.JoinCode) {
		return apperr.Conflict("join code already in use by a forming group",
			"code", "JOIN_CODE_TAKEN")
	}
	s.insertLocked(g, []int{studentID})
	return nil
}

func (s *memGroupStore) CreateLockedWithMembers(ctx context.Context, g *model.SubmissionGroup, memberIDs []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sid := range memberIDs {
		if _, ok := s.studentGroupLocked(g.AssignmentID, sid); ok {
			return apperr.Conflict("student already has a group for this assignment",
				"code", "ALREADY_IN_TEAM")
		}
	}
	g.State = model.GroupStateLocked
	s.insertLocked(g, memberIDs)
	return nil
}

func (s *memGroupStore) insertLocked(g *model.SubmissionGroup, memberIDs []int) {
	g.ID = uuid.New()
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	stored := *g
	s.groups[g.ID] = &stored
	s.members[g.ID] = append([]int(nil), memberIDs...)
	s.order = append(s.order, g.ID)
}

func (s *memGroupStore) AddMember(ctx context.Context, groupID uuid.UUID, studentID int, expectCode *string, maxSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return apperr.NotFound("submission group not found")
	}
	if g.State != model.GroupStateForming {
		return apperr.Conflict("group no longer accepts members",
			"code", "TEAM_NOT_FORMING")
	}
	if expectCode != nil {
		if g.JoinCode == nil || !strings.EqualFold(*g.JoinCode, *expectCode) {
			return apperr.NotFound("join code does not match",
				"code", "JOIN_CODE_MISMATCH")
		}
	}
	if len(s.members[groupID]) >= maxSize {
		return apperr.Conflict("group is full", "code", "TEAM_FULL")
	}
	if _, ok := s.studentGroupLocked(g.AssignmentID, studentID); ok {
		return apperr.Conflict("student already has a group for this assignment",
			"code", "ALREADY_IN_TEAM")
	}
	s.members[groupID] = append(s.members[groupID], studentID)
	return nil
}

func (s *memGroupStore) RemoveMember(ctx context.Context, assignmentID uuid.UUID, studentID int) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groupID, ok := s.studentGroupLocked(assignmentID, studentID)
	if !ok {
		return uuid.Nil, false, apperr.NotFound("no group membership for this assignment",
			"code", "NO_TEAM_FORMED")
	}
	if s.groups[groupID].State != model.GroupStateForming {
		return uuid.Nil, false, apperr.Conflict("group no longer accepts changes",
			"code", "TEAM_NOT_FORMING")
	}
	members := s.members[groupID][:0]
	for _, sid := range s.members[groupID] {
		if sid != studentID {
			members = append(members, sid)
		}
	}
	s.members[groupID] = members
	if len(members) == 0 {
		s.deleteLocked(groupID)
		return groupID, true, nil
	}
	return groupID, false, nil
}

func (s *memGroupStore) deleteLocked(groupID uuid.UUID) {
	delete(s.groups, groupID)
	delete(s.members, groupID)
	for i, id := range s.order {
		if id == groupID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// LockGroups mirrors the repository contract: only the groups this call
// transitioned or created come back, never groups locked earlier.
func (s *memGroupStore) LockGroups(ctx context.Context, assignmentID uuid.UUID, plan func(groups []model.GroupWithMembers) (model.TeamLockPlan, error)) ([]model.GroupWithMembers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	forming := s.listWithMembersLocked(assignmentID, model.GroupStateForming)
	if len(forming) == 0 {
		return nil, nil
	}

	changed := make(map[uuid.UUID]bool, len(forming))
	for _, g := range forming {
		changed[g.ID] = true
	}
	template := s.groups[forming[0].ID]

	p, err := plan(forming)
	if err != nil {
		return nil, err
	}
	for _, mv := range p.Moves {
		s.placeLocked(mv.ToGroupID, assignmentID, mv.StudentID)
	}
	for _, members := range p.NewGroups {
		g := model.SubmissionGroup{
			CourseID:     template.CourseID,
			AssignmentID: assignmentID,
			State:        model.GroupStateForming,
			CreatedBy:    template.CreatedBy,
		}
		s.insertLocked(&g, nil)
		changed[g.ID] = true
		for _, sid := range members {
			s.placeLocked(g.ID, assignmentID, sid)
		}
	}
	for _, id := range p.DeleteGroups {
		s.deleteLocked(id)
		delete(changed, id)
	}
	for _, id := range s.order {
		g := s.groups[id]
		if g.AssignmentID == assignmentID && g.State == model.GroupStateForming {
			g.State = model.GroupStateLocked
			g.JoinCode = nil
		}
	}

	var out []model.GroupWithMembers
	for _, id := range s.order {
		if !changed[id] {
			continue
		}
		out = append(out, model.GroupWithMembers{
			SubmissionGroup: *s.snapshot(s.groups[id]),
			MemberIDs:       append([]int(nil), s.members[id]...),
		})
	}
	return out, nil
}

func (s *memGroupStore) placeLocked(groupID, assignmentID uuid.UUID, studentID int) {
	if prev, ok := s.studentGroupLocked(assignmentID, studentID); ok {
		members := s.members[prev][:0]
		for _, sid := range s.members[prev] {
			if sid != studentID {
				members = append(members, sid)
			}
		}
		s.members[prev] = members
	}
	s.members[groupID] = append(s.members[groupID], studentID)
}

type memAssignments struct {
	byID map[uuid.UUID]*model.Assignment
}

func (m *memAssignments) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("assignment not found")
	}
	return a, nil
}

type staticRules struct {
	rules model.TeamFormationRules
}

func (r *staticRules) Resolve(ctx context.Context, _ *model.Assignment) (*model.TeamFormationRules, error) {
	rules := r.rules
	return &rules, nil
}

type memRoster struct {
	members []model.CourseMemberDetail
}

func (m *memRoster) ListMembersByCourse(ctx context.Context, courseID uuid.UUID) ([]model.CourseMemberDetail, error) {
	return m.members, nil
}

func (m *memRoster) CountStudentsIn(ctx context.Context, courseID uuid.UUID, userIDs []int) (int, error) {
	students := make(map[int]bool)
	for _, d := range m.members {
		if d.Role == model.CourseRoleStudent {
			students[d.UserID] = true
		}
	}
	count := 0
	for _, id := range userIDs {
		if students[id] {
			count++
		}
	}
	return count, nil
}

// recordingTrigger captures every provisioning request, keyed by group.
type recordingTrigger struct {
	mu       sync.Mutex
	requests []provisioning.Request
}

func (t *recordingTrigger) RequestRepositoryProvisioning(ctx context.Context, req provisioning.Request) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	return "test-" + req.GroupID.String(), nil
}

func (t *recordingTrigger) countFor(groupID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, req := range t.requests {
		if req.GroupID == groupID {
			n++
		}
	}
	return n
}

// ─── Fixture ───────────────────────────────────────────────────────────

type groupFixture struct {
	svc          *GroupService
	store        *memGroupStore
	trigger      *recordingTrigger
	roster       *memRoster
	rules        *staticRules
	assignments  *memAssignments
	assignment   *model.Assignment
	checker      *authz.Checker
	courseID     uuid.UUID
	assignmentID uuid.UUID
}

func newGroupFixture(t *testing.T, rules model.TeamFormationRules) *groupFixture {
	t.Helper()
	courseID := uuid.New()
	assignmentID := uuid.New()
	released := time.Now().Add(-time.Hour)

	store := newMemGroupStore()
	trigger := &recordingTrigger{}
	roster := &memRoster{}
	static := &staticRules{rules: rules}
	assignment := &model.Assignment{
		ID: assignmentID, CourseID: courseID,
		Slug: "lab-1", Title: "Lab 1", ReleasedAt: &released,
	}
	assignments := &memAssignments{byID: map[uuid.UUID]*model.Assignment{assignmentID: assignment}}

	registry := authz.NewRegistry()
	authz.RegisterDefaultHandlers(registry)
	checker := authz.NewChecker(registry)

	svc := NewGroupService(store, assignments, roster, static,
		NewJoinCodeGenerator(store), checker, trigger, zerolog.Nop())

	return &groupFixture{
		svc:          svc,
		store:        store,
		trigger:      trigger,
		roster:       roster,
		rules:        static,
		assignments:  assignments,
		assignment:   assignment,
		checker:      checker,
		courseID:     courseID,
		assignmentID: assignmentID,
	}
}

func (f *groupFixture) enrollStudents(ids ...int) {
	for _, id := range ids {
		f.roster.members = append(f.roster.members, model.CourseMemberDetail{
			UserID: id,
			Role:   model.CourseRoleStudent,
		})
	}
}

func student(id int, courseID uuid.UUID) *model.Principal {
	return model.NewPrincipal(&model.Claims{
		UserID:      id,
		CourseRoles: map[uuid.UUID]model.CourseRole{courseID: model.CourseRoleStudent},
	})
}

func lecturer(id int, courseID uuid.UUID) *model.Principal {
	return model.NewPrincipal(&model.Claims{
		UserID:      id,
		CourseRoles: map[uuid.UUID]model.CourseRole{courseID: model.CourseRoleLecturer},
	})
}

func admin(id int) *model.Principal {
	return model.NewPrincipal(&model.Claims{UserID: id, IsAdmin: true})
}

func teamRules(min, max int) model.TeamFormationRules {
	return model.TeamFormationRules{
		Mode:               model.TeamModeSelfOrganized,
		MinGroupSize:       min,
		MaxGroupSize:       max,
		AllowStudentCreate: true,
		AllowStudentJoin:   true,
		AllowStudentLeave:  true,
		LockAtDeadline:     true,
	}
}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestCreateTeam(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))

	group, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)

	assert.Equal(t, model.GroupStateForming, group.State)
	assert.Equal(t, f.courseID, group.CourseID)
	require.NotNil(t, group.JoinCode)
	assert.Len(t, *group.JoinCode, 6)

	members, err := f.store.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, members)

	// A second create by the same student hits the one-group constraint.
	_, err = f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassConflict, apperr.ClassOf(err))
	assert.Equal(t, "ALREADY_IN_TEAM", apperr.MetaOf(err)["code"])
}

func TestCreateTeamRuleGates(t *testing.T) {
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name      string
		rules     func() model.TeamFormationRules
		wantClass apperr.Class
		wantCode  string
	}{
		{
			name:      "individual only",
			rules:     func() model.TeamFormationRules { return teamRules(1, 1) },
			wantClass: apperr.ClassBadRequest,
			wantCode:  "INDIVIDUAL_ONLY_ASSIGNMENT",
		},
		{
			name: "deadline passed",
			rules: func() model.TeamFormationRules {
				r := teamRules(1, 3)
				r.FormationDeadline = &past
				return r
			},
			wantClass: apperr.ClassForbidden,
			wantCode:  "FORMATION_DEADLINE_PASSED",
		},
		{
			name: "student create disabled",
			rules: func() model.TeamFormationRules {
				r := teamRules(1, 3)
				r.AllowStudentCreate = false
				return r
			},
			wantClass: apperr.ClassForbidden,
			wantCode:  "TEAM_ACTION_DISABLED",
		},
		{
			name: "instructor predefined mode",
			rules: func() model.TeamFormationRules {
				r := teamRules(1, 3)
				r.Mode = model.TeamModeInstructorPredefined
				return r
			},
			wantClass: apperr.ClassForbidden,
			wantCode:  "TEAM_ACTION_DISABLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGroupFixture(t, tt.rules())
			_, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
			require.Error(t, err)
			assert.Equal(t, tt.wantClass, apperr.ClassOf(err))
			assert.Equal(t, tt.wantCode, apperr.MetaOf(err)["code"])
		})
	}
}

func TestCreateTeamAdminBypassesStudentGates(t *testing.T) {
	ctx := context.Background()
	rules := teamRules(1, 3)
	rules.AllowStudentCreate = false
	rules.Mode = model.TeamModeInstructorPredefined
	f := newGroupFixture(t, rules)

	_, err := f.svc.CreateTeam(ctx, admin(900), f.courseID, f.assignmentID)
	assert.NoError(t, err)
}

// TestTeamOpsRequireCourseMembership locks down the ordering between the
// permission check and the state machine: a principal with no role in the
// course is rejected by every team operation before any group state is
// read or written.
func TestTeamOpsRequireCourseMembership(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	outsider := model.NewPrincipal(&model.Claims{UserID: 999})

	ops := []struct {
		name string
		run  func() error
	}{
		{"create", func() error {
			_, err := f.svc.CreateTeam(ctx, outsider, f.courseID, f.assignmentID)
			return err
		}},
		{"join", func() error {
			_, err := f.svc.JoinTeam(ctx, outsider, f.courseID, f.assignmentID, uuid.New(), "ABCDEF")
			return err
		}},
		{"leave", func() error {
			return f.svc.LeaveTeam(ctx, outsider, f.courseID, f.assignmentID)
		}},
		{"mine", func() error {
			_, err := f.svc.GetMyGroup(ctx, outsider, f.courseID, f.assignmentID)
			return err
		}},
		{"available", func() error {
			_, err := f.svc.ListAvailable(ctx, outsider, f.courseID, f.assignmentID)
			return err
		}},
		{"list", func() error {
			_, err := f.svc.ListTeams(ctx, outsider, f.courseID, f.assignmentID)
			return err
		}},
		{"lock", func() error {
			return f.svc.LockTeams(ctx, outsider, f.courseID, f.assignmentID)
		}},
		{"predefined", func() error {
			_, err := f.svc.CreatePredefinedTeam(ctx, outsider, f.courseID, f.assignmentID, []int{1})
			return err
		}},
		{"workspace", func() error {
			_, err := f.svc.EnsureIndividualWorkspace(ctx, outsider, f.courseID, f.assignmentID)
			return err
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			err := op.run()
			require.Error(t, err)
			assert.Equal(t, apperr.ClassForbidden, apperr.ClassOf(err))
			assert.Equal(t, "INSUFFICIENT_COURSE_ROLE", apperr.MetaOf(err)["code"])
		})
	}

	groups, err := f.store.ListByAssignment(ctx, f.assignmentID)
	require.NoError(t, err)
	assert.Empty(t, groups, "no group state was touched")
	assert.Empty(t, f.trigger.requests)
}

// TestTeamOpsStudentRoleIsNotEnoughForStaffOps pins the role floor of the
// staff operations.
func TestTeamOpsStudentRoleIsNotEnoughForStaffOps(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	f.enrollStudents(1)
	enrolled := student(1, f.courseID)

	err := f.svc.LockTeams(ctx, enrolled, f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_COURSE_ROLE", apperr.MetaOf(err)["code"])

	_, err = f.svc.CreatePredefinedTeam(ctx, enrolled, f.courseID, f.assignmentID, []int{1})
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_COURSE_ROLE", apperr.MetaOf(err)["code"])

	_, err = f.svc.ListTeams(ctx, enrolled, f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_COURSE_ROLE", apperr.MetaOf(err)["code"])
}

// TestTeamOpsPinAssignmentToRoutedCourse rejects requests that address an
// assignment under a course it does not belong to, even when the caller
// holds a strong role in the routed course.
func TestTeamOpsPinAssignmentToRoutedCourse(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	otherCourse := uuid.New()
	staff := lecturer(50, otherCourse)

	err := f.svc.LockTeams(ctx, staff, otherCourse, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))

	_, err = f.svc.CreatePredefinedTeam(ctx, staff, otherCourse, f.assignmentID, []int{1})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))

	_, err = f.svc.CreateTeam(ctx, student(1, otherCourse), otherCourse, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))

	groups, err := f.store.ListByAssignment(ctx, f.assignmentID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestTeamOpsHideUnreleasedAssignmentFromStudents(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	f.assignment.ReleasedAt = nil

	_, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassForbidden, apperr.ClassOf(err))

	// Staff see the assignment before release.
	_, err = f.svc.ListTeams(ctx, lecturer(50, f.courseID), f.courseID, f.assignmentID)
	assert.NoError(t, err)
}

func TestJoinTeam(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 2))

	group, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)

	t.Run("wrong code", func(t *testing.T) {
		_, err := f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID, group.ID, "ZZZZZZ")
		require.Error(t, err)
		assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))
		assert.Equal(t, "JOIN_CODE_MISMATCH", apperr.MetaOf(err)["code"])
	})

	t.Run("wrong assignment", func(t *testing.T) {
		_, err := f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, uuid.New(), group.ID, *group.JoinCode)
		require.Error(t, err)
		assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))
	})

	t.Run("correct code", func(t *testing.T) {
		joined, err := f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID, group.ID, *group.JoinCode)
		require.NoError(t, err)
		assert.Equal(t, 2, joined.MemberCount)
	})

	t.Run("full team", func(t *testing.T) {
		_, err := f.svc.JoinTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID, group.ID, *group.JoinCode)
		require.Error(t, err)
		assert.Equal(t, apperr.ClassConflict, apperr.ClassOf(err))
		assert.Equal(t, "TEAM_FULL", apperr.MetaOf(err)["code"])
	})

	t.Run("member rejoining own team", func(t *testing.T) {
		f := newGroupFixture(t, teamRules(1, 3))
		g, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
		require.NoError(t, err)
		_, err = f.svc.JoinTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID, g.ID, *g.JoinCode)
		require.Error(t, err)
		assert.Equal(t, "ALREADY_IN_TEAM", apperr.MetaOf(err)["code"])
	})
}

func TestJoinTeamConcurrentCapacity(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 2))

	group, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	code := *group.JoinCode

	// One free slot, eight contenders. Exactly one join may succeed.
	const contenders = 8
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.JoinTeam(ctx, student(100+i, f.courseID), f.courseID, f.assignmentID, group.ID, code)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperr.ClassConflict, apperr.ClassOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)

	members, err := f.store.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

// collidingStore fails the first rejects creates the way the repository
// reports a join code unique violation, recording every code it saw.
type collidingStore struct {
	*memGroupStore
	rejects int
	codes   []string
}

func (s *collidingStore) CreateWithMember(ctx context.Context, g *model.SubmissionGroup, studentID int) error {
	s.codes = append(s.codes, *g.JoinCode)
	if s.rejects > 0 {
		s.rejects--
		return apperr.Conflict("join code already in use by a forming group",
			"code", "JOIN_CODE_TAKEN")
	}
	return s.memGroupStore.CreateWithMember(ctx, g, studentID)
}

func TestCreateTeamRetriesTakenJoinCode(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))

	store := &collidingStore{memGroupStore: f.store, rejects: 2}
	svc := NewGroupService(store, f.assignments, f.roster, f.rules,
		NewJoinCodeGenerator(store), f.checker, f.trigger, zerolog.Nop())

	group, err := svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	require.Len(t, store.codes, 3, "two collisions then the winning insert")
	assert.Equal(t, store.codes[2], *group.JoinCode)
}

func TestCreateTeamJoinCodeExhaustion(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))

	store := &collidingStore{memGroupStore: f.store, rejects: joinCodeAttempts}
	svc := NewGroupService(store, f.assignments, f.roster, f.rules,
		NewJoinCodeGenerator(store), f.checker, f.trigger, zerolog.Nop())

	_, err := svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassConflict, apperr.ClassOf(err))
	assert.Len(t, store.codes, joinCodeAttempts)
}

func TestLeaveTeam(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))

	group, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID, group.ID, *group.JoinCode)
	require.NoError(t, err)

	require.NoError(t, f.svc.LeaveTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID))
	members, err := f.store.ListMembers(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, members, "remaining member keeps the group")

	// The last member leaving deletes the group outright.
	require.NoError(t, f.svc.LeaveTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID))
	_, err = f.store.GetByID(ctx, group.ID)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))

	// Leaving with no membership reports NO_TEAM_FORMED.
	err = f.svc.LeaveTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, "NO_TEAM_FORMED", apperr.MetaOf(err)["code"])
}

func TestLeaveTeamDisabled(t *testing.T) {
	ctx := context.Background()
	rules := teamRules(1, 3)
	rules.AllowStudentLeave = false
	f := newGroupFixture(t, rules)

	err := f.svc.LeaveTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, "TEAM_ACTION_DISABLED", apperr.MetaOf(err)["code"])
}

func TestListAvailableHidesCodesAndFullGroups(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 2))

	open, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	full, err := f.svc.CreateTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID, full.ID, *full.JoinCode)
	require.NoError(t, err)

	groups, err := f.svc.ListAvailable(ctx, student(4, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, open.ID, groups[0].ID)
	assert.Nil(t, groups[0].JoinCode)
}

func TestGetMyGroup(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))

	_, err := f.svc.GetMyGroup(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))
	assert.Equal(t, "NO_TEAM_FORMED", apperr.MetaOf(err)["code"])

	created, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)

	got, err := f.svc.GetMyGroup(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestLockTeamsProvisionsOncePerGroup(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	staff := lecturer(50, f.courseID)

	g1, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID, g1.ID, *g1.JoinCode)
	require.NoError(t, err)
	g2, err := f.svc.CreateTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)

	require.NoError(t, f.svc.LockTeams(ctx, staff, f.courseID, f.assignmentID))

	for _, id := range []uuid.UUID{g1.ID, g2.ID} {
		locked, err := f.store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.GroupStateLocked, locked.State)
		assert.Nil(t, locked.JoinCode, "join code cleared on lock")
		assert.Equal(t, 1, f.trigger.countFor(id))
	}

	require.Len(t, f.trigger.requests, 2)
	byGroup := make(map[uuid.UUID]provisioning.Request)
	for _, req := range f.trigger.requests {
		byGroup[req.GroupID] = req
	}
	assert.Equal(t, []int{1, 2}, byGroup[g1.ID].MemberIDs)
	assert.True(t, byGroup[g1.ID].IsTeam)
	assert.Equal(t, []int{3}, byGroup[g2.ID].MemberIDs)
	assert.False(t, byGroup[g2.ID].IsTeam)
	assert.Equal(t, f.courseID, byGroup[g1.ID].CourseID)
	assert.Equal(t, f.assignmentID, byGroup[g1.ID].AssignmentID)

	// Locked teams reject further membership changes.
	_, err = f.svc.JoinTeam(ctx, student(4, f.courseID), f.courseID, f.assignmentID, g1.ID, "ABCDEF")
	require.Error(t, err)
	assert.Equal(t, "TEAM_NOT_FORMING", apperr.MetaOf(err)["code"])
	err = f.svc.LeaveTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, "TEAM_NOT_FORMING", apperr.MetaOf(err)["code"])
}

// TestLockTeamsLeavesEarlierLockedGroupsAlone: groups finalized before the
// lock call (predefined teams, prior lock passes) underwent no transition
// and must not be provisioned again.
func TestLockTeamsLeavesEarlierLockedGroupsAlone(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	f.enrollStudents(1, 2, 3)
	staff := lecturer(50, f.courseID)

	pre, err := f.svc.CreatePredefinedTeam(ctx, staff, f.courseID, f.assignmentID, []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, 1, f.trigger.countFor(pre.ID))

	solo, err := f.svc.CreateTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)

	require.NoError(t, f.svc.LockTeams(ctx, staff, f.courseID, f.assignmentID))

	assert.Equal(t, 1, f.trigger.countFor(solo.ID))
	assert.Equal(t, 1, f.trigger.countFor(pre.ID), "predefined team not re-provisioned at lock")

	// A second lock with nothing forming provisions nothing further.
	require.NoError(t, f.svc.LockTeams(ctx, staff, f.courseID, f.assignmentID))
	assert.Len(t, f.trigger.requests, 2)
}

func TestLockTeamsAutoAssign(t *testing.T) {
	ctx := context.Background()
	rules := teamRules(2, 3)
	rules.AutoAssignUnmatched = true
	f := newGroupFixture(t, rules)
	f.enrollStudents(1, 2, 3, 4, 5)
	staff := lecturer(50, f.courseID)

	// Students 1 and 2 form a healthy team; 3 is stuck alone below the
	// minimum; 4 and 5 never formed one.
	g1, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID, g1.ID, *g1.JoinCode)
	require.NoError(t, err)
	undersized, err := f.svc.CreateTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)

	require.NoError(t, f.svc.LockTeams(ctx, staff, f.courseID, f.assignmentID))

	// The undersized group is gone; everyone ended up in a locked group.
	_, err = f.store.GetByID(ctx, undersized.ID)
	assert.Equal(t, apperr.ClassNotFound, apperr.ClassOf(err))

	finalized, err := f.store.ListByAssignment(ctx, f.assignmentID)
	require.NoError(t, err)

	placed := make(map[int]bool)
	for _, g := range finalized {
		assert.Equal(t, model.GroupStateLocked, g.State)
		assert.GreaterOrEqual(t, len(g.MemberIDs), 1)
		assert.LessOrEqual(t, len(g.MemberIDs), rules.MaxGroupSize)
		assert.Equal(t, 1, f.trigger.countFor(g.ID))
		for _, sid := range g.MemberIDs {
			assert.False(t, placed[sid], "student %d placed twice", sid)
			placed[sid] = true
		}
	}
	for _, sid := range []int{1, 2, 3, 4, 5} {
		assert.True(t, placed[sid], "student %d was not placed", sid)
	}
}

func TestCreatePredefinedTeam(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))
	f.enrollStudents(1, 2, 3)
	staff := lecturer(50, f.courseID)

	t.Run("success", func(t *testing.T) {
		group, err := f.svc.CreatePredefinedTeam(ctx, staff, f.courseID, f.assignmentID, []int{1, 2})
		require.NoError(t, err)
		assert.Equal(t, model.GroupStateLocked, group.State)
		assert.Equal(t, 1, f.trigger.countFor(group.ID))

		members, err := f.store.ListMembers(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, members)
	})

	t.Run("oversized list", func(t *testing.T) {
		_, err := f.svc.CreatePredefinedTeam(ctx, staff, f.courseID, f.assignmentID, []int{3, 4, 5, 6})
		require.Error(t, err)
		assert.Equal(t, "TEAM_FULL", apperr.MetaOf(err)["code"])
	})

	t.Run("duplicate member", func(t *testing.T) {
		_, err := f.svc.CreatePredefinedTeam(ctx, staff, f.courseID, f.assignmentID, []int{3, 3})
		require.Error(t, err)
		assert.Equal(t, apperr.ClassBadRequest, apperr.ClassOf(err))
	})

	t.Run("non-student member", func(t *testing.T) {
		_, err := f.svc.CreatePredefinedTeam(ctx, staff, f.courseID, f.assignmentID, []int{3, 999})
		require.Error(t, err)
		assert.Equal(t, "NOT_COURSE_MEMBER", apperr.MetaOf(err)["code"])
	})

	t.Run("member already teamed", func(t *testing.T) {
		_, err := f.svc.CreatePredefinedTeam(ctx, staff, f.courseID, f.assignmentID, []int{1})
		require.Error(t, err)
		assert.Equal(t, "ALREADY_IN_TEAM", apperr.MetaOf(err)["code"])
	})
}

func TestEnsureIndividualWorkspace(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 1))

	group, err := f.svc.EnsureIndividualWorkspace(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	assert.Equal(t, model.GroupStateLocked, group.State)
	assert.Equal(t, 1, f.trigger.countFor(group.ID))

	req := f.trigger.requests[0]
	assert.Equal(t, []int{1}, req.MemberIDs)
	assert.False(t, req.IsTeam)

	// A second call returns the same workspace without re-provisioning.
	again, err := f.svc.EnsureIndividualWorkspace(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, again.ID)
	assert.Equal(t, 1, f.trigger.countFor(group.ID))
}

func TestEnsureIndividualWorkspaceRejectsTeamAssignments(t *testing.T) {
	ctx := context.Background()
	f := newGroupFixture(t, teamRules(1, 3))

	_, err := f.svc.EnsureIndividualWorkspace(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.Error(t, err)
	assert.Equal(t, apperr.ClassBadRequest, apperr.ClassOf(err))
}

// TestTeamFormationLifecycle walks an assignment from open formation to
// provisioned repositories: creates, a join, a leave, the deadline lock
// with auto-assignment, and the provisioning fan-out.
func TestTeamFormationLifecycle(t *testing.T) {
	ctx := context.Background()
	rules := teamRules(2, 3)
	rules.AutoAssignUnmatched = true
	f := newGroupFixture(t, rules)
	f.enrollStudents(1, 2, 3, 4, 5, 6)

	// Alice opens a team; Bob joins with her code.
	alice, err := f.svc.CreateTeam(ctx, student(1, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, student(2, f.courseID), f.courseID, f.assignmentID, alice.ID, *alice.JoinCode)
	require.NoError(t, err)

	// Carol opens a team, Dave joins, then changes his mind and leaves.
	carol, err := f.svc.CreateTeam(ctx, student(3, f.courseID), f.courseID, f.assignmentID)
	require.NoError(t, err)
	_, err = f.svc.JoinTeam(ctx, student(4, f.courseID), f.courseID, f.assignmentID, carol.ID, *carol.JoinCode)
	require.NoError(t, err)
	require.NoError(t, f.svc.LeaveTeam(ctx, student(4, f.courseID), f.courseID, f.assignmentID))

	// Deadline hits. Carol is below minimum, Dave, Eve, and Frank have no
	// team at all; the deadline sweep locks with auto-assignment.
	require.NoError(t, f.svc.LockTeams(ctx, model.SystemPrincipal(), f.courseID, f.assignmentID))

	finalized, err := f.store.ListByAssignment(ctx, f.assignmentID)
	require.NoError(t, err)

	placed := make(map[int]uuid.UUID)
	for _, g := range finalized {
		require.Equal(t, model.GroupStateLocked, g.State)
		require.GreaterOrEqual(t, len(g.MemberIDs), rules.MinGroupSize)
		require.LessOrEqual(t, len(g.MemberIDs), rules.MaxGroupSize)
		assert.Equal(t, 1, f.trigger.countFor(g.ID), "one provisioning request per group")
		for _, sid := range g.MemberIDs {
			_, dup := placed[sid]
			require.False(t, dup, "student %d in two groups", sid)
			placed[sid] = g.ID
		}
	}
	assert.Len(t, placed, 6, "every enrolled student has a repository team")

	// Alice and Bob stayed together through the reshuffle.
	assert.Equal(t, placed[1], placed[2])
}
