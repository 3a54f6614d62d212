package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/authz"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/provisioning"
)

// GroupStore is the persistence surface the group state machine runs on.
// Implementations must make each mutating method atomic with respect to
// concurrent calls on the same group, and enforce the one group per
// student per assignment constraint with a Conflict error.
type GroupStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.SubmissionGroup, error)
	GetByStudent(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.SubmissionGroup, error)
	ListAvailable(ctx context.Context, assignmentID uuid.UUID, maxSize int) ([]model.SubmissionGroup, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.GroupWithMembers, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]int, error)
	ActiveJoinCodeExists(ctx context.Context, assignmentID uuid.UUID, code string) (bool, error)
	CreateWithMember(ctx context.Context, g *model.SubmissionGroup, studentID int) error
	CreateLockedWithMembers(ctx context.Context, g *model.SubmissionGroup, memberIDs []int) error
	AddMember(ctx context.Context, groupID uuid.UUID, studentID int, expectCode *string, maxSize int) error
	RemoveMember(ctx context.Context, assignmentID uuid.UUID, studentID int) (uuid.UUID, bool, error)
	LockGroups(ctx context.Context, assignmentID uuid.UUID, plan func(groups []model.GroupWithMembers) (model.TeamLockPlan, error)) ([]model.GroupWithMembers, error)
}

// RulesSource resolves the effective team formation rules.
type RulesSource interface {
	Resolve(ctx context.Context, assignment *model.Assignment) (*model.TeamFormationRules, error)
}

// AssignmentSource loads assignments for the state machine.
type AssignmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
}

// RosterSource answers who the students of a course are.
type RosterSource interface {
	ListMembersByCourse(ctx context.Context, courseID uuid.UUID) ([]model.CourseMemberDetail, error)
	CountStudentsIn(ctx context.Context, courseID uuid.UUID, userIDs []int) (int, error)
}

// GroupService implements team formation for assignments: creating,
// joining, and leaving teams while they are forming, and the one-way
// transition to locked that fires repository provisioning. Every operation
// runs the course permission check before it reads or mutates group state.
type GroupService struct {
	groups      GroupStore
	assignments AssignmentSource
	roster      RosterSource
	rules       RulesSource
	codes       *JoinCodeGenerator
	checker     *authz.Checker
	trigger     provisioning.Trigger
	log         zerolog.Logger
}

// NewGroupService creates a new GroupService.
func NewGroupService(
	groups GroupStore,
	assignments AssignmentSource,
	roster RosterSource,
	rules RulesSource,
	codes *JoinCodeGenerator,
	checker *authz.Checker,
	trigger provisioning.Trigger,
	log zerolog.Logger,
) *GroupService {
	return &GroupService{
		groups:      groups,
		assignments: assignments,
		roster:      roster,
		rules:       rules,
		codes:       codes,
		checker:     checker,
		trigger:     trigger,
		log:         log.With().Str("component", "group_service").Logger(),
	}
}

// CreateTeam opens a new forming team for the calling student and makes
// them its first member.
func (s *GroupService) CreateTeam(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) (*model.SubmissionGroup, error) {
	assignment, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleStudent)
	if err != nil {
		return nil, err
	}
	if err := s.teamWindowOpen(rules); err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !rules.AllowStudentCreate {
		return nil, apperr.Forbidden("students cannot create teams for this assignment",
			"assignment_id", assignmentID.String(),
			"code", "TEAM_ACTION_DISABLED",
		)
	}
	if rules.Mode == model.TeamModeInstructorPredefined && !p.IsAdmin() {
		return nil, apperr.Forbidden("teams for this assignment are predefined by staff",
			"assignment_id", assignmentID.String(),
			"code", "TEAM_ACTION_DISABLED",
		)
	}

	// A concurrent create can win the same code between the generator's
	// check and the insert; the unique index reports it and we draw again.
	var group *model.SubmissionGroup
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := s.codes.Generate(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		candidate := &model.SubmissionGroup{
			CourseID:     assignment.CourseID,
			AssignmentID: assignmentID,
			State:        model.GroupStateForming,
			JoinCode:     &code,
			CreatedBy:    p.UserID(),
		}
		err = s.groups.CreateWithMember(ctx, candidate, p.UserID())
		if err == nil {
			group = candidate
			break
		}
		if apperr.MetaOf(err)["code"] == "JOIN_CODE_TAKEN" {
			continue
		}
		return nil, err
	}
	if group == nil {
		return nil, apperr.Conflict("could not allocate a unique join code",
			"assignment_id", assignmentID.String(),
		)
	}

	s.log.Info().
		Str("group_id", group.ID.String()).
		Str("assignment_id", assignmentID.String()).
		Int("user_id", p.UserID()).
		Msg("Team created")
	return group, nil
}

// JoinTeam adds the calling student to the team, verifying the join code
// under the same lock that checks state and capacity.
func (s *GroupService) JoinTeam(ctx context.Context, p *model.Principal, courseID, assignmentID, groupID uuid.UUID, joinCode string) (*model.SubmissionGroup, error) {
	_, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleStudent)
	if err != nil {
		return nil, err
	}
	if err := s.teamWindowOpen(rules); err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !rules.AllowStudentJoin {
		return nil, apperr.Forbidden("students cannot join teams for this assignment",
			"assignment_id", assignmentID.String(),
			"code", "TEAM_ACTION_DISABLED",
		)
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.AssignmentID != assignmentID {
		return nil, apperr.NotFound("team does not belong to this assignment",
			"group_id", groupID.String(),
			"assignment_id", assignmentID.String(),
		)
	}

	code := joinCode
	if err := s.groups.AddMember(ctx, groupID, p.UserID(), &code, rules.MaxGroupSize); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("group_id", groupID.String()).
		Int("user_id", p.UserID()).
		Msg("Student joined team")
	return s.groups.GetByID(ctx, groupID)
}

// LeaveTeam removes the calling student from their forming team. When the
// leaver was the last member, the team is deleted rather than left empty.
func (s *GroupService) LeaveTeam(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) error {
	_, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleStudent)
	if err != nil {
		return err
	}
	if err := s.teamWindowOpen(rules); err != nil {
		return err
	}
	if !p.IsAdmin() && !rules.AllowStudentLeave {
		return apperr.Forbidden("students cannot leave teams for this assignment",
			"assignment_id", assignmentID.String(),
			"code", "TEAM_ACTION_DISABLED",
		)
	}

	groupID, deleted, err := s.groups.RemoveMember(ctx, assignmentID, p.UserID())
	if err != nil {
		return err
	}

	s.log.Info().
		Str("group_id", groupID.String()).
		Int("user_id", p.UserID()).
		Bool("group_deleted", deleted).
		Msg("Student left team")
	return nil
}

// ListAvailable returns the forming teams of the assignment that still
// have a free slot. Join codes are not exposed here; discovery and
// invitation are separate channels.
func (s *GroupService) ListAvailable(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) ([]model.SubmissionGroup, error) {
	_, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleStudent)
	if err != nil {
		return nil, err
	}
	if !rules.TeamsEnabled() {
		return nil, apperr.BadRequest("assignment is individual only",
			"assignment_id", assignmentID.String(),
			"code", "INDIVIDUAL_ONLY_ASSIGNMENT",
		)
	}

	groups, err := s.groups.ListAvailable(ctx, assignmentID, rules.MaxGroupSize)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].JoinCode = nil
	}
	return groups, nil
}

// ListTeams returns every group of the assignment with members, join
// codes included. Staff only.
func (s *GroupService) ListTeams(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) ([]model.GroupWithMembers, error) {
	if _, _, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleTutor); err != nil {
		return nil, err
	}
	return s.groups.ListByAssignment(ctx, assignmentID)
}

// GetMyGroup returns the calling student's group for the assignment.
func (s *GroupService) GetMyGroup(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) (*model.SubmissionGroup, error) {
	if _, _, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleStudent); err != nil {
		return nil, err
	}

	group, err := s.groups.GetByStudent(ctx, assignmentID, p.UserID())
	if err != nil {
		if apperr.ClassOf(err) == apperr.ClassNotFound {
			return nil, apperr.NotFound("no group formed for this assignment",
				"assignment_id", assignmentID.String(),
				"code", "NO_TEAM_FORMED",
			)
		}
		return nil, err
	}
	return group, nil
}

// LockTeams finalizes every forming team of the assignment. When the
// rules enable auto-assignment, students without a team are placed and
// undersized teams are dissolved first; the whole reshuffle and the
// state transition commit atomically. Provisioning fires exactly once
// per group finalized by this call.
func (s *GroupService) LockTeams(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) error {
	assignment, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionWrite, model.CourseRoleLecturer)
	if err != nil {
		return err
	}

	var students []int
	if rules.AutoAssignUnmatched {
		students, err = s.courseStudents(ctx, assignment.CourseID)
		if err != nil {
			return err
		}
	}

	finalized, err := s.groups.LockGroups(ctx, assignmentID, func(groups []model.GroupWithMembers) (model.TeamLockPlan, error) {
		if !rules.AutoAssignUnmatched {
			return model.TeamLockPlan{}, nil
		}
		assigned := make(map[int]bool)
		for _, g := range groups {
			for _, sid := range g.MemberIDs {
				assigned[sid] = true
			}
		}
		var pool []int
		for _, sid := range students {
			if !assigned[sid] {
				pool = append(pool, sid)
			}
		}
		return PlanAutoAssign(groups, pool, *rules), nil
	})
	if err != nil {
		return err
	}

	for _, g := range finalized {
		if err := s.provision(ctx, &g.SubmissionGroup, g.MemberIDs); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("assignment_id", assignmentID.String()).
		Int("groups", len(finalized)).
		Msg("Teams locked")
	return nil
}

// CreatePredefinedTeam creates a team on behalf of staff with a fixed
// member list. The team is born locked and provisioning fires immediately.
func (s *GroupService) CreatePredefinedTeam(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID, memberIDs []int) (*model.SubmissionGroup, error) {
	assignment, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionWrite, model.CourseRoleLecturer)
	if err != nil {
		return nil, err
	}
	if len(memberIDs) > rules.MaxGroupSize {
		return nil, apperr.BadRequest("member list exceeds the maximum group size",
			"assignment_id", assignmentID.String(),
			"max_group_size", fmt.Sprintf("%d", rules.MaxGroupSize),
			"code", "TEAM_FULL",
		)
	}
	if dup := firstDuplicate(memberIDs); dup != 0 {
		return nil, apperr.BadRequest("member list contains duplicates",
			"student_id", fmt.Sprintf("%d", dup),
		)
	}

	// Every listed member must be a student of the course.
	count, err := s.roster.CountStudentsIn(ctx, assignment.CourseID, memberIDs)
	if err != nil {
		return nil, err
	}
	if count != len(memberIDs) {
		return nil, apperr.BadRequest("member list contains users who are not students of the course",
			"course_id", assignment.CourseID.String(),
			"code", "NOT_COURSE_MEMBER",
		)
	}

	group := &model.SubmissionGroup{
		CourseID:     assignment.CourseID,
		AssignmentID: assignmentID,
		CreatedBy:    p.UserID(),
	}
	if err := s.groups.CreateLockedWithMembers(ctx, group, memberIDs); err != nil {
		return nil, err
	}

	if err := s.provision(ctx, group, memberIDs); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("group_id", group.ID.String()).
		Ints("member_ids", memberIDs).
		Msg("Predefined team created")
	return group, nil
}

// EnsureIndividualWorkspace returns the student's workspace group for an
// individual assignment, creating a locked single-member group on first
// access. Creation races between concurrent first accesses collapse onto
// the winning row.
func (s *GroupService) EnsureIndividualWorkspace(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) (*model.SubmissionGroup, error) {
	assignment, rules, err := s.authorize(ctx, p, courseID, assignmentID, authz.ActionRead, model.CourseRoleStudent)
	if err != nil {
		return nil, err
	}
	if rules.TeamsEnabled() {
		return nil, apperr.BadRequest("assignment uses teams",
			"assignment_id", assignmentID.String(),
		)
	}

	group, err := s.groups.GetByStudent(ctx, assignmentID, p.UserID())
	if err == nil {
		return group, nil
	}
	if apperr.ClassOf(err) != apperr.ClassNotFound {
		return nil, err
	}

	group = &model.SubmissionGroup{
		CourseID:     assignment.CourseID,
		AssignmentID: assignmentID,
		CreatedBy:    p.UserID(),
	}
	if err := s.groups.CreateLockedWithMembers(ctx, group, []int{p.UserID()}); err != nil {
		if apperr.ClassOf(err) == apperr.ClassConflict {
			return s.groups.GetByStudent(ctx, assignmentID, p.UserID())
		}
		return nil, err
	}

	if err := s.provision(ctx, group, []int{p.UserID()}); err != nil {
		return nil, err
	}
	return group, nil
}

// ─── Internal helpers ──────────────────────────────────────────────────

// authorize loads the assignment, pins it to the routed course, and runs
// the course permission check. Nothing may be read from or written to the
// group store before this passes.
func (s *GroupService) authorize(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID, action authz.Action, required model.CourseRole) (*model.Assignment, *model.TeamFormationRules, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if assignment.CourseID != courseID {
		return nil, nil, apperr.NotFound("assignment not found in this course",
			"course_id", courseID.String(),
			"assignment_id", assignmentID.String(),
		)
	}
	if err := s.checker.CheckCoursePermission(p, courseID, action, required, authz.AssignmentEntity{Assignment: assignment}); err != nil {
		return nil, nil, err
	}

	rules, err := s.rules.Resolve(ctx, assignment)
	if err != nil {
		return nil, nil, err
	}
	return assignment, rules, nil
}

// teamWindowOpen rejects team operations on individual assignments and
// after the formation deadline has passed.
func (s *GroupService) teamWindowOpen(rules *model.TeamFormationRules) error {
	if !rules.TeamsEnabled() {
		return apperr.BadRequest("assignment is individual only",
			"code", "INDIVIDUAL_ONLY_ASSIGNMENT",
		)
	}
	if rules.DeadlinePassed(time.Now()) {
		return apperr.Forbidden("team formation deadline has passed",
			"deadline", rules.FormationDeadline.Format(time.RFC3339),
			"code", "FORMATION_DEADLINE_PASSED",
		)
	}
	return nil
}

// courseStudents returns the ids of every student enrolled in the course.
// Which of them lack a group is decided inside the lock transaction, on
// the locked snapshot.
func (s *GroupService) courseStudents(ctx context.Context, courseID uuid.UUID) ([]int, error) {
	members, err := s.roster.ListMembersByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var students []int
	for _, m := range members {
		if m.Role != model.CourseRoleStudent {
			continue
		}
		students = append(students, m.UserID)
	}
	return students, nil
}

// provision fires repository provisioning for one finalized group. The
// trigger is idempotent per group, so a retried lock cannot double-provision.
func (s *GroupService) provision(ctx context.Context, g *model.SubmissionGroup, memberIDs []int) error {
	ref, err := s.trigger.RequestRepositoryProvisioning(ctx, provisioning.Request{
		GroupID:      g.ID,
		CourseID:     g.CourseID,
		AssignmentID: g.AssignmentID,
		MemberIDs:    memberIDs,
		IsTeam:       len(memberIDs) > 1,
	})
	if err != nil {
		return apperr.Internal("request repository provisioning", err)
	}

	s.log.Debug().
		Str("group_id", g.ID.String()).
		Str("provisioning_ref", ref).
		Msg("Provisioning requested")
	return nil
}

func firstDuplicate(ids []int) int {
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return 0
}
