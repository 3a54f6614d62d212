package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/authz"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/repository"
)

// CourseService manages courses and their membership rosters. Every
// operation takes the calling principal and runs it through the
// permission checker before touching data.
type CourseService struct {
	courses     *repository.CourseRepository
	memberships *repository.MembershipRepository
	users       *repository.UserRepository
	checker     *authz.Checker
	rules       *RuleResolver
	auth        *AuthService
	log         zerolog.Logger
}

// NewCourseService creates a new CourseService.
func NewCourseService(
	courses *repository.CourseRepository,
	memberships *repository.MembershipRepository,
	users *repository.UserRepository,
	checker *authz.Checker,
	rules *RuleResolver,
	auth *AuthService,
	log zerolog.Logger,
) *CourseService {
	return &CourseService{
		courses:     courses,
		memberships: memberships,
		users:       users,
		checker:     checker,
		rules:       rules,
		auth:        auth,
		log:         log.With().Str("component", "course_service").Logger(),
	}
}

// Get returns one course, readable by its members and admins.
func (s *CourseService) Get(ctx context.Context, p *model.Principal, courseID uuid.UUID) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionRead, model.CourseRoleStudent, authz.CourseEntity{Course: course}); err != nil {
		return nil, err
	}
	return course, nil
}

// ListMine returns the courses the principal belongs to; admins see all.
func (s *CourseService) ListMine(ctx context.Context, p *model.Principal) ([]model.Course, error) {
	if p.IsAdmin() {
		return s.courses.ListAll(ctx)
	}
	ids := p.CourseIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	return s.courses.ListByIDs(ctx, ids)
}

// Create creates a course and makes the creator its owner. Admin only;
// regular users get courses through org tooling.
func (s *CourseService) Create(ctx context.Context, p *model.Principal, req *model.CreateCourseRequest) (*model.Course, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only admins can create courses")
	}
	if err := validateTeamConfig(req.TeamConfig); err != nil {
		return nil, err
	}

	course := &model.Course{
		OrgID:       req.OrgID,
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		TeamConfig:  req.TeamConfig,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}

	owner := &model.CourseMembership{
		CourseID: course.ID,
		UserID:   p.UserID(),
		Role:     model.CourseRoleOwner,
	}
	if err := s.memberships.Upsert(ctx, owner); err != nil {
		return nil, err
	}
	if err := s.auth.InvalidateClaims(ctx, p.UserID()); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("course_id", course.ID.String()).
		Str("slug", course.Slug).
		Int("user_id", p.UserID()).
		Msg("Course created")
	return course, nil
}

// Update modifies course metadata and team formation config. Changing
// the config drops every cached rule set derived from it.
func (s *CourseService) Update(ctx context.Context, p *model.Principal, courseID uuid.UUID, req *model.UpdateCourseRequest) (*model.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionWrite, model.CourseRoleLecturer, authz.CourseEntity{Course: course}); err != nil {
		return nil, err
	}

	course.Title = req.Title
	course.Description = req.Description
	configChanged := req.TeamConfig != nil
	if configChanged {
		if err := validateTeamConfig(req.TeamConfig); err != nil {
			return nil, err
		}
		course.TeamConfig = req.TeamConfig
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, err
	}
	if configChanged {
		if err := s.rules.InvalidateCourse(ctx, courseID); err != nil {
			return nil, err
		}
	}
	return course, nil
}

// Delete removes a course. Owner only.
func (s *CourseService) Delete(ctx context.Context, p *model.Principal, courseID uuid.UUID) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionDelete, model.CourseRoleOwner, authz.CourseEntity{Course: course}); err != nil {
		return err
	}
	return s.courses.Delete(ctx, courseID)
}

// ListMembers returns the course roster, staff first.
func (s *CourseService) ListMembers(ctx context.Context, p *model.Principal, courseID uuid.UUID) ([]model.CourseMemberDetail, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionRead, model.CourseRoleStudent, authz.CourseEntity{Course: course}); err != nil {
		return nil, err
	}
	return s.memberships.ListMembersByCourse(ctx, courseID)
}

// SetMember grants or changes a user's role in the course. Assigning the
// owner role requires being the owner; everything else takes lecturer.
func (s *CourseService) SetMember(ctx context.Context, p *model.Principal, courseID uuid.UUID, userID int, role model.CourseRole) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return err
	}

	required := model.CourseRoleLecturer
	if role == model.CourseRoleOwner {
		required = model.CourseRoleOwner
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionWrite, required, authz.CourseEntity{Course: course}); err != nil {
		return err
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	membership := &model.CourseMembership{
		CourseID: courseID,
		UserID:   userID,
		Role:     role,
	}
	if err := s.memberships.Upsert(ctx, membership); err != nil {
		return err
	}
	if err := s.auth.InvalidateClaims(ctx, userID); err != nil {
		return err
	}

	s.log.Info().
		Str("course_id", courseID.String()).
		Int("user_id", userID).
		Str("role", string(role)).
		Msg("Course member set")
	return nil
}

// RemoveMember drops a user from the course.
func (s *CourseService) RemoveMember(ctx context.Context, p *model.Principal, courseID uuid.UUID, userID int) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionWrite, model.CourseRoleLecturer, authz.CourseEntity{Course: course}); err != nil {
		return err
	}

	if err := s.memberships.Delete(ctx, courseID, userID); err != nil {
		return err
	}
	return s.auth.InvalidateClaims(ctx, userID)
}

// validateTeamConfig rejects a partial config that would resolve into
// contradictory rules on its own.
func validateTeamConfig(cfg *model.TeamFormationConfig) error {
	if cfg == nil {
		return nil
	}
	if _, err := model.ResolveTeamFormationRules(cfg, nil, nil); err != nil {
		return apperr.BadRequest(err.Error(), "code", "INVALID_TEAM_RULES")
	}
	return nil
}
