package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/authz"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/repository"
)

// AssignmentService manages assignments and their effective team rules.
type AssignmentService struct {
	assignments *repository.AssignmentRepository
	courses     *repository.CourseRepository
	checker     *authz.Checker
	rules       *RuleResolver
	log         zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	assignments *repository.AssignmentRepository,
	courses *repository.CourseRepository,
	checker *authz.Checker,
	rules *RuleResolver,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		courses:     courses,
		checker:     checker,
		rules:       rules,
		log:         log.With().Str("component", "assignment_service").Logger(),
	}
}

// Get returns one assignment. Students only see released assignments;
// staff see everything in their course.
func (s *AssignmentService) Get(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) (*model.Assignment, error) {
	assignment, err := s.getInCourse(ctx, courseID, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionRead, model.CourseRoleStudent, authz.AssignmentEntity{Assignment: assignment}); err != nil {
		return nil, err
	}
	return assignment, nil
}

// List returns the course's assignments, filtered to released ones for
// students.
func (s *AssignmentService) List(ctx context.Context, p *model.Principal, courseID uuid.UUID) ([]model.Assignment, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionRead, model.CourseRoleStudent, authz.CourseEntity{Course: course}); err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() || p.HasCourseRole(courseID, model.CourseRoleTutor) {
		return assignments, nil
	}

	released := assignments[:0]
	for _, a := range assignments {
		if a.ReleasedAt != nil {
			released = append(released, a)
		}
	}
	return released, nil
}

// Create adds an assignment to the course. Lecturer or above.
func (s *AssignmentService) Create(ctx context.Context, p *model.Principal, courseID uuid.UUID, req *model.CreateAssignmentRequest) (*model.Assignment, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionWrite, model.CourseRoleLecturer, authz.CourseEntity{Course: course}); err != nil {
		return nil, err
	}
	if err := validateOverlay(course, req.TeamConfig, req.ReleasedAt); err != nil {
		return nil, err
	}

	assignment := &model.Assignment{
		CourseID:    courseID,
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		ReleasedAt:  req.ReleasedAt,
		DueAt:       req.DueAt,
		TeamConfig:  req.TeamConfig,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("assignment_id", assignment.ID.String()).
		Str("course_id", courseID.String()).
		Str("slug", assignment.Slug).
		Msg("Assignment created")
	return assignment, nil
}

// Update modifies an assignment. Changing the team config drops the
// cached resolved rules.
func (s *AssignmentService) Update(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID, req *model.UpdateAssignmentRequest) (*model.Assignment, error) {
	assignment, err := s.getInCourse(ctx, courseID, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.CheckCoursePermission(p, courseID, authz.ActionWrite, model.CourseRoleLecturer, authz.AssignmentEntity{Assignment: assignment}); err != nil {
		return nil, err
	}

	configChanged := req.TeamConfig != nil
	if configChanged {
		course, err := s.courses.GetByID(ctx, courseID)
		if err != nil {
			return nil, err
		}
		if err := validateOverlay(course, req.TeamConfig, req.ReleasedAt); err != nil {
			return nil, err
		}
		assignment.TeamConfig = req.TeamConfig
	}
	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.ReleasedAt = req.ReleasedAt
	assignment.DueAt = req.DueAt

	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, err
	}
	if configChanged {
		if err := s.rules.Invalidate(ctx, assignmentID); err != nil {
			return nil, err
		}
	}
	return assignment, nil
}

// Rules returns the effective team formation rules for an assignment.
func (s *AssignmentService) Rules(ctx context.Context, p *model.Principal, courseID, assignmentID uuid.UUID) (*model.TeamFormationRules, error) {
	assignment, err := s.Get(ctx, p, courseID, assignmentID)
	if err != nil {
		return nil, err
	}
	return s.rules.Resolve(ctx, assignment)
}

// getInCourse loads the assignment and verifies it belongs to the course
// named in the URL, so a valid id cannot be read through another course's
// path.
func (s *AssignmentService) getInCourse(ctx context.Context, courseID, assignmentID uuid.UUID) (*model.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.CourseID != courseID {
		return nil, apperr.NotFound("assignment not found in this course",
			"assignment_id", assignmentID.String(),
			"course_id", courseID.String(),
		)
	}
	return assignment, nil
}

// validateOverlay checks that the assignment overlay resolves into
// consistent rules against its course config.
func validateOverlay(course *model.Course, cfg *model.TeamFormationConfig, releasedAt *time.Time) error {
	if cfg == nil {
		return nil
	}
	if _, err := model.ResolveTeamFormationRules(course.TeamConfig, cfg, releasedAt); err != nil {
		return apperr.BadRequest(err.Error(), "code", "INVALID_TEAM_RULES")
	}
	return nil
}
