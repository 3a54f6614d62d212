package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitclass/gitclass-backend/internal/model"
)

// MembershipRepository is the read/write store for course and organization
// role assignments, the source every Claims snapshot is built from.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// ListCourseMembershipsByUser retrieves all course-role assignments for a user.
func (r *MembershipRepository) ListCourseMembershipsByUser(ctx context.Context, userID int) ([]model.CourseMembership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, course_id, role, created_at
		 FROM course_memberships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []model.CourseMembership
	for rows.Next() {
		var m model.CourseMembership
		if err := rows.Scan(&m.UserID, &m.CourseID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListOrgMembershipsByUser retrieves all organization-role assignments for a user.
func (r *MembershipRepository) ListOrgMembershipsByUser(ctx context.Context, userID int) ([]model.OrgMembership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, org_id, role, created_at
		 FROM org_memberships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []model.OrgMembership
	for rows.Next() {
		var m model.OrgMembership
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListMembersByCourse retrieves every member of a course with identity
// details, strongest role first for staff-facing listings.
func (r *MembershipRepository) ListMembersByCourse(ctx context.Context, courseID uuid.UUID) ([]model.CourseMemberDetail, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.user_id, u.username, u.name, m.role, m.created_at
		 FROM course_memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.course_id = $1
		 ORDER BY CASE m.role
			WHEN 'owner' THEN 5 WHEN 'maintainer' THEN 4 WHEN 'lecturer' THEN 3
			WHEN 'tutor' THEN 2 ELSE 1 END DESC, u.username`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.CourseMemberDetail
	for rows.Next() {
		var m model.CourseMemberDetail
		if err := rows.Scan(&m.UserID, &m.Username, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Upsert assigns a role to a user in a course, replacing any existing
// assignment so a user never holds two roles in the same course.
func (r *MembershipRepository) Upsert(ctx context.Context, m *model.CourseMembership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO course_memberships (user_id, course_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, course_id) DO UPDATE SET role = EXCLUDED.role`,
		m.UserID, m.CourseID, m.Role)
	return err
}

// Delete removes a user's membership from a course.
func (r *MembershipRepository) Delete(ctx context.Context, courseID uuid.UUID, userID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM course_memberships WHERE course_id = $1 AND user_id = $2`,
		courseID, userID)
	return err
}

// CountStudentsIn reports how many of the given user ids hold the student
// role (or stronger) in the course. Validates predefined team rosters.
func (r *MembershipRepository) CountStudentsIn(ctx context.Context, courseID uuid.UUID, userIDs []int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM course_memberships
		 WHERE course_id = $1 AND user_id = ANY($2)`,
		courseID, userIDs,
	).Scan(&count)
	return count, err
}
