package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/model"
)

// AssignmentRepository handles assignment data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// GetByID retrieves an assignment by id.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, course_id, slug, title, description, released_at, due_at, team_config, created_at, updated_at
		 FROM assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.CourseID, &a.Slug, &a.Title, &a.Description, &a.ReleasedAt, &a.DueAt, &a.TeamConfig, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("assignment not found", "assignment_id", id.String())
		}
		return nil, err
	}
	return a, nil
}

// ListByCourse retrieves all assignments of a course in release order.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, course_id, slug, title, description, released_at, due_at, team_config, created_at, updated_at
		 FROM assignments WHERE course_id = $1
		 ORDER BY released_at NULLS LAST, created_at`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Slug, &a.Title, &a.Description, &a.ReleasedAt, &a.DueAt, &a.TeamConfig, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO assignments (course_id, slug, title, description, released_at, due_at, team_config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		a.CourseID, a.Slug, a.Title, a.Description, a.ReleasedAt, a.DueAt, a.TeamConfig,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("assignment slug already exists in this course", "slug", a.Slug)
	}
	return err
}

// Update modifies an existing assignment.
func (r *AssignmentRepository) Update(ctx context.Context, a *model.Assignment) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assignments
		 SET title = $1, description = $2, released_at = $3, due_at = $4, team_config = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		a.Title, a.Description, a.ReleasedAt, a.DueAt, a.TeamConfig, a.ID)
	return err
}

// ListLockCandidates finds assignments that still have forming groups.
// The effective deadline can come from course-level JSONB offsets, so the
// deadline worker resolves rules per candidate instead of filtering here.
func (r *AssignmentRepository) ListLockCandidates(ctx context.Context) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT a.id, a.course_id, a.slug, a.title, a.description, a.released_at, a.due_at, a.team_config, a.created_at, a.updated_at
		 FROM assignments a
		 JOIN submission_groups g ON g.assignment_id = a.id AND g.state = 'forming'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Slug, &a.Title, &a.Description, &a.ReleasedAt, &a.DueAt, &a.TeamConfig, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
