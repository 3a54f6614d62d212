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

// CourseRepository handles course data access. Team configs are stored as
// JSONB and scanned straight into the partial config type.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID retrieves a course by id.
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	c := &model.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, org_id, slug, title, description, team_config, created_at, updated_at
		 FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.OrgID, &c.Slug, &c.Title, &c.Description, &c.TeamConfig, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("course not found", "course_id", id.String())
		}
		return nil, err
	}
	return c, nil
}

// ListByIDs retrieves the courses whose ids are in the given set, ordered
// by title for stable listings.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, slug, title, description, team_config, created_at, updated_at
		 FROM courses WHERE id = ANY($1) ORDER BY title`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCourses(rows)
}

// ListAll retrieves every course (admin listing).
func (r *CourseRepository) ListAll(ctx context.Context) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, slug, title, description, team_config, created_at, updated_at
		 FROM courses ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCourses(rows)
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, c *model.Course) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO courses (org_id, slug, title, description, team_config)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		c.OrgID, c.Slug, c.Title, c.Description, c.TeamConfig,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("course slug already exists", "slug", c.Slug)
	}
	return err
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, c *model.Course) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE courses SET title = $1, description = $2, team_config = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $4`,
		c.Title, c.Description, c.TeamConfig, c.ID,
	)
	return err
}

// Delete removes a course by id. Foreign keys on assignments and
// memberships block deletion while dependents exist.
func (r *CourseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	return err
}

func scanCourses(rows pgx.Rows) ([]model.Course, error) {
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Slug, &c.Title, &c.Description, &c.TeamConfig, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}
