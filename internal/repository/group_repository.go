package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitclass/gitclass-backend/internal/apperr"
	"github.com/gitclass/gitclass-backend/internal/model"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// GroupRepository handles submission group and membership data access.
//
// Every mutating method is a single transaction that takes a FOR UPDATE
// lock on the affected group rows before checking capacity, state, or
// join codes, so "check capacity, then insert membership" is atomic with
// respect to concurrent requests on the same group. Races that slip past
// the lock (two creates for the same student) are caught by the unique
// (assignment_id, student_id) constraint on members and surfaced as
// Conflict errors.
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

const groupColumns = `g.id, g.course_id, g.assignment_id, g.state, g.join_code, g.created_by,
	(SELECT COUNT(*) FROM submission_group_members m WHERE m.group_id = g.id) AS member_count,
	g.created_at, g.updated_at`

func scanGroup(row pgx.Row) (*model.SubmissionGroup, error) {
	g := &model.SubmissionGroup{}
	err := row.Scan(&g.ID, &g.CourseID, &g.AssignmentID, &g.State, &g.JoinCode, &g.CreatedBy,
		&g.MemberCount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("submission group not found")
		}
		return nil, err
	}
	return g, nil
}

// GetByID retrieves a group by id.
func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SubmissionGroup, error) {
	return scanGroup(r.pool.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM submission_groups g WHERE g.id = $1`, id))
}

// GetByStudent retrieves the student's group for an assignment, if any.
func (r *GroupRepository) GetByStudent(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.SubmissionGroup, error) {
	return scanGroup(r.pool.QueryRow(ctx,
		`SELECT `+groupColumns+`
		 FROM submission_groups g
		 JOIN submission_group_members m ON m.group_id = g.id
		 WHERE g.assignment_id = $1 AND m.student_id = $2`,
		assignmentID, studentID))
}

// ListAvailable returns all forming groups of an assignment with at least
// one free slot, ordered by creation time for stable discovery.
func (r *GroupRepository) ListAvailable(ctx context.Context, assignmentID uuid.UUID, maxSize int) ([]model.SubmissionGroup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+groupColumns+`
		 FROM submission_groups g
		 WHERE g.assignment_id = $1 AND g.state = $2
		 AND (SELECT COUNT(*) FROM submission_group_members m WHERE m.group_id = g.id) < $3
		 ORDER BY g.created_at, g.id`,
		assignmentID, model.GroupStateForming, maxSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.SubmissionGroup
	for rows.Next() {
		var g model.SubmissionGroup
		if err := rows.Scan(&g.ID, &g.CourseID, &g.AssignmentID, &g.State, &g.JoinCode, &g.CreatedBy,
			&g.MemberCount, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListByAssignment returns every group of the assignment with member ids,
// regardless of state. Staff-facing.
func (r *GroupRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]model.GroupWithMembers, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.course_id, g.assignment_id, g.state, g.join_code, g.created_by, g.created_at, g.updated_at,
			ARRAY(SELECT m.student_id FROM submission_group_members m
			      WHERE m.group_id = g.id ORDER BY m.joined_at, m.student_id)
		 FROM submission_groups g
		 WHERE g.assignment_id = $1
		 ORDER BY g.created_at, g.id`,
		assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.GroupWithMembers
	for rows.Next() {
		var g model.GroupWithMembers
		if err := rows.Scan(&g.ID, &g.CourseID, &g.AssignmentID, &g.State, &g.JoinCode, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt, &g.MemberIDs); err != nil {
			return nil, err
		}
		g.MemberCount = len(g.MemberIDs)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListMembers returns a group's member ids ordered by join time.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT student_id FROM submission_group_members
		 WHERE group_id = $1 ORDER BY joined_at, student_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListGroupIDsByStudent returns every group the student belongs to, for
// the Claims snapshot.
func (r *GroupRepository) ListGroupIDsByStudent(ctx context.Context, studentID int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT group_id FROM submission_group_members WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveJoinCodeExists reports whether a forming group of the assignment
// already uses the code.
func (r *GroupRepository) ActiveJoinCodeExists(ctx context.Context, assignmentID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM submission_groups
			WHERE assignment_id = $1 AND state = $2 AND UPPER(join_code) = UPPER($3)
		)`, assignmentID, model.GroupStateForming, code).Scan(&exists)
	return exists, err
}

// CreateWithMember inserts a forming group together with its founding
// member in one transaction. A Conflict is returned if the student
// already has a group for the assignment.
func (r *GroupRepository) CreateWithMember(ctx context.Context, g *model.SubmissionGroup, studentID int) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO submission_groups (course_id, assignment_id, state, join_code, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			g.CourseID, g.AssignmentID, g.State, g.JoinCode, g.CreatedBy,
		).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return classifyInsertError(err, g.AssignmentID)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO submission_group_members (group_id, assignment_id, student_id)
			 VALUES ($1, $2, $3)`,
			g.ID, g.AssignmentID, studentID); err != nil {
			return classifyInsertError(err, g.AssignmentID)
		}

		g.MemberCount = 1
		return nil
	})
}

// CreateLockedWithMembers inserts a locked group with a full member list
// in one transaction (predefined teams and individual workspaces).
func (r *GroupRepository) CreateLockedWithMembers(ctx context.Context, g *model.SubmissionGroup, memberIDs []int) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO submission_groups (course_id, assignment_id, state, join_code, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			g.CourseID, g.AssignmentID, model.GroupStateLocked, nil, g.CreatedBy,
		).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return classifyInsertError(err, g.AssignmentID)
		}

		for _, sid := range memberIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO submission_group_members (group_id, assignment_id, student_id)
				 VALUES ($1, $2, $3)`,
				g.ID, g.AssignmentID, sid); err != nil {
				return classifyInsertError(err, g.AssignmentID)
			}
		}

		g.State = model.GroupStateLocked
		g.MemberCount = len(memberIDs)
		return nil
	})
}

// AddMember atomically checks state, join code, and capacity, then inserts
// the membership. expectCode == nil skips code verification (staff adds).
func (r *GroupRepository) AddMember(ctx context.Context, groupID uuid.UUID, studentID int, expectCode *string, maxSize int) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		g, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}

		if g.State != model.GroupStateForming {
			return apperr.Conflict("group no longer accepts members",
				"group_id", groupID.String(),
				"state", string(g.State),
				"code", "TEAM_NOT_FORMING",
			)
		}
		if expectCode != nil {
			if g.JoinCode == nil || !strings.EqualFold(*g.JoinCode, *expectCode) {
				return apperr.NotFound("join code does not match",
					"group_id", groupID.String(),
					"code", "JOIN_CODE_MISMATCH",
				)
			}
		}
		if g.MemberCount >= maxSize {
			return apperr.Conflict("group is full",
				"group_id", groupID.String(),
				"max_group_size", fmt.Sprintf("%d", maxSize),
				"code", "TEAM_FULL",
			)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO submission_group_members (group_id, assignment_id, student_id)
			 VALUES ($1, $2, $3)`,
			groupID, g.AssignmentID, studentID); err != nil {
			return classifyInsertError(err, g.AssignmentID)
		}
		return nil
	})
}

// RemoveMember atomically removes the student's membership for an
// assignment. If the removed member was the last one, the group is
// deleted outright, not left empty. Returns the group id and whether the
// group was deleted.
func (r *GroupRepository) RemoveMember(ctx context.Context, assignmentID uuid.UUID, studentID int) (uuid.UUID, bool, error) {
	var groupID uuid.UUID
	var deleted bool

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT g.id FROM submission_groups g
			 JOIN submission_group_members m ON m.group_id = g.id
			 WHERE g.assignment_id = $1 AND m.student_id = $2
			 FOR UPDATE OF g`,
			assignmentID, studentID).Scan(&groupID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("no group membership for this assignment",
					"assignment_id", assignmentID.String(),
					"code", "NO_TEAM_FORMED",
				)
			}
			return err
		}

		g, err := lockGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if g.State != model.GroupStateForming {
			return apperr.Conflict("group no longer accepts changes",
				"group_id", groupID.String(),
				"state", string(g.State),
				"code", "TEAM_NOT_FORMING",
			)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM submission_group_members WHERE group_id = $1 AND student_id = $2`,
			groupID, studentID); err != nil {
			return err
		}

		if g.MemberCount <= 1 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM submission_groups WHERE id = $1`, groupID); err != nil {
				return err
			}
			deleted = true
		}
		return nil
	})
	return groupID, deleted, err
}

// LockGroups locks every forming group of the assignment. The planner
// callback runs inside the transaction on the locked snapshot, so the
// plan it produces cannot be invalidated by concurrent joins. Only the
// groups this transaction finalized (the forming snapshot plus any
// plan-created groups, minus dissolved ones) are returned for
// provisioning; groups locked by an earlier call are left untouched.
func (r *GroupRepository) LockGroups(
	ctx context.Context,
	assignmentID uuid.UUID,
	plan func(groups []model.GroupWithMembers) (model.TeamLockPlan, error),
) ([]model.GroupWithMembers, error) {
	var finalized []model.GroupWithMembers

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		groups, err := listFormingForUpdate(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return nil
		}

		p, err := plan(groups)
		if err != nil {
			return err
		}

		courseID, createdBy := groups[0].CourseID, groups[0].CreatedBy

		changed := make([]uuid.UUID, 0, len(groups)+len(p.NewGroups))
		for _, g := range groups {
			changed = append(changed, g.ID)
		}

		for _, mv := range p.Moves {
			if err := placeMember(ctx, tx, mv.ToGroupID, assignmentID, mv.StudentID); err != nil {
				return err
			}
		}

		for _, memberIDs := range p.NewGroups {
			var newID uuid.UUID
			if err := tx.QueryRow(ctx,
				`INSERT INTO submission_groups (course_id, assignment_id, state, join_code, created_by)
				 VALUES ($1, $2, $3, NULL, $4)
				 RETURNING id`,
				courseID, assignmentID, model.GroupStateForming, createdBy).Scan(&newID); err != nil {
				return err
			}
			for _, sid := range memberIDs {
				if err := placeMember(ctx, tx, newID, assignmentID, sid); err != nil {
					return err
				}
			}
			changed = append(changed, newID)
		}

		dissolved := make(map[uuid.UUID]bool, len(p.DeleteGroups))
		for _, gid := range p.DeleteGroups {
			if _, err := tx.Exec(ctx,
				`DELETE FROM submission_groups WHERE id = $1`, gid); err != nil {
				return err
			}
			dissolved[gid] = true
		}

		if _, err := tx.Exec(ctx,
			`UPDATE submission_groups SET state = $1, join_code = NULL, updated_at = CURRENT_TIMESTAMP
			 WHERE assignment_id = $2 AND state = $3`,
			model.GroupStateLocked, assignmentID, model.GroupStateForming); err != nil {
			return err
		}

		kept := changed[:0]
		for _, gid := range changed {
			if !dissolved[gid] {
				kept = append(kept, gid)
			}
		}
		finalized, err = listGroupsWithMembers(ctx, tx, kept)
		return err
	})
	return finalized, err
}

// ─── Internal helpers ──────────────────────────────────────────────────

func (r *GroupRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockGroup takes the row lock that serializes all membership mutation on
// a group, then reads a consistent member count.
func lockGroup(ctx context.Context, tx pgx.Tx, groupID uuid.UUID) (*model.SubmissionGroup, error) {
	g := &model.SubmissionGroup{}
	err := tx.QueryRow(ctx,
		`SELECT id, course_id, assignment_id, state, join_code, created_by, created_at, updated_at
		 FROM submission_groups WHERE id = $1 FOR UPDATE`, groupID,
	).Scan(&g.ID, &g.CourseID, &g.AssignmentID, &g.State, &g.JoinCode, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("submission group not found", "group_id", groupID.String())
		}
		return nil, err
	}

	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM submission_group_members WHERE group_id = $1`, groupID,
	).Scan(&g.MemberCount); err != nil {
		return nil, err
	}
	return g, nil
}

func listFormingForUpdate(ctx context.Context, tx pgx.Tx, assignmentID uuid.UUID) ([]model.GroupWithMembers, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, course_id, assignment_id, state, join_code, created_by, created_at, updated_at
		 FROM submission_groups
		 WHERE assignment_id = $1 AND state = $2
		 ORDER BY created_at, id
		 FOR UPDATE`,
		assignmentID, model.GroupStateForming)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.GroupWithMembers
	for rows.Next() {
		var g model.GroupWithMembers
		if err := rows.Scan(&g.ID, &g.CourseID, &g.AssignmentID, &g.State, &g.JoinCode, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		memberRows, err := tx.Query(ctx,
			`SELECT student_id FROM submission_group_members
			 WHERE group_id = $1 ORDER BY joined_at, student_id`, groups[i].ID)
		if err != nil {
			return nil, err
		}
		for memberRows.Next() {
			var sid int
			if err := memberRows.Scan(&sid); err != nil {
				memberRows.Close()
				return nil, err
			}
			groups[i].MemberIDs = append(groups[i].MemberIDs, sid)
		}
		memberRows.Close()
		if err := memberRows.Err(); err != nil {
			return nil, err
		}
		groups[i].MemberCount = len(groups[i].MemberIDs)
	}
	return groups, nil
}

func listGroupsWithMembers(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]model.GroupWithMembers, error) {
	rows, err := tx.Query(ctx,
		`SELECT g.id, g.course_id, g.assignment_id, g.state, g.join_code, g.created_by, g.created_at, g.updated_at,
			ARRAY(SELECT m.student_id FROM submission_group_members m
			      WHERE m.group_id = g.id ORDER BY m.joined_at, m.student_id)
		 FROM submission_groups g
		 WHERE g.id = ANY($1)
		 ORDER BY g.created_at, g.id`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.GroupWithMembers
	for rows.Next() {
		var g model.GroupWithMembers
		if err := rows.Scan(&g.ID, &g.CourseID, &g.AssignmentID, &g.State, &g.JoinCode, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt, &g.MemberIDs); err != nil {
			return nil, err
		}
		g.MemberCount = len(g.MemberIDs)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// placeMember puts a student into a group, whether or not a membership
// row already exists for the assignment. Auto-assignment moves students
// between groups and also places students who never formed one.
func placeMember(ctx context.Context, tx pgx.Tx, groupID, assignmentID uuid.UUID, studentID int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO submission_group_members (group_id, assignment_id, student_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (assignment_id, student_id) DO UPDATE SET group_id = EXCLUDED.group_id`,
		groupID, assignmentID, studentID)
	return err
}

// activeJoinCodeIdx is the partial unique index over the join codes of
// forming groups. A violation means another create claimed the code
// between the generator's check and this insert.
const activeJoinCodeIdx = "uq_submission_groups_active_join_code"

// classifyInsertError maps unique violations to Conflict: the join code
// index to a retryable JOIN_CODE_TAKEN, everything else to the
// one-group-per-student constraint. Non-unique errors propagate as-is.
func classifyInsertError(err error, assignmentID uuid.UUID) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	if pgErr.ConstraintName == activeJoinCodeIdx {
		return apperr.Conflict("join code already in use by a forming group",
			"assignment_id", assignmentID.String(),
			"code", "JOIN_CODE_TAKEN",
		)
	}
	return apperr.Conflict("student already has a group for this assignment",
		"assignment_id", assignmentID.String(),
		"code", "ALREADY_IN_TEAM",
	)
}
