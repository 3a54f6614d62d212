package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/repository"
)

// RuleResolver produces the effective team formation rules for an
// assignment by overlaying the course and assignment configs on the
// platform defaults. Resolved rules are cached in Redis and the cache
// entry is dropped whenever either config changes.
type RuleResolver struct {
	cfg         *config.Config
	rdb         *redis.Client
	courses     *repository.CourseRepository
	assignments *repository.AssignmentRepository
}

// NewRuleResolver creates a new RuleResolver.
func NewRuleResolver(
	cfg *config.Config,
	rdb *redis.Client,
	courses *repository.CourseRepository,
	assignments *repository.AssignmentRepository,
) *RuleResolver {
	return &RuleResolver{cfg: cfg, rdb: rdb, courses: courses, assignments: assignments}
}

// Resolve returns the effective rules for the assignment.
func (r *RuleResolver) Resolve(ctx context.Context, assignment *model.Assignment) (*model.TeamFormationRules, error) {
	cacheKey := config.CacheKey.AssignmentRulesKey(assignment.ID.String())

	cached, err := r.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var rules model.TeamFormationRules
		if err := json.Unmarshal([]byte(cached), &rules); err == nil {
			return &rules, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get rules cache: %w", err)
	}

	course, err := r.courses.GetByID(ctx, assignment.CourseID)
	if err != nil {
		return nil, err
	}

	rules, err := model.ResolveTeamFormationRules(course.TeamConfig, assignment.TeamConfig, assignment.ReleasedAt)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	if err := r.rdb.Set(ctx, cacheKey, payload, r.cfg.ClaimsCacheTTL).Err(); err != nil {
		return nil, fmt.Errorf("set rules cache: %w", err)
	}
	return &rules, nil
}

// Invalidate drops the cached rules of one assignment.
func (r *RuleResolver) Invalidate(ctx context.Context, assignmentID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.AssignmentRulesKey(assignmentID.String())).Err()
}

// InvalidateCourse drops cached rules for every assignment of a course,
// used when the course-level config changes.
func (r *RuleResolver) InvalidateCourse(ctx context.Context, courseID uuid.UUID) error {
	assignments, err := r.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if err := r.rdb.Del(ctx, config.CacheKey.AssignmentRulesKey(a.ID.String())).Err(); err != nil {
			return err
		}
	}
	return nil
}
