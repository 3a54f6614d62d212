package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int                        { return &v }
func boolPtr(v bool) *bool                     { return &v }
func timePtr(v time.Time) *time.Time           { return &v }
func modePtr(v TeamFormationMode) *TeamFormationMode { return &v }

func TestResolveTeamFormationRulesDefaults(t *testing.T) {
	rules, err := ResolveTeamFormationRules(nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, TeamModeSelfOrganized, rules.Mode)
	assert.Equal(t, 1, rules.MaxGroupSize)
	assert.Equal(t, 1, rules.MinGroupSize)
	assert.Nil(t, rules.FormationDeadline)
	assert.True(t, rules.AllowStudentCreate)
	assert.True(t, rules.AllowStudentJoin)
	assert.True(t, rules.AllowStudentLeave)
	assert.False(t, rules.AutoAssignUnmatched)
	assert.True(t, rules.LockAtDeadline)
	assert.False(t, rules.RequireApproval)
	assert.False(t, rules.TeamsEnabled())
}

func TestResolveTeamFormationRulesFieldByField(t *testing.T) {
	course := &TeamFormationConfig{
		MaxGroupSize:       intPtr(4),
		MinGroupSize:       intPtr(2),
		AllowStudentCreate: boolPtr(false),
		Mode:               modePtr(TeamModeHybrid),
	}
	// The assignment only overrides max size; every other course value
	// must survive intact.
	assignment := &TeamFormationConfig{
		MaxGroupSize: intPtr(3),
	}

	rules, err := ResolveTeamFormationRules(course, assignment, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, rules.MaxGroupSize)
	assert.Equal(t, 2, rules.MinGroupSize)
	assert.False(t, rules.AllowStudentCreate)
	assert.Equal(t, TeamModeHybrid, rules.Mode)
	assert.True(t, rules.AllowStudentJoin, "untouched fields keep defaults")
	assert.True(t, rules.TeamsEnabled())
}

func TestResolveTeamFormationRulesDeadline(t *testing.T) {
	released := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	absolute := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		course     *TeamFormationConfig
		assignment *TeamFormationConfig
		releasedAt *time.Time
		want       *time.Time
	}{
		{
			name:       "absolute deadline used directly",
			assignment: &TeamFormationConfig{FormationDeadline: timePtr(absolute)},
			releasedAt: timePtr(released),
			want:       timePtr(absolute),
		},
		{
			name:       "offset anchored to release time",
			assignment: &TeamFormationConfig{FormationDeadlineOffsetHours: intPtr(48)},
			releasedAt: timePtr(released),
			want:       timePtr(released.Add(48 * time.Hour)),
		},
		{
			name: "absolute wins over offset across levels",
			course: &TeamFormationConfig{
				FormationDeadlineOffsetHours: intPtr(24),
			},
			assignment: &TeamFormationConfig{
				FormationDeadline: timePtr(absolute),
			},
			releasedAt: timePtr(released),
			want:       timePtr(absolute),
		},
		{
			name:       "course absolute beats assignment offset",
			course:     &TeamFormationConfig{FormationDeadline: timePtr(absolute)},
			assignment: &TeamFormationConfig{FormationDeadlineOffsetHours: intPtr(24)},
			releasedAt: timePtr(released),
			want:       timePtr(absolute),
		},
		{
			name:       "offset without release time yields no deadline",
			assignment: &TeamFormationConfig{FormationDeadlineOffsetHours: intPtr(24)},
			want:       nil,
		},
		{
			name: "assignment offset overrides course offset",
			course: &TeamFormationConfig{
				FormationDeadlineOffsetHours: intPtr(24),
			},
			assignment: &TeamFormationConfig{
				FormationDeadlineOffsetHours: intPtr(72),
			},
			releasedAt: timePtr(released),
			want:       timePtr(released.Add(72 * time.Hour)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ResolveTeamFormationRules(tt.course, tt.assignment, tt.releasedAt)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, rules.FormationDeadline)
			} else {
				require.NotNil(t, rules.FormationDeadline)
				assert.True(t, tt.want.Equal(*rules.FormationDeadline),
					"want %v, got %v", tt.want, rules.FormationDeadline)
			}
		})
	}
}

func TestResolveTeamFormationRulesInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TeamFormationConfig
	}{
		{"zero max size", &TeamFormationConfig{MaxGroupSize: intPtr(0)}},
		{"min above max", &TeamFormationConfig{MaxGroupSize: intPtr(2), MinGroupSize: intPtr(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveTeamFormationRules(nil, tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestTeamFormationRulesDeadlinePassed(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	var rules TeamFormationRules
	assert.False(t, rules.DeadlinePassed(now), "no deadline never passes")

	rules.FormationDeadline = timePtr(now.Add(time.Hour))
	assert.False(t, rules.DeadlinePassed(now))

	rules.FormationDeadline = timePtr(now.Add(-time.Hour))
	assert.True(t, rules.DeadlinePassed(now))
}
