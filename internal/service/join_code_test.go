package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitclass/gitclass-backend/internal/apperr"
)

type stubCodeStore struct {
	exists bool
	calls  int
}

func (s *stubCodeStore) ActiveJoinCodeExists(ctx context.Context, assignmentID uuid.UUID, code string) (bool, error) {
	s.calls++
	return s.exists, nil
}

func TestJoinCodeGeneratorFormat(t *testing.T) {
	gen := NewJoinCodeGenerator(&stubCodeStore{})
	pattern := regexp.MustCompile(`^[0-9A-F]{6}$`)

	for i := 0; i < 50; i++ {
		code, err := gen.Generate(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.True(t, pattern.MatchString(code), "unexpected code %q", code)
	}
}

func TestJoinCodeGeneratorRetryExhaustion(t *testing.T) {
	store := &stubCodeStore{exists: true}
	gen := NewJoinCodeGenerator(store)

	code, err := gen.Generate(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Empty(t, code)
	assert.Equal(t, apperr.ClassConflict, apperr.ClassOf(err))
	assert.Equal(t, joinCodeAttempts, store.calls)
}
