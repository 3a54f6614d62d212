package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gitclass/gitclass-backend/internal/apperr"
)

const (
	joinCodeLength   = 6
	joinCodeAttempts = 5
)

// joinCodeStore is the slice of the group store the generator needs.
type joinCodeStore interface {
	ActiveJoinCodeExists(ctx context.Context, assignmentID uuid.UUID, code string) (bool, error)
}

// JoinCodeGenerator mints short shareable codes for forming groups.
// Codes are uppercase hex and only need to be unique among the forming
// groups of a single assignment, so six characters is plenty.
type JoinCodeGenerator struct {
	groups joinCodeStore
}

// NewJoinCodeGenerator creates a new JoinCodeGenerator.
func NewJoinCodeGenerator(groups joinCodeStore) *JoinCodeGenerator {
	return &JoinCodeGenerator{groups: groups}
}

// Generate returns a code unused by any forming group of the assignment.
// The attempt budget is bounded; exhausting it is reported as a Conflict
// instead of looping forever on a pathologically full code space. The
// check here is a fast path: the unique index on active codes is the
// backstop, and the insert path retries when it trips.
func (g *JoinCodeGenerator) Generate(ctx context.Context, assignmentID uuid.UUID) (string, error) {
	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		exists, err := g.groups.ActiveJoinCodeExists(ctx, assignmentID, code)
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperr.Conflict("could not allocate a unique join code",
		"assignment_id", assignmentID.String(),
	)
}

func randomCode() (string, error) {
	buf := make([]byte, joinCodeLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
