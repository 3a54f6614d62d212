package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitclass/gitclass-backend/internal/apperr"
)

func renderAppError(t *testing.T, err error) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	FromAppError(c, err)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestFromAppErrorClassMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrCode
	}{
		{"forbidden", apperr.Forbidden("nope"), http.StatusForbidden, ErrForbidden},
		{"not found", apperr.NotFound("gone"), http.StatusNotFound, ErrNotFound},
		{"conflict", apperr.Conflict("dup"), http.StatusConflict, ErrConflict},
		{"bad request", apperr.BadRequest("bad"), http.StatusBadRequest, ErrInvalidPayload},
		{"internal", apperr.Internal("boom", nil), http.StatusInternalServerError, ErrInternal},
		{"unclassified", errors.New("plain"), http.StatusInternalServerError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := renderAppError(t, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, GetMessage(tt.wantCode), body.Error.Message)
		})
	}
}

func TestFromAppErrorMetaCodeRefinement(t *testing.T) {
	err := apperr.Conflict("group is full",
		"group_id", "g-1",
		"code", "TEAM_FULL",
	)

	status, body := renderAppError(t, err)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, ErrTeamFull, body.Error.Code)
	assert.Equal(t, GetMessage(ErrTeamFull), body.Error.Message)

	// The refined code moves into the top-level code; it must not leak as
	// a field detail.
	assert.Equal(t, "g-1", body.Error.Fields["group_id"])
	assert.NotContains(t, body.Error.Fields, "code")
}

func TestGetMessageCoversAllCodes(t *testing.T) {
	codes := []ErrCode{
		ErrInvalidCredentials, ErrTokenRequired, ErrTokenInvalid, ErrTokenExpired,
		ErrForbidden, ErrInsufficientRole, ErrNotCourseMember, ErrActionDisabled, ErrFormationDeadline,
		ErrValidation, ErrInvalidID, ErrInvalidPayload, ErrInvalidRules,
		ErrNotFound, ErrConflict, ErrDependencyExists,
		ErrAlreadyInTeam, ErrTeamFull, ErrTeamNotForming, ErrIndividualOnly, ErrNoTeamFormed, ErrJoinCodeMismatch,
		ErrRateLimitExceeded, ErrInternal,
	}
	fallback := GetMessage(ErrCode("NOPE"))
	for _, code := range codes {
		assert.NotEqual(t, fallback, GetMessage(code), "missing message for %s", code)
	}
}
