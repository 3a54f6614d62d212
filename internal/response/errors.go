package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gitclass/gitclass-backend/internal/apperr"
)

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrInsufficientRole  ErrCode = "INSUFFICIENT_COURSE_ROLE"
	ErrNotCourseMember   ErrCode = "NOT_COURSE_MEMBER"
	ErrActionDisabled    ErrCode = "TEAM_ACTION_DISABLED"
	ErrFormationDeadline ErrCode = "FORMATION_DEADLINE_PASSED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidRules   ErrCode = "INVALID_TEAM_RULES"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Teams ─────────────────────────────────────────────────────────
	ErrAlreadyInTeam    ErrCode = "ALREADY_IN_TEAM"
	ErrTeamFull         ErrCode = "TEAM_FULL"
	ErrTeamNotForming   ErrCode = "TEAM_NOT_FORMING"
	ErrIndividualOnly   ErrCode = "INDIVIDUAL_ONLY_ASSIGNMENT"
	ErrNoTeamFormed     ErrCode = "NO_TEAM_FORMED"
	ErrJoinCodeMismatch ErrCode = "JOIN_CODE_MISMATCH"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrInsufficientRole:
		return "Your course role is not sufficient for this action."
	case ErrNotCourseMember:
		return "You are not a member of this course."
	case ErrActionDisabled:
		return "This team action is disabled by the assignment's rules."
	case ErrFormationDeadline:
		return "The team formation deadline has passed."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidRules:
		return "The team formation configuration is inconsistent."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrDependencyExists:
		return "The resource cannot be deleted because it is still in use."

	// ─── Teams ─────────────────────────────────────────────────────────
	case ErrAlreadyInTeam:
		return "You already belong to a team for this assignment."
	case ErrTeamFull:
		return "This team has no remaining slots."
	case ErrTeamNotForming:
		return "This team is locked and no longer accepts changes."
	case ErrIndividualOnly:
		return "This assignment is individual-only; team operations are not available."
	case ErrNoTeamFormed:
		return "No team has been formed for this assignment yet."
	case ErrJoinCodeMismatch:
		return "The join code does not match any forming team."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

// FromAppError maps a classified business error onto an HTTP status and
// response code, carrying the error's structured context as field details.
// Unclassified errors map to 500 INTERNAL_ERROR.
func FromAppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := ErrInternal

	switch apperr.ClassOf(err) {
	case apperr.ClassForbidden:
		status, code = http.StatusForbidden, ErrForbidden
	case apperr.ClassNotFound:
		status, code = http.StatusNotFound, ErrNotFound
	case apperr.ClassConflict:
		status, code = http.StatusConflict, ErrConflict
	case apperr.ClassBadRequest:
		status, code = http.StatusBadRequest, ErrInvalidPayload
	}

	if mapped, ok := codeFromMeta(err); ok {
		code = mapped
	}

	fields := make(map[string]string)
	for k, v := range apperr.MetaOf(err) {
		if k == "code" {
			continue
		}
		fields[k] = v
	}
	if len(fields) > 0 {
		FailWithFields(c, status, code, fields)
		return
	}
	Fail(c, status, code)
}

// codeFromMeta refines the generic class code using the "code" metadata
// key services attach for team-specific failures.
func codeFromMeta(err error) (ErrCode, bool) {
	meta := apperr.MetaOf(err)
	if meta == nil {
		return "", false
	}
	raw, ok := meta["code"]
	if !ok {
		return "", false
	}
	return ErrCode(raw), true
}
