package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gitclass/gitclass-backend/internal/middleware"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/response"
	"github.com/gitclass/gitclass-backend/internal/service"
	"github.com/gitclass/gitclass-backend/internal/validator"
)

type TeamHandler struct {
	groupService *service.GroupService
}

func NewTeamHandler(groupService *service.GroupService) *TeamHandler {
	return &TeamHandler{groupService: groupService}
}

// ListAll godoc
// GET /api/v1/courses/:course_id/assignments/:assignment_id/teams
func (h *TeamHandler) ListAll(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	teams, err := h.groupService.ListTeams(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	if teams == nil {
		teams = []model.GroupWithMembers{}
	}
	response.Success(c, http.StatusOK, gin.H{"teams": teams})
}

// ListAvailable godoc
// GET /api/v1/courses/:course_id/assignments/:assignment_id/teams/available
func (h *TeamHandler) ListAvailable(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	teams, err := h.groupService.ListAvailable(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	if teams == nil {
		teams = []model.SubmissionGroup{}
	}
	response.Success(c, http.StatusOK, gin.H{"teams": teams})
}

// Mine godoc
// GET /api/v1/courses/:course_id/assignments/:assignment_id/teams/mine
func (h *TeamHandler) Mine(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	team, err := h.groupService.GetMyGroup(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"team": team})
}

// Create godoc
// POST /api/v1/courses/:course_id/assignments/:assignment_id/teams
func (h *TeamHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	team, err := h.groupService.CreateTeam(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"team": team})
}

// Join godoc
// POST /api/v1/courses/:course_id/assignments/:assignment_id/teams/:group_id/join
func (h *TeamHandler) Join(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}
	groupID, ok := parseUUIDParam(c, "group_id")
	if !ok {
		return
	}

	var req model.JoinTeamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	team, err := h.groupService.JoinTeam(c.Request.Context(), p, courseID, assignmentID, groupID, req.JoinCode)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"team": team})
}

// Leave godoc
// POST /api/v1/courses/:course_id/assignments/:assignment_id/teams/leave
func (h *TeamHandler) Leave(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	if err := h.groupService.LeaveTeam(c.Request.Context(), p, courseID, assignmentID); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "left team successfully"})
}

// Lock godoc
// POST /api/v1/courses/:course_id/assignments/:assignment_id/teams/lock
func (h *TeamHandler) Lock(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	if err := h.groupService.LockTeams(c.Request.Context(), p, courseID, assignmentID); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "teams locked successfully"})
}

// CreatePredefined godoc
// POST /api/v1/courses/:course_id/assignments/:assignment_id/teams/predefined
func (h *TeamHandler) CreatePredefined(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	var req model.CreatePredefinedTeamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	team, err := h.groupService.CreatePredefinedTeam(c.Request.Context(), p, courseID, assignmentID, req.MemberIDs)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"team": team})
}

// EnsureWorkspace godoc
// POST /api/v1/courses/:course_id/assignments/:assignment_id/workspace
func (h *TeamHandler) EnsureWorkspace(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	workspace, err := h.groupService.EnsureIndividualWorkspace(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"workspace": workspace})
}
