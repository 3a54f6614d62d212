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

type AssignmentHandler struct {
	assignmentService *service.AssignmentService
}

func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// List godoc
// GET /api/v1/courses/:course_id/assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	assignments, err := h.assignmentService.List(c.Request.Context(), p, courseID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}

// Get godoc
// GET /api/v1/courses/:course_id/assignments/:assignment_id
func (h *AssignmentHandler) Get(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	assignment, err := h.assignmentService.Get(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// Create godoc
// POST /api/v1/courses/:course_id/assignments
func (h *AssignmentHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.assignmentService.Create(c.Request.Context(), p, courseID, &req)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"assignment": assignment})
}

// Update godoc
// PUT /api/v1/courses/:course_id/assignments/:assignment_id
func (h *AssignmentHandler) Update(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	var req model.UpdateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.assignmentService.Update(c.Request.Context(), p, courseID, assignmentID, &req)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// Rules godoc
// GET /api/v1/courses/:course_id/assignments/:assignment_id/team-rules
func (h *AssignmentHandler) Rules(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	assignmentID, ok := parseUUIDParam(c, "assignment_id")
	if !ok {
		return
	}

	rules, err := h.assignmentService.Rules(c.Request.Context(), p, courseID, assignmentID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rules": rules})
}
