package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gitclass/gitclass-backend/internal/middleware"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/response"
	"github.com/gitclass/gitclass-backend/internal/service"
	"github.com/gitclass/gitclass-backend/internal/validator"
)

type CourseHandler struct {
	courseService *service.CourseService
}

func NewCourseHandler(courseService *service.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

// List godoc
// GET /api/v1/courses
func (h *CourseHandler) List(c *gin.Context) {
	p := middleware.GetPrincipal(c)

	courses, err := h.courseService.ListMine(c.Request.Context(), p)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	response.Success(c, http.StatusOK, gin.H{"courses": courses})
}

// Get godoc
// GET /api/v1/courses/:course_id
func (h *CourseHandler) Get(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	course, err := h.courseService.Get(c.Request.Context(), p, courseID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// Create godoc
// POST /api/v1/courses
func (h *CourseHandler) Create(c *gin.Context) {
	p := middleware.GetPrincipal(c)

	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), p, &req)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"course": course})
}

// Update godoc
// PUT /api/v1/courses/:course_id
func (h *CourseHandler) Update(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	var req model.UpdateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Update(c.Request.Context(), p, courseID, &req)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// Delete godoc
// DELETE /api/v1/courses/:course_id
func (h *CourseHandler) Delete(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	if err := h.courseService.Delete(c.Request.Context(), p, courseID); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "course deleted successfully"})
}

// ListMembers godoc
// GET /api/v1/courses/:course_id/members
func (h *CourseHandler) ListMembers(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}

	members, err := h.courseService.ListMembers(c.Request.Context(), p, courseID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	if members == nil {
		members = []model.CourseMemberDetail{}
	}
	response.Success(c, http.StatusOK, gin.H{"members": members})
}

// SetMember godoc
// PUT /api/v1/courses/:course_id/members/:user_id
func (h *CourseHandler) SetMember(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SetMemberRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.courseService.SetMember(c.Request.Context(), p, courseID, userID, req.Role); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "member role set successfully"})
}

// RemoveMember godoc
// DELETE /api/v1/courses/:course_id/members/:user_id
func (h *CourseHandler) RemoveMember(c *gin.Context) {
	p := middleware.GetPrincipal(c)
	courseID, ok := parseUUIDParam(c, "course_id")
	if !ok {
		return
	}
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.courseService.RemoveMember(c.Request.Context(), p, courseID, userID); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "member removed successfully"})
}

// parseUUIDParam parses a UUID path param, failing the request on bad input.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
