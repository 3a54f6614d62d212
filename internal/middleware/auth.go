package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/response"
	"github.com/gitclass/gitclass-backend/internal/service"
)

const (
	// ContextKeyPrincipal is the Gin context key for the authenticated principal.
	ContextKeyPrincipal = "principal"
)

// RequireAuth validates the JWT from the Authorization header and attaches
// the authorization snapshot as a Principal. The snapshot comes from the
// claims cache, so role edits show up within the cache TTL at the latest.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		tokenClaims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		claims, err := authService.LoadClaims(c.Request.Context(), tokenClaims.UserID)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyPrincipal, model.NewPrincipal(claims))
		c.Next()
	}
}

// RequireAdmin rejects non-admin principals. Mount after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !p.IsAdmin() {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequireCourseRole gates a route group on the caller's role in the
// course named by the :course_id path param. Admins always pass.
func RequireCourseRole(required model.CourseRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		courseID, err := uuid.Parse(c.Param("course_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		if p.IsAdmin() || p.HasCourseRole(courseID, required) {
			c.Next()
			return
		}

		if _, member := p.CourseRole(courseID); !member {
			response.AbortFail(c, http.StatusForbidden, response.ErrNotCourseMember)
			return
		}
		response.AbortFail(c, http.StatusForbidden, response.ErrInsufficientRole)
	}
}

// GetPrincipal retrieves the authenticated principal from the Gin context.
func GetPrincipal(c *gin.Context) *model.Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, ok := val.(*model.Principal)
	if !ok {
		return nil
	}
	return p
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}

