package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/handler"
	"github.com/gitclass/gitclass-backend/internal/middleware"
	"github.com/gitclass/gitclass-backend/internal/model"
	"github.com/gitclass/gitclass-backend/internal/response"
	"github.com/gitclass/gitclass-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Course     *handler.CourseHandler
	Assignment *handler.AssignmentHandler
	Team       *handler.TeamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
	}

	// ─── 2. Courses ────────────────────────────────────────────────────
	courses := router.Group("/api/v1/courses")
	courses.Use(middleware.RequireAuth(authService))
	{
		courses.GET("", handlers.Course.List)
		courses.POST("", middleware.RequireAdmin(), handlers.Course.Create)

		course := courses.Group("/:course_id")
		{
			course.GET("", handlers.Course.Get)
			course.PUT("", handlers.Course.Update)
			course.DELETE("", handlers.Course.Delete)

			// Roster management. Fine-grained checks (owner for the owner
			// role) live in the service; the gates here are the floor.
			course.GET("/members",
				middleware.RequireCourseRole(model.CourseRoleTutor), handlers.Course.ListMembers)
			course.PUT("/members/:user_id",
				middleware.RequireCourseRole(model.CourseRoleMaintainer), handlers.Course.SetMember)
			course.DELETE("/members/:user_id",
				middleware.RequireCourseRole(model.CourseRoleMaintainer), handlers.Course.RemoveMember)

			// ─── 3. Assignments ────────────────────────────────────────
			assignments := course.Group("/assignments")
			{
				assignments.GET("", handlers.Assignment.List)
				assignments.POST("",
					middleware.RequireCourseRole(model.CourseRoleLecturer), handlers.Assignment.Create)

				assignment := assignments.Group("/:assignment_id")
				{
					assignment.GET("", handlers.Assignment.Get)
					assignment.PUT("",
						middleware.RequireCourseRole(model.CourseRoleLecturer), handlers.Assignment.Update)
					assignment.GET("/team-rules", handlers.Assignment.Rules)

					// ─── 4. Teams ──────────────────────────────────────
					// Course membership is the floor for every team
					// route; the service re-checks with the assignment
					// in hand.
					teams := assignment.Group("/teams",
						middleware.RequireCourseRole(model.CourseRoleStudent))
					{
						teams.GET("",
							middleware.RequireCourseRole(model.CourseRoleTutor), handlers.Team.ListAll)
						teams.GET("/available", handlers.Team.ListAvailable)
						teams.GET("/mine", handlers.Team.Mine)
						teams.POST("", handlers.Team.Create)
						teams.POST("/:group_id/join", handlers.Team.Join)
						teams.POST("/leave", handlers.Team.Leave)
						teams.POST("/lock",
							middleware.RequireCourseRole(model.CourseRoleLecturer), handlers.Team.Lock)
						teams.POST("/predefined",
							middleware.RequireCourseRole(model.CourseRoleLecturer), handlers.Team.CreatePredefined)
					}

					assignment.POST("/workspace",
						middleware.RequireCourseRole(model.CourseRoleStudent), handlers.Team.EnsureWorkspace)
				}
			}
		}
	}

	return router
}
