package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/handler"
	"github.com/stemsi/vigil-backend/internal/middleware"
	"github.com/stemsi/vigil-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam       *handler.ExamHandler
	Assignment *handler.AssignmentHandler
	Attendance *handler.AttendanceHandler
	Monitor    *handler.MonitorHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
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

	// Rate limiter for mutation-heavy routes (120 requests per minute
	// per IP; transitions arrive in bursts when a room is admitted).
	mutationLimiter := middleware.NewRateLimiter(120, time.Minute)

	// ─── 1. Exams ──────────────────────────────────────────────────────
	exams := router.Group("/api/v1/exams")
	{
		exams.GET("", handlers.Exam.ListExams)
		exams.GET("/:id", handlers.Exam.GetExam)
		exams.GET("/:id/assignments", handlers.Assignment.ListAssignments)
		exams.GET("/:id/students/:student_id/remaining", handlers.Attendance.GetRemaining)
		exams.GET("/:id/monitor", handlers.Monitor.MonitorExamSSE)

		mutating := exams.Group("")
		mutating.Use(mutationLimiter.Middleware())
		{
			mutating.POST("", handlers.Exam.CreateExam)
			mutating.POST("/:id/activate", handlers.Exam.ActivateExam)
			mutating.POST("/:id/finish", handlers.Exam.FinishExam)
			mutating.POST("/:id/extra-time", handlers.Exam.GrantExtraTime)
			mutating.PUT("/:id/schedule", handlers.Exam.RescheduleExam)
		}
	}

	// ─── 2. Room assignments ───────────────────────────────────────────
	assignments := router.Group("/api/v1/assignments")
	{
		assignments.GET("/:id/roster", handlers.Attendance.GetRoster)
		assignments.POST("/check", handlers.Assignment.CheckConflicts)

		mutating := assignments.Group("")
		mutating.Use(mutationLimiter.Middleware())
		{
			mutating.POST("", handlers.Assignment.CreateAssignment)
			mutating.PUT("/:id", handlers.Assignment.UpdateAssignment)
			mutating.DELETE("/:id", handlers.Assignment.DeleteAssignment)
			mutating.POST("/bulk-import", handlers.Assignment.BulkImport)
			mutating.POST("/:id/roster", handlers.Attendance.Enroll)
		}
	}

	// ─── 3. Attendance ─────────────────────────────────────────────────
	attendance := router.Group("/api/v1/attendance")
	{
		attendance.GET("/:id/breaks", handlers.Attendance.ListBreaks)

		mutating := attendance.Group("")
		mutating.Use(mutationLimiter.Middleware())
		{
			mutating.POST("/:id/transition", handlers.Attendance.Transition)
		}
	}

	// ─── 4. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exams/:exam_id/students/:student_id/countdown", handlers.WS.CountdownStream)
	}

	return router
}
