package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/response"
	"github.com/stemsi/vigil-backend/internal/schedule"
	"github.com/stemsi/vigil-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams an exam's live state to invigilation dashboards
// over SSE: an initial roster snapshot, then every submission and
// advisory event the engine publishes, plus periodic status refreshes.
type MonitorHandler struct {
	rdb               *redis.Client
	examService       *service.ExamService
	assignmentService *service.AssignmentService
	attendanceService *service.AttendanceService
	log               zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	assignmentService *service.AssignmentService,
	attendanceService *service.AttendanceService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:               rdb,
		examService:       examService,
		assignmentService: assignmentService,
		attendanceService: attendanceService,
		log:               log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/exams/:id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	// SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	h.sendSnapshot(c, reqCtx, exam)

	// Forward the exam's live events from Redis Pub/Sub.
	channelName := config.CacheKey.ExamEventsChannel(examID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Monitor attached to SSE stream")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Monitor detached from SSE stream")
			return

		case msg := <-ch:
			// Forward the raw JSON payload unparsed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, exam)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot gathers the current roster of every room of the exam and
// writes one SSE snapshot event. Remaining seconds are recomputed from
// the window at send time.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, exam *model.Exam) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	// Re-read the exam so an extra-time grant shows up in the refresh.
	if current, err := h.examService.GetByID(ctx, exam.ID); err == nil {
		exam = current
	}

	assignments, err := h.assignmentService.ListByExam(ctx, exam.ID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch assignments for snapshot")
		return
	}

	now := time.Now()
	totalPresent := 0
	totalOnBreak := 0
	totalSubmitted := 0

	rooms := make([]map[string]interface{}, 0, len(assignments))
	for i := range assignments {
		a := assignments[i]
		roster, err := h.attendanceService.Roster(ctx, a.ID)
		if err != nil {
			h.log.Warn().Err(err).Str("assignment_id", a.ID.String()).Msg("Failed to fetch roster for snapshot")
			continue
		}

		students := make([]map[string]interface{}, 0, len(roster))
		for j := range roster {
			entry := roster[j]
			switch entry.Status {
			case model.AttendancePresent:
				totalPresent++
			case model.AttendanceOnBreak:
				totalOnBreak++
			case model.AttendanceSubmitted:
				totalSubmitted++
			}

			students = append(students, map[string]interface{}{
				"attendance_id":     entry.ID,
				"student_id":        entry.StudentID,
				"name":              entry.StudentName,
				"status":            entry.Status,
				"check_in_time":     entry.CheckInTime,
				"check_out_time":    entry.CheckOutTime,
				"remaining_seconds": schedule.RemainingSeconds(now, exam.StartTime, exam.DurationMinutes, exam.ExtraTimeMinutes, entry.ExtensionPercent),
			})
		}

		rooms = append(rooms, map[string]interface{}{
			"assignment_id": a.ID,
			"room_number":   a.RoomNumber,
			"students":      students,
		})
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"exam": map[string]interface{}{
				"id":                 exam.ID.String(),
				"title":              exam.Title,
				"status":             exam.Status,
				"start_time":         exam.StartTime,
				"duration_minutes":   exam.DurationMinutes,
				"extra_time_minutes": exam.ExtraTimeMinutes,
			},
			"stats": map[string]interface{}{
				"total_present":   totalPresent,
				"total_on_break":  totalOnBreak,
				"total_submitted": totalSubmitted,
			},
			"rooms": rooms,
		},
	})
	c.Writer.Flush()
}
