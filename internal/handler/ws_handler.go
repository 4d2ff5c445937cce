package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/schedule"
	"github.com/stemsi/vigil-backend/internal/service"
	ws "github.com/stemsi/vigil-backend/internal/websocket"
)

const (
	tickInterval          = time.Second
	statusRefreshInterval = 5 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a student's personal countdown over WebSocket.
type WSHandler struct {
	examService       *service.ExamService
	attendanceService *service.AttendanceService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.ExamService, attendanceService *service.AttendanceService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService:       examService,
		attendanceService: attendanceService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// CountdownStream godoc
// WS /ws/v1/exams/:exam_id/students/:student_id/countdown
// Pushes a tick every second with the student's derived remaining time
// and current attendance status. The window comes from the Redis cache
// (PostgreSQL fallback), so an extra-time grant reaches the client on
// the next tick.
func (h *WSHandler) CountdownStream(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}
	studentID, err := uuid.Parse(c.Param("student_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	record, extensionPercent, err := h.attendanceService.Sitting(ctx, examID, studentID)
	if err != nil {
		ws.WriteError(conn, "no attendance record for this exam")
		return
	}

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Countdown stream connected")

	// Drain client messages so closes are seen. The server is the only
	// writer; ticks double as keepalive.
	go h.readLoop(conn, cancel, wsLog)

	status := record.Status

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	refreshTicker := time.NewTicker(statusRefreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Countdown stream closed")
			return

		case <-refreshTicker.C:
			// The status lives in PostgreSQL only; a sweep or an
			// invigilator can change it behind this stream's back.
			fresh, _, err := h.attendanceService.Sitting(ctx, examID, studentID)
			if err != nil {
				wsLog.Warn().Err(err).Msg("Status refresh failed")
				continue
			}
			status = fresh.Status

		case now := <-ticker.C:
			window, err := h.examService.GetWindow(ctx, examID)
			if err != nil {
				wsLog.Warn().Err(err).Msg("Window lookup failed")
				continue
			}

			remaining := schedule.RemainingSeconds(now, time.Unix(window.StartUnix, 0),
				window.DurationMinutes, window.ExtraTimeMinutes, extensionPercent)

			if status == model.AttendanceSubmitted {
				ws.WriteTyped(conn, ws.SubmittedResponse{
					Event:  ws.EventSubmitted,
					Status: string(status),
				})
				return
			}

			if err := ws.WriteTyped(conn, ws.TickResponse{
				Event:            ws.EventTick,
				RemainingSeconds: remaining,
				Status:           string(status),
			}); err != nil {
				wsLog.Debug().Err(err).Msg("Tick write failed")
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, wsLog zerolog.Logger) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
	}
}
