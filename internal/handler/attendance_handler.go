package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/repository"
	"github.com/stemsi/vigil-backend/internal/response"
	"github.com/stemsi/vigil-backend/internal/service"
	"github.com/stemsi/vigil-backend/internal/validator"
)

// AttendanceHandler exposes the attendance timer engine: roster views,
// admissions, breaks, submissions and the per-student countdown.
type AttendanceHandler struct {
	attendanceService *service.AttendanceService
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(attendanceService *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

// GetRoster godoc
// GET /api/v1/assignments/:id/roster
func (h *AttendanceHandler) GetRoster(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	roster, err := h.attendanceService.Roster(c.Request.Context(), assignmentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	if roster == nil {
		roster = []repository.RosterEntry{}
	}
	response.Success(c, http.StatusOK, gin.H{"roster": roster})
}

// Enroll godoc
// POST /api/v1/assignments/:id/roster
// Registers a student into the room with a defaulted ABSENT record.
func (h *AttendanceHandler) Enroll(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.EnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	record, err := h.attendanceService.Enroll(c.Request.Context(), assignmentID, req.StudentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attendance": record})
}

// Transition godoc
// POST /api/v1/attendance/:id/transition
// Applies admit / break_start / break_end / submit. An out-of-order
// transition is a no-op reported with changed=false and a notice, not an
// error.
func (h *AttendanceHandler) Transition(c *gin.Context) {
	attendanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.TransitionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attendanceService.Transition(c.Request.Context(), attendanceID, req.Action, req.Reason)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ListBreaks godoc
// GET /api/v1/attendance/:id/breaks
func (h *AttendanceHandler) ListBreaks(c *gin.Context) {
	attendanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	breaks, err := h.attendanceService.Breaks(c.Request.Context(), attendanceID)
	if err != nil {
		failFromError(c, err)
		return
	}
	if breaks == nil {
		breaks = []model.BreakRecord{}
	}
	response.Success(c, http.StatusOK, gin.H{"breaks": breaks})
}

// GetRemaining godoc
// GET /api/v1/exams/:id/students/:student_id/remaining
// Recomputed from the exam window and the student's extension grant on
// every call; nothing is cached per student.
func (h *AttendanceHandler) GetRemaining(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := uuid.Parse(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	remaining, err := h.attendanceService.RemainingSeconds(c.Request.Context(), examID, studentID)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"remaining_seconds": remaining})
}
