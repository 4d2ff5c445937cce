package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/response"
	"github.com/stemsi/vigil-backend/internal/service"
	"github.com/stemsi/vigil-backend/internal/validator"
)

// ExamHandler handles exam lifecycle administration.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// ListExams godoc
// GET /api/v1/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.List(c.Request.Context())
	if err != nil {
		failFromError(c, err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/v1/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// ActivateExam godoc
// POST /api/v1/exams/:id/activate
func (h *ExamHandler) ActivateExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.Activate(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// FinishExam godoc
// POST /api/v1/exams/:id/finish
// Finishing is a barrier: open sessions are force-closed and the sweep
// stops acting on the exam.
func (h *ExamHandler) FinishExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.Finish(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GrantExtraTime godoc
// POST /api/v1/exams/:id/extra-time
func (h *ExamHandler) GrantExtraTime(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GrantExtraTimeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.GrantExtraTime(c.Request.Context(), id, req.ExtraMinutes)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// RescheduleExam godoc
// POST /api/v1/exams/:id/reschedule
// Rejected with the verbatim conflict list when the move collides.
func (h *ExamHandler) RescheduleExam(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RescheduleExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Reschedule(c.Request.Context(), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
