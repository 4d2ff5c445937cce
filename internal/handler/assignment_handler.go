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

// AssignmentHandler handles room assignment administration.
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
}

// NewAssignmentHandler creates a new AssignmentHandler.
func NewAssignmentHandler(assignmentService *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// ListAssignments godoc
// GET /api/v1/exams/:id/assignments
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assignments, err := h.assignmentService.ListByExam(c.Request.Context(), examID)
	if err != nil {
		failFromError(c, err)
		return
	}
	if assignments == nil {
		assignments = []model.RoomAssignment{}
	}
	response.Success(c, http.StatusOK, gin.H{"assignments": assignments})
}

// CreateAssignment godoc
// POST /api/v1/assignments
// Rejected with the verbatim conflict list when the assignment collides.
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req model.CreateRoomAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.assignmentService.Create(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"assignment": assignment})
}

// UpdateAssignment godoc
// PUT /api/v1/assignments/:id
func (h *AssignmentHandler) UpdateAssignment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CreateRoomAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.assignmentService.Update(c.Request.Context(), id, req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"assignment": assignment})
}

// DeleteAssignment godoc
// DELETE /api/v1/assignments/:id
func (h *AssignmentHandler) DeleteAssignment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.assignmentService.Delete(c.Request.Context(), id); err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// BulkImport godoc
// POST /api/v1/assignments/bulk-import
// Each row is validated independently; conflicting rows are reported and
// skipped while clean rows commit.
func (h *AssignmentHandler) BulkImport(c *gin.Context) {
	var req model.BulkImportRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	results, err := h.assignmentService.BulkImport(c.Request.Context(), req)
	if err != nil {
		failFromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rows": results})
}

// CheckConflictsRequest wraps a validation probe with its kind.
type CheckConflictsRequest struct {
	Kind    model.ConflictKind         `json:"kind" binding:"required,oneof=classroom-create classroom-update assign-supervisor bulk-import-row exam-reschedule break-lock"`
	Request model.ConflictCheckRequest `json:"request" binding:"required"`
}

// CheckConflicts godoc
// POST /api/v1/assignments/check-conflicts
// Read-only: reports every violation without committing anything.
func (h *AssignmentHandler) CheckConflicts(c *gin.Context) {
	var req CheckConflictsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	conflicts, err := h.assignmentService.Check(c.Request.Context(), req.Kind, req.Request)
	if err != nil {
		failFromError(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []model.Conflict{}
	}
	response.Success(c, http.StatusOK, gin.H{"conflicts": conflicts})
}
