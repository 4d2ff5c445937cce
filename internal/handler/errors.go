package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/vigil-backend/internal/response"
	"github.com/stemsi/vigil-backend/internal/service"
)

// failFromError maps service-layer errors onto the response envelope.
// Scheduling rejections carry their conflict list verbatim; everything
// unrecognized is an internal error surfaced for manual retry.
func failFromError(c *gin.Context, err error) {
	var conflictErr *service.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		response.FailWithConflicts(c, http.StatusConflict, response.ErrScheduleConflict, conflictErr.Conflicts)
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrExamNotPending):
		response.Fail(c, http.StatusConflict, response.ErrExamNotPending)
	case errors.Is(err, service.ErrExamNotActive):
		response.Fail(c, http.StatusConflict, response.ErrExamNotActive)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
