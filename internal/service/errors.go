package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/vigil-backend/internal/model"
)

// Domain Errors
var (
	ErrExamNotPending = errors.New("exam status is not PENDING")
	ErrExamNotActive  = errors.New("exam status is not ACTIVE")
)

// ConflictError carries the full conflict list of a rejected scheduling
// mutation. Handlers surface the list verbatim so the operator can
// correct the exact colliding assignment.
type ConflictError struct {
	Conflicts []model.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("scheduling rejected: %d conflict(s)", len(e.Conflicts))
}
