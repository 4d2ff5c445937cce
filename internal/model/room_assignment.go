package model

import (
	"time"

	"github.com/google/uuid"
)

// RoomAssignment binds a physical room to an exam, with an optional
// supervisor and floor supervisor. One exam usually spans several rooms;
// one floor supervisor may legitimately cover many rooms of the same exam.
type RoomAssignment struct {
	ID                uuid.UUID  `json:"id"`
	ExamID            uuid.UUID  `json:"exam_id"`
	RoomNumber        string     `json:"room_number"`
	SupervisorID      *uuid.UUID `json:"supervisor_id,omitempty"`
	FloorSupervisorID *uuid.UUID `json:"floor_supervisor_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreateRoomAssignmentRequest is the payload for creating or updating a
// room assignment.
type CreateRoomAssignmentRequest struct {
	ExamID            uuid.UUID  `json:"exam_id" binding:"required"`
	RoomNumber        string     `json:"room_number" binding:"required,min=1,max=20"`
	SupervisorID      *uuid.UUID `json:"supervisor_id" binding:"omitempty"`
	FloorSupervisorID *uuid.UUID `json:"floor_supervisor_id" binding:"omitempty"`
}

// BulkImportRow is one row of a bulk assignment import. Rows are validated
// independently; a row with conflicts is reported and skipped without
// aborting the batch.
type BulkImportRow struct {
	RoomNumber        string     `json:"room_number" binding:"required,min=1,max=20"`
	SupervisorID      *uuid.UUID `json:"supervisor_id" binding:"omitempty"`
	FloorSupervisorID *uuid.UUID `json:"floor_supervisor_id" binding:"omitempty"`
	StudentIDs        []uuid.UUID `json:"student_ids" binding:"omitempty"`
}

// BulkImportRequest imports many room assignments for one exam at once.
type BulkImportRequest struct {
	ExamID uuid.UUID       `json:"exam_id" binding:"required"`
	Rows   []BulkImportRow `json:"rows" binding:"required,min=1,dive"`
}

// BulkImportRowResult reports the outcome of a single imported row.
type BulkImportRowResult struct {
	RoomNumber   string     `json:"room_number"`
	AssignmentID *uuid.UUID `json:"assignment_id,omitempty"`
	Conflicts    []Conflict `json:"conflicts,omitempty"`
}
