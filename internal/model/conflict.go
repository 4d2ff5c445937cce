package model

import (
	"github.com/google/uuid"
)

// ConflictKind names the scheduling mutation being validated. The same
// checks run for every kind; the kind is carried for reporting.
type ConflictKind string

const (
	ConflictKindClassroomCreate  ConflictKind = "classroom-create"
	ConflictKindClassroomUpdate  ConflictKind = "classroom-update"
	ConflictKindAssignSupervisor ConflictKind = "assign-supervisor"
	ConflictKindBulkImportRow    ConflictKind = "bulk-import-row"
	ConflictKindExamReschedule   ConflictKind = "exam-reschedule"
	ConflictKindBreakLock        ConflictKind = "break-lock"
)

// Conflict is a single human-readable explanation of why a proposed
// scheduling mutation collides with an existing commitment. Conflict
// lists are shown to the operator verbatim.
type Conflict struct {
	Kind         ConflictKind `json:"kind"`
	Message      string       `json:"message"`
	RoomNumber   string       `json:"room_number,omitempty"`
	ExamID       *uuid.UUID   `json:"exam_id,omitempty"`
	AssignmentID *uuid.UUID   `json:"assignment_id,omitempty"`
}

// ConflictCheckRequest describes the proposed mutation. Optional fields
// that are unset simply skip their check.
type ConflictCheckRequest struct {
	// ExamID is the exam the mutation belongs to. If it cannot be
	// resolved the validator reports no conflicts; referential existence
	// is a separate concern.
	ExamID uuid.UUID `json:"exam_id" binding:"required"`
	// AssignmentID identifies the assignment under edit so it is
	// excluded from collision checks against itself.
	AssignmentID      *uuid.UUID `json:"assignment_id,omitempty"`
	RoomNumber        string     `json:"room_number,omitempty"`
	SupervisorID      *uuid.UUID `json:"supervisor_id,omitempty"`
	FloorSupervisorID *uuid.UUID `json:"floor_supervisor_id,omitempty"`
	StudentID         *uuid.UUID `json:"student_id,omitempty"`
	// ProposedStart/ProposedDurationMinutes override the stored exam
	// window for exam-reschedule validation.
	ProposedStart           *int64 `json:"proposed_start_unix,omitempty"`
	ProposedDurationMinutes *int   `json:"proposed_duration_minutes,omitempty"`
	// RoomAssignmentID and AttendanceID drive the break-lock check: is
	// the room's single exit pass already held by another student?
	RoomAssignmentID *uuid.UUID `json:"room_assignment_id,omitempty"`
	AttendanceID     *uuid.UUID `json:"attendance_id,omitempty"`
}
