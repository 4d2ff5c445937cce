package model

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus enumerates per-student attendance states during a
// sitting. SUBMITTED is terminal: a record never regresses from it.
type AttendanceStatus string

const (
	AttendanceAbsent    AttendanceStatus = "ABSENT"
	AttendancePresent   AttendanceStatus = "PRESENT"
	AttendanceOnBreak   AttendanceStatus = "ON_BREAK"
	AttendanceSubmitted AttendanceStatus = "SUBMITTED"
)

// AttendanceAction enumerates the transitions the timer engine accepts.
type AttendanceAction string

const (
	ActionAdmit      AttendanceAction = "admit"
	ActionBreakStart AttendanceAction = "break_start"
	ActionBreakEnd   AttendanceAction = "break_end"
	ActionSubmit     AttendanceAction = "submit"
)

// AttendanceRecord is the authoritative per-student row for one student
// in one exam room. It is only mutated through guarded status transitions.
type AttendanceRecord struct {
	ID               uuid.UUID        `json:"id"`
	StudentID        uuid.UUID        `json:"student_id"`
	RoomAssignmentID uuid.UUID        `json:"room_assignment_id"`
	Status           AttendanceStatus `json:"status"`
	CheckInTime      *time.Time       `json:"check_in_time,omitempty"`
	CheckOutTime     *time.Time       `json:"check_out_time,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// BreakRecord is one temporary exit of a student during an active exam.
// It is open while ReturnTime is nil; at most one open break may exist
// per attendance record.
type BreakRecord struct {
	ID           uuid.UUID  `json:"id"`
	AttendanceID uuid.UUID  `json:"attendance_id"`
	ExitTime     time.Time  `json:"exit_time"`
	ReturnTime   *time.Time `json:"return_time,omitempty"`
	Reason       string     `json:"reason"`
}

// DefaultBreakReason is recorded when the invigilator does not give one.
const DefaultBreakReason = "toilet"

// TransitionRequest is the payload for an attendance transition.
type TransitionRequest struct {
	Action AttendanceAction `json:"action" binding:"required,oneof=admit break_start break_end submit"`
	Reason string           `json:"reason" binding:"omitempty,max=100"`
}

// TransitionResult reports the outcome of a transition. Changed is false
// when a concurrent writer won the race or the transition was an
// out-of-order no-op; that is informational, not an error.
type TransitionResult struct {
	AttendanceID uuid.UUID        `json:"attendance_id"`
	Status       AttendanceStatus `json:"status"`
	Changed      bool             `json:"changed"`
	Notice       string           `json:"notice,omitempty"`
}

// EnrollRequest registers a student into a room with a default ABSENT record.
type EnrollRequest struct {
	StudentID uuid.UUID `json:"student_id" binding:"required"`
}
