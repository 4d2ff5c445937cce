package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the events the engine emits for the presentation
// and notification collaborators.
type EventType string

const (
	// EventSubmitted fires when a supervisor submits a student manually.
	EventSubmitted EventType = "submitted"
	// EventAutoSubmitted fires when the sweep submits a student whose
	// personal time allotment elapsed.
	EventAutoSubmitted EventType = "auto_submitted"
	// EventBreakOverstay fires once per break episode when a student has
	// been continuously on break beyond the configured threshold.
	EventBreakOverstay EventType = "break_overstay"
)

// Event is one submission or advisory occurrence. Delivery to end
// devices is the notification collaborator's responsibility; the engine
// only publishes and journals.
type Event struct {
	Type         EventType `json:"type"`
	ExamID       uuid.UUID `json:"exam_id"`
	AttendanceID uuid.UUID `json:"attendance_id"`
	StudentID    uuid.UUID `json:"student_id"`
	StudentName  string    `json:"student_name"`
	RoomNumber   string    `json:"room_number"`
	Message      string    `json:"message"`
	OccurredAt   time.Time `json:"occurred_at"`
}
