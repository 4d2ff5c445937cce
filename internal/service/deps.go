package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/repository"
)

// The services depend on narrow store interfaces instead of the concrete
// pgx repositories so the conflict and timer logic can be exercised
// against in-memory fakes. The repository package satisfies all of them.

// ExamStore is the exam persistence surface the services consume.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	List(ctx context.Context) ([]model.Exam, error)
	ListByStatus(ctx context.Context, statuses ...model.ExamStatus) ([]model.Exam, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) (bool, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) error
	AddExtraTime(ctx context.Context, id uuid.UUID, minutes int) (*model.Exam, error)
}

// AssignmentStore is the room assignment persistence surface.
type AssignmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.RoomAssignment, error)
	Create(ctx context.Context, a *model.RoomAssignment) error
	Update(ctx context.Context, a *model.RoomAssignment) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.RoomAssignment, error)
	ListBySupervisor(ctx context.Context, supervisorID uuid.UUID) ([]model.RoomAssignment, error)
	ListByRoomNumber(ctx context.Context, roomNumber string) ([]model.RoomAssignment, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.RoomAssignment, error)
}

// ProfileStore is the profile persistence surface.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	Create(ctx context.Context, p *model.Profile) error
	ListByRole(ctx context.Context, role model.ProfileRole) ([]model.Profile, error)
	SetExtensionPercent(ctx context.Context, id uuid.UUID, percent int) error
}

// AttendanceStore is the attendance/break persistence surface. Every
// mutation is conditional on the record's current status.
type AttendanceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.AttendanceRecord, error)
	GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.AttendanceRecord, error)
	Enroll(ctx context.Context, assignmentID, studentID uuid.UUID) (*model.AttendanceRecord, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]repository.RosterEntry, error)
	ListBreaks(ctx context.Context, attendanceID uuid.UUID) ([]model.BreakRecord, error)
	Admit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	StartBreak(ctx context.Context, id, roomAssignmentID uuid.UUID, now time.Time, reason string) (changed, locked bool, err error)
	EndBreak(ctx context.Context, id uuid.UUID, now time.Time) (changed, closedBreak bool, err error)
	Submit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	AutoSubmit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	HasOtherOpenBreakInRoom(ctx context.Context, roomAssignmentID, excludeAttendanceID uuid.UUID) (bool, error)
	ListTimedActive(ctx context.Context) ([]repository.TimedRecord, error)
	ListOpenBreaks(ctx context.Context) ([]repository.OpenBreak, error)
	ForceCloseExam(ctx context.Context, examID uuid.UUID, now time.Time) ([]repository.TimedRecord, error)
}

// EventPublisher fans submission and advisory events out to the
// presentation and notification collaborators.
type EventPublisher interface {
	Publish(ctx context.Context, event model.Event)
}
