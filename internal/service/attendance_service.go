package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/repository"
	"github.com/stemsi/vigil-backend/internal/schedule"
)

// AttendanceService is the live per-exam state keeper: it owns every
// per-student status transition during a sitting, recomputes personal
// remaining time on every poll, auto-submits students whose allotment
// elapsed and raises break-overstay advisories.
//
// Out-of-order transitions (submit-after-submit, break-start while the
// room's exit pass is held) are benign no-ops reported through
// TransitionResult.Changed, never errors. A persistence failure leaves
// the prior state untouched and is surfaced for manual retry; the
// engine never retries on its own, since a blind retry risks a duplicate
// break record or a double submission.
type AttendanceService struct {
	attendance  AttendanceStore
	assignments AssignmentStore
	exams       ExamStore
	profiles    ProfileStore
	events      EventPublisher
	log         zerolog.Logger

	now func() time.Time

	// breakAlerted tracks whether the advisory for the current break
	// episode has fired, keyed by attendance id. An entry is cleared
	// when the student's open break disappears (returned or submitted),
	// re-arming the alert for the next episode.
	breakAlertAfter time.Duration
	alertMu         sync.Mutex
	breakAlerted    map[uuid.UUID]bool
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(
	attendance AttendanceStore,
	assignments AssignmentStore,
	exams ExamStore,
	profiles ProfileStore,
	events EventPublisher,
	breakAlertAfter time.Duration,
	log zerolog.Logger,
) *AttendanceService {
	return &AttendanceService{
		attendance:      attendance,
		assignments:     assignments,
		exams:           exams,
		profiles:        profiles,
		events:          events,
		log:             log.With().Str("component", "attendance_service").Logger(),
		now:             time.Now,
		breakAlertAfter: breakAlertAfter,
		breakAlerted:    make(map[uuid.UUID]bool),
	}
}

// Enroll registers a student into a room with a defaulted ABSENT record.
// Repeated enrollment returns the existing record.
func (s *AttendanceService) Enroll(ctx context.Context, assignmentID, studentID uuid.UUID) (*model.AttendanceRecord, error) {
	record, err := s.attendance.Enroll(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	return record, nil
}

// Roster returns the room's attendance roster with student display data.
func (s *AttendanceService) Roster(ctx context.Context, assignmentID uuid.UUID) ([]repository.RosterEntry, error) {
	return s.attendance.ListByAssignment(ctx, assignmentID)
}

// Breaks returns a record's break history.
func (s *AttendanceService) Breaks(ctx context.Context, attendanceID uuid.UUID) ([]model.BreakRecord, error) {
	return s.attendance.ListBreaks(ctx, attendanceID)
}

// Transition applies one attendance action. The returned result reports
// the record's status after the call and whether this call changed it.
func (s *AttendanceService) Transition(ctx context.Context, attendanceID uuid.UUID, action model.AttendanceAction, reason string) (*model.TransitionResult, error) {
	record, err := s.attendance.GetByID(ctx, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}

	// Terminal status short-circuits every action with the same benign signal.
	if record.Status == model.AttendanceSubmitted {
		s.log.Debug().
			Str("attendance_id", attendanceID.String()).
			Str("action", string(action)).
			Msg("Transition on submitted record ignored")
		return &model.TransitionResult{
			AttendanceID: attendanceID,
			Status:       model.AttendanceSubmitted,
			Changed:      false,
			Notice:       "already submitted",
		}, nil
	}

	switch action {
	case model.ActionAdmit:
		return s.admit(ctx, record)
	case model.ActionBreakStart:
		return s.startBreak(ctx, record, reason)
	case model.ActionBreakEnd:
		return s.endBreak(ctx, record)
	case model.ActionSubmit:
		return s.submit(ctx, record)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func (s *AttendanceService) admit(ctx context.Context, record *model.AttendanceRecord) (*model.TransitionResult, error) {
	changed, err := s.attendance.Admit(ctx, record.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("admit: %w", err)
	}
	if !changed {
		// Already present or on break; a repeated scan is not an error.
		s.log.Debug().Str("attendance_id", record.ID.String()).Msg("Admit no-op")
		return s.noop(ctx, record.ID, "already admitted")
	}
	return &model.TransitionResult{
		AttendanceID: record.ID,
		Status:       model.AttendancePresent,
		Changed:      true,
	}, nil
}

func (s *AttendanceService) startBreak(ctx context.Context, record *model.AttendanceRecord, reason string) (*model.TransitionResult, error) {
	if reason == "" {
		reason = model.DefaultBreakReason
	}

	changed, locked, err := s.attendance.StartBreak(ctx, record.ID, record.RoomAssignmentID, s.now(), reason)
	if err != nil {
		return nil, fmt.Errorf("start break: %w", err)
	}
	if locked {
		s.log.Info().
			Str("attendance_id", record.ID.String()).
			Str("room_assignment_id", record.RoomAssignmentID.String()).
			Msg("Break rejected: room exit pass in use")
		return s.noop(ctx, record.ID, "another student in this room is on break")
	}
	if !changed {
		return s.noop(ctx, record.ID, "student is not present")
	}
	return &model.TransitionResult{
		AttendanceID: record.ID,
		Status:       model.AttendanceOnBreak,
		Changed:      true,
	}, nil
}

func (s *AttendanceService) endBreak(ctx context.Context, record *model.AttendanceRecord) (*model.TransitionResult, error) {
	changed, closedBreak, err := s.attendance.EndBreak(ctx, record.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("end break: %w", err)
	}
	if !changed {
		return s.noop(ctx, record.ID, "student is not on break")
	}

	s.disarmBreakAlert(record.ID)

	result := &model.TransitionResult{
		AttendanceID: record.ID,
		Status:       model.AttendancePresent,
		Changed:      true,
	}
	if !closedBreak {
		// Status said ON_BREAK but no open break row existed. Reset
		// succeeded; flag the inconsistency for the operator log.
		s.log.Warn().
			Str("attendance_id", record.ID.String()).
			Msg("Break ended without an open break record")
		result.Notice = "no open break record found; status reset"
	}
	return result, nil
}

func (s *AttendanceService) submit(ctx context.Context, record *model.AttendanceRecord) (*model.TransitionResult, error) {
	changed, err := s.attendance.Submit(ctx, record.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	if !changed {
		// A concurrent writer (another supervisor, or the sweep) won.
		return s.noop(ctx, record.ID, "already submitted")
	}

	s.disarmBreakAlert(record.ID)
	s.emitSubmission(ctx, record, model.EventSubmitted, "submitted by supervisor")

	return &model.TransitionResult{
		AttendanceID: record.ID,
		Status:       model.AttendanceSubmitted,
		Changed:      true,
	}, nil
}

// noop re-reads the record so the caller sees the current status the
// losing transition observed.
func (s *AttendanceService) noop(ctx context.Context, attendanceID uuid.UUID, notice string) (*model.TransitionResult, error) {
	record, err := s.attendance.GetByID(ctx, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return &model.TransitionResult{
		AttendanceID: attendanceID,
		Status:       record.Status,
		Changed:      false,
		Notice:       notice,
	}, nil
}

func (s *AttendanceService) emitSubmission(ctx context.Context, record *model.AttendanceRecord, eventType model.EventType, message string) {
	assignment, err := s.assignments.GetByID(ctx, record.RoomAssignmentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Submission event dropped: assignment lookup failed")
		return
	}
	name := ""
	if profile, err := s.profiles.GetByID(ctx, record.StudentID); err == nil {
		name = profile.FullName
	}
	s.events.Publish(ctx, model.Event{
		Type:         eventType,
		ExamID:       assignment.ExamID,
		AttendanceID: record.ID,
		StudentID:    record.StudentID,
		StudentName:  name,
		RoomNumber:   assignment.RoomNumber,
		Message:      message,
		OccurredAt:   s.now(),
	})
}

// RemainingSeconds recomputes a student's personal clock for the exam:
// base duration, plus the session-wide extra-time grant, plus the
// student's own extension percentage. Nothing is cached per student, so
// an extra-time grant propagates on the very next poll.
func (s *AttendanceService) RemainingSeconds(ctx context.Context, examID, studentID uuid.UUID) (int, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("get exam: %w", err)
	}
	profile, err := s.profiles.GetByID(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	return schedule.RemainingSeconds(s.now(), exam.StartTime,
		exam.DurationMinutes, exam.ExtraTimeMinutes, profile.ExtensionPercent), nil
}

// Sitting looks up the student's attendance record for the exam along
// with their personal extension percentage, for stream handlers that
// derive the clock themselves.
func (s *AttendanceService) Sitting(ctx context.Context, examID, studentID uuid.UUID) (*model.AttendanceRecord, int, error) {
	record, err := s.attendance.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, 0, fmt.Errorf("get attendance: %w", err)
	}
	profile, err := s.profiles.GetByID(ctx, studentID)
	if err != nil {
		return nil, 0, fmt.Errorf("get profile: %w", err)
	}
	return record, profile.ExtensionPercent, nil
}

// SweepDue is one enforcement tick: every PRESENT or ON_BREAK record
// under an ACTIVE exam whose personal remaining time reached zero is
// submitted. Each submission is a conditional update that re-checks both
// the record status and the exam's ACTIVE status at commit time, so the
// sweep is idempotent and a concurrently finished exam no-ops. Returns
// the number of records submitted this tick.
func (s *AttendanceService) SweepDue(ctx context.Context) (int, error) {
	records, err := s.attendance.ListTimedActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list timed records: %w", err)
	}

	now := s.now()
	submitted := 0
	for i := range records {
		r := records[i]
		remaining := schedule.RemainingSeconds(now, r.StartTime,
			r.DurationMinutes, r.ExtraTimeMinutes, r.ExtensionPercent)
		if remaining > 0 {
			continue
		}

		changed, err := s.attendance.AutoSubmit(ctx, r.AttendanceID, now)
		if err != nil {
			// Surface after finishing the tick would complicate retry
			// semantics; log and keep sweeping the rest.
			s.log.Error().Err(err).
				Str("attendance_id", r.AttendanceID.String()).
				Msg("Auto-submit failed; will retry next tick")
			continue
		}
		if !changed {
			continue
		}

		submitted++
		s.disarmBreakAlert(r.AttendanceID)
		s.events.Publish(ctx, model.Event{
			Type:         model.EventAutoSubmitted,
			ExamID:       r.ExamID,
			AttendanceID: r.AttendanceID,
			StudentID:    r.StudentID,
			StudentName:  r.StudentName,
			RoomNumber:   r.RoomNumber,
			Message:      fmt.Sprintf("%s: time elapsed, submitted automatically", r.StudentName),
			OccurredAt:   now,
		})
	}
	return submitted, nil
}

// SweepBreakAlerts raises at most one advisory per break episode for
// students continuously on break beyond the configured threshold. The
// armed flag is cleared when the open break disappears, so a later break
// fires its own independent alert. Returns the number of alerts raised.
func (s *AttendanceService) SweepBreakAlerts(ctx context.Context) (int, error) {
	open, err := s.attendance.ListOpenBreaks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open breaks: %w", err)
	}

	now := s.now()

	s.alertMu.Lock()
	// Disarm entries whose break episode ended.
	current := make(map[uuid.UUID]bool, len(open))
	for i := range open {
		current[open[i].AttendanceID] = true
	}
	for id := range s.breakAlerted {
		if !current[id] {
			delete(s.breakAlerted, id)
		}
	}

	var due []repository.OpenBreak
	for i := range open {
		b := open[i]
		if now.Sub(b.ExitTime) < s.breakAlertAfter {
			continue
		}
		if s.breakAlerted[b.AttendanceID] {
			continue
		}
		s.breakAlerted[b.AttendanceID] = true
		due = append(due, b)
	}
	s.alertMu.Unlock()

	for i := range due {
		b := due[i]
		s.events.Publish(ctx, model.Event{
			Type:         model.EventBreakOverstay,
			ExamID:       b.ExamID,
			AttendanceID: b.AttendanceID,
			StudentID:    b.StudentID,
			StudentName:  b.StudentName,
			RoomNumber:   b.RoomNumber,
			Message: fmt.Sprintf("%s has been on break for over %d minutes",
				b.StudentName, int(s.breakAlertAfter.Minutes())),
			OccurredAt: now,
		})
	}
	return len(due), nil
}

func (s *AttendanceService) disarmBreakAlert(attendanceID uuid.UUID) {
	s.alertMu.Lock()
	delete(s.breakAlerted, attendanceID)
	s.alertMu.Unlock()
}
