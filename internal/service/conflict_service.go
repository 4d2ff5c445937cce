package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/schedule"
)

// ConflictService is the read-only decision function every scheduling
// mutation passes through before commit. It reports every violation
// found against currently committed resources and never mutates state.
// The checks are read-then-decide, not transactional: the caller
// re-validates immediately before commit, which narrows but does not
// eliminate the race between two administrators editing concurrently.
type ConflictService struct {
	exams       ExamStore
	assignments AssignmentStore
	attendance  AttendanceStore
	log         zerolog.Logger
}

// NewConflictService creates a new ConflictService.
func NewConflictService(
	exams ExamStore,
	assignments AssignmentStore,
	attendance AttendanceStore,
	log zerolog.Logger,
) *ConflictService {
	return &ConflictService{
		exams:       exams,
		assignments: assignments,
		attendance:  attendance,
		log:         log.With().Str("component", "conflict_service").Logger(),
	}
}

// CheckConflicts runs every check applicable to the request and returns
// the cumulative conflict list. An empty list means the mutation is
// clean. A request whose exam cannot be resolved yields no conflicts:
// referential existence is a separate concern.
func (s *ConflictService) CheckConflicts(ctx context.Context, kind model.ConflictKind, req model.ConflictCheckRequest) ([]model.Conflict, error) {
	if kind == model.ConflictKindBreakLock {
		return s.checkBreakLock(ctx, kind, req)
	}

	exam, err := s.exams.GetByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}

	window := schedule.WindowOf(exam)
	if req.ProposedStart != nil {
		duration := exam.DurationMinutes
		if req.ProposedDurationMinutes != nil {
			duration = *req.ProposedDurationMinutes
		}
		window = schedule.NewWindow(time.Unix(*req.ProposedStart, 0), duration, exam.ExtraTimeMinutes)
	}

	// Windows of colliding exams are resolved once per exam per request.
	windows := map[uuid.UUID]schedule.Window{exam.ID: window}

	conflicts := make([]model.Conflict, 0)

	if req.SupervisorID != nil {
		found, err := s.checkSupervisor(ctx, kind, req, window, windows, *req.SupervisorID, false)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, found...)
	}

	if req.FloorSupervisorID != nil {
		found, err := s.checkSupervisor(ctx, kind, req, window, windows, *req.FloorSupervisorID, true)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, found...)
	}

	if req.RoomNumber != "" {
		found, err := s.checkRoom(ctx, kind, req, window, windows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, found...)
	}

	if req.StudentID != nil {
		found, err := s.checkStudent(ctx, kind, req, window, windows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, found...)
	}

	return conflicts, nil
}

// windowOf resolves the window of the exam owning an assignment, caching
// per request. A deleted exam skips the assignment rather than failing
// the whole validation.
func (s *ConflictService) windowOf(ctx context.Context, examID uuid.UUID, windows map[uuid.UUID]schedule.Window) (schedule.Window, bool, error) {
	if w, ok := windows[examID]; ok {
		return w, true, nil
	}
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.Window{}, false, nil
		}
		return schedule.Window{}, false, err
	}
	w := schedule.WindowOf(exam)
	windows[examID] = w
	return w, true, nil
}

// checkSupervisor flags every other assignment binding the same person to
// an overlapping window. For a floor supervisor a collision within the
// same exam is permitted, since one floor supervisor covers many
// rooms of one sitting. A plain supervisor has no such exemption.
func (s *ConflictService) checkSupervisor(
	ctx context.Context,
	kind model.ConflictKind,
	req model.ConflictCheckRequest,
	window schedule.Window,
	windows map[uuid.UUID]schedule.Window,
	personID uuid.UUID,
	floor bool,
) ([]model.Conflict, error) {
	others, err := s.assignments.ListBySupervisor(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list supervisor assignments: %w", err)
	}

	seat := "Supervisor"
	if floor {
		seat = "Floor supervisor"
	}

	var conflicts []model.Conflict
	for i := range others {
		other := others[i]
		if req.AssignmentID != nil && other.ID == *req.AssignmentID {
			continue
		}
		if floor && other.ExamID == req.ExamID {
			continue
		}
		otherWindow, ok, err := s.windowOf(ctx, other.ExamID, windows)
		if err != nil {
			return nil, err
		}
		if !ok || !window.Overlaps(otherWindow) {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Kind: kind,
			Message: fmt.Sprintf("%s is already assigned to room %s during %s",
				seat, other.RoomNumber, formatWindow(otherWindow)),
			RoomNumber:   other.RoomNumber,
			ExamID:       &other.ExamID,
			AssignmentID: &other.ID,
		})
	}
	return conflicts, nil
}

// checkRoom flags every other assignment occupying the same room (compared
// case-insensitively) during an overlapping window. Only the assignment
// under edit itself, within the same exam, is exempt.
func (s *ConflictService) checkRoom(
	ctx context.Context,
	kind model.ConflictKind,
	req model.ConflictCheckRequest,
	window schedule.Window,
	windows map[uuid.UUID]schedule.Window,
) ([]model.Conflict, error) {
	others, err := s.assignments.ListByRoomNumber(ctx, req.RoomNumber)
	if err != nil {
		return nil, fmt.Errorf("list room assignments: %w", err)
	}

	var conflicts []model.Conflict
	for i := range others {
		other := others[i]
		if other.ExamID == req.ExamID &&
			req.AssignmentID != nil && other.ID == *req.AssignmentID {
			continue
		}
		otherWindow, ok, err := s.windowOf(ctx, other.ExamID, windows)
		if err != nil {
			return nil, err
		}
		if !ok || !window.Overlaps(otherWindow) {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Kind: kind,
			Message: fmt.Sprintf("Room %s is already occupied during %s",
				other.RoomNumber, formatWindow(otherWindow)),
			RoomNumber:   other.RoomNumber,
			ExamID:       &other.ExamID,
			AssignmentID: &other.ID,
		})
	}
	return conflicts, nil
}

// checkStudent flags enrollments of the student into other exams whose
// windows overlap the proposed one.
func (s *ConflictService) checkStudent(
	ctx context.Context,
	kind model.ConflictKind,
	req model.ConflictCheckRequest,
	window schedule.Window,
	windows map[uuid.UUID]schedule.Window,
) ([]model.Conflict, error) {
	others, err := s.assignments.ListByStudent(ctx, *req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}

	var conflicts []model.Conflict
	for i := range others {
		other := others[i]
		if other.ExamID == req.ExamID {
			continue
		}
		otherWindow, ok, err := s.windowOf(ctx, other.ExamID, windows)
		if err != nil {
			return nil, err
		}
		if !ok || !window.Overlaps(otherWindow) {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Kind: kind,
			Message: fmt.Sprintf("Student is already scheduled in room %s during %s",
				other.RoomNumber, formatWindow(otherWindow)),
			RoomNumber:   other.RoomNumber,
			ExamID:       &other.ExamID,
			AssignmentID: &other.ID,
		})
	}
	return conflicts, nil
}

// checkBreakLock reports whether another student in the room currently
// holds the room's single exit pass. The same rule is re-checked at
// break-start commit time under the conditional-update discipline; this
// standalone kind exists so the UI can grey the break button out early.
func (s *ConflictService) checkBreakLock(ctx context.Context, kind model.ConflictKind, req model.ConflictCheckRequest) ([]model.Conflict, error) {
	if req.RoomAssignmentID == nil || req.AttendanceID == nil {
		return nil, nil
	}
	locked, err := s.attendance.HasOtherOpenBreakInRoom(ctx, *req.RoomAssignmentID, *req.AttendanceID)
	if err != nil {
		return nil, fmt.Errorf("check open breaks: %w", err)
	}
	if !locked {
		return nil, nil
	}
	return []model.Conflict{{
		Kind:         kind,
		Message:      "Another student in this room is currently on break",
		AssignmentID: req.RoomAssignmentID,
	}}, nil
}

func formatWindow(w schedule.Window) string {
	var b strings.Builder
	b.WriteString(w.Start.Format("15:04"))
	b.WriteString("–")
	b.WriteString(w.End.Format("15:04"))
	return b.String()
}
