package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/model"
)

// AssignmentService handles room assignment administration. Every
// mutation is validated by the conflict service immediately before
// commit and rejected whenever the conflict list is non-empty.
type AssignmentService struct {
	assignments AssignmentStore
	attendance  AttendanceStore
	conflicts   *ConflictService
	log         zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	assignments AssignmentStore,
	attendance AttendanceStore,
	conflicts *ConflictService,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		attendance:  attendance,
		conflicts:   conflicts,
		log:         log.With().Str("component", "assignment_service").Logger(),
	}
}

// GetByID retrieves an assignment.
func (s *AssignmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.RoomAssignment, error) {
	return s.assignments.GetByID(ctx, id)
}

// ListByExam retrieves an exam's assignments.
func (s *AssignmentService) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.RoomAssignment, error) {
	return s.assignments.ListByExam(ctx, examID)
}

// Check exposes the conflict validator directly, for pre-submit UI
// validation. It commits nothing.
func (s *AssignmentService) Check(ctx context.Context, kind model.ConflictKind, req model.ConflictCheckRequest) ([]model.Conflict, error) {
	return s.conflicts.CheckConflicts(ctx, kind, req)
}

// Create validates and commits a new room assignment.
func (s *AssignmentService) Create(ctx context.Context, req model.CreateRoomAssignmentRequest) (*model.RoomAssignment, error) {
	conflicts, err := s.conflicts.CheckConflicts(ctx, model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:            req.ExamID,
		RoomNumber:        req.RoomNumber,
		SupervisorID:      req.SupervisorID,
		FloorSupervisorID: req.FloorSupervisorID,
	})
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	assignment := &model.RoomAssignment{
		ExamID:            req.ExamID,
		RoomNumber:        req.RoomNumber,
		SupervisorID:      req.SupervisorID,
		FloorSupervisorID: req.FloorSupervisorID,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

// Update validates and commits changes to an existing assignment. The
// assignment under edit is excluded from collision checks against itself.
func (s *AssignmentService) Update(ctx context.Context, id uuid.UUID, req model.CreateRoomAssignmentRequest) (*model.RoomAssignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}

	conflicts, err := s.conflicts.CheckConflicts(ctx, model.ConflictKindClassroomUpdate, model.ConflictCheckRequest{
		ExamID:            req.ExamID,
		AssignmentID:      &id,
		RoomNumber:        req.RoomNumber,
		SupervisorID:      req.SupervisorID,
		FloorSupervisorID: req.FloorSupervisorID,
	})
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	assignment.RoomNumber = req.RoomNumber
	assignment.SupervisorID = req.SupervisorID
	assignment.FloorSupervisorID = req.FloorSupervisorID
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return assignment, nil
}

// Delete removes an assignment.
func (s *AssignmentService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.assignments.Delete(ctx, id)
}

// BulkImport validates and commits many assignment rows for one exam.
// Rows are independent: a conflicting row is reported and skipped, clean
// rows are committed with their students enrolled as ABSENT.
func (s *AssignmentService) BulkImport(ctx context.Context, req model.BulkImportRequest) ([]model.BulkImportRowResult, error) {
	results := make([]model.BulkImportRowResult, 0, len(req.Rows))

	for i := range req.Rows {
		row := req.Rows[i]
		result := model.BulkImportRowResult{RoomNumber: row.RoomNumber}

		check := model.ConflictCheckRequest{
			ExamID:            req.ExamID,
			RoomNumber:        row.RoomNumber,
			SupervisorID:      row.SupervisorID,
			FloorSupervisorID: row.FloorSupervisorID,
		}
		conflicts, err := s.conflicts.CheckConflicts(ctx, model.ConflictKindBulkImportRow, check)
		if err != nil {
			return nil, err
		}

		// Each student is checked for a double booking into an
		// overlapping exam before any of the row is committed.
		for _, studentID := range row.StudentIDs {
			sid := studentID
			found, err := s.conflicts.CheckConflicts(ctx, model.ConflictKindBulkImportRow, model.ConflictCheckRequest{
				ExamID:    req.ExamID,
				StudentID: &sid,
			})
			if err != nil {
				return nil, err
			}
			conflicts = append(conflicts, found...)
		}

		if len(conflicts) > 0 {
			result.Conflicts = conflicts
			results = append(results, result)
			continue
		}

		assignment := &model.RoomAssignment{
			ExamID:            req.ExamID,
			RoomNumber:        row.RoomNumber,
			SupervisorID:      row.SupervisorID,
			FloorSupervisorID: row.FloorSupervisorID,
		}
		if err := s.assignments.Create(ctx, assignment); err != nil {
			return nil, fmt.Errorf("create assignment row %d: %w", i, err)
		}
		for _, studentID := range row.StudentIDs {
			if _, err := s.attendance.Enroll(ctx, assignment.ID, studentID); err != nil {
				return nil, fmt.Errorf("enroll student in row %d: %w", i, err)
			}
		}

		result.AssignmentID = &assignment.ID
		results = append(results, result)
	}

	s.log.Info().
		Str("exam_id", req.ExamID.String()).
		Int("rows", len(req.Rows)).
		Msg("Bulk import processed")

	return results, nil
}
