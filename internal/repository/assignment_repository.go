package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vigil-backend/internal/model"
)

// AssignmentRepository handles room assignment data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

const assignmentColumns = `id, exam_id, room_number, supervisor_id, floor_supervisor_id, created_at, updated_at`

func scanAssignments(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]model.RoomAssignment, error) {
	var assignments []model.RoomAssignment
	for rows.Next() {
		var a model.RoomAssignment
		if err := rows.Scan(&a.ID, &a.ExamID, &a.RoomNumber, &a.SupervisorID,
			&a.FloorSupervisorID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetByID retrieves a room assignment by its UUID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RoomAssignment, error) {
	a := &model.RoomAssignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM room_assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.ExamID, &a.RoomNumber, &a.SupervisorID,
		&a.FloorSupervisorID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new room assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.RoomAssignment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO room_assignments (exam_id, room_number, supervisor_id, floor_supervisor_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		a.ExamID, a.RoomNumber, a.SupervisorID, a.FloorSupervisorID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// Update rewrites an assignment's room and supervisors.
func (r *AssignmentRepository) Update(ctx context.Context, a *model.RoomAssignment) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE room_assignments
		 SET room_number = $1, supervisor_id = $2, floor_supervisor_id = $3, updated_at = NOW()
		 WHERE id = $4`,
		a.RoomNumber, a.SupervisorID, a.FloorSupervisorID, a.ID)
	return err
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM room_assignments WHERE id = $1`, id)
	return err
}

// ListByExam retrieves every assignment of an exam, ordered by room.
func (r *AssignmentRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.RoomAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM room_assignments
		 WHERE exam_id = $1 ORDER BY room_number`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListBySupervisor retrieves every assignment a supervisor is bound to,
// in either the supervisor or floor-supervisor seat.
func (r *AssignmentRepository) ListBySupervisor(ctx context.Context, supervisorID uuid.UUID) ([]model.RoomAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM room_assignments
		 WHERE supervisor_id = $1 OR floor_supervisor_id = $1`, supervisorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListByRoomNumber retrieves every assignment sharing a room identifier,
// compared case-insensitively.
func (r *AssignmentRepository) ListByRoomNumber(ctx context.Context, roomNumber string) ([]model.RoomAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM room_assignments
		 WHERE LOWER(room_number) = LOWER($1)`, roomNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListByStudent retrieves the assignments a student is enrolled into,
// via their attendance records.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.RoomAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ra.id, ra.exam_id, ra.room_number, ra.supervisor_id, ra.floor_supervisor_id, ra.created_at, ra.updated_at
		 FROM room_assignments ra
		 JOIN attendance_records ar ON ar.room_assignment_id = ra.id
		 WHERE ar.student_id = $1`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}
