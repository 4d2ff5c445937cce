package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vigil-backend/internal/model"
)

// RosterEntry combines an attendance record with the student's display
// data for roster views.
type RosterEntry struct {
	model.AttendanceRecord
	StudentName      string `json:"student_name"`
	ExtensionPercent int    `json:"extension_percent"`
}

// TimedRecord carries everything the sweep needs to recompute one
// student's personal clock: the attendance row plus the exam timing and
// the student's extension grant. Remaining time is derived from these
// fields on every enforcement tick, never cached.
type TimedRecord struct {
	AttendanceID     uuid.UUID
	StudentID        uuid.UUID
	StudentName      string
	ExamID           uuid.UUID
	RoomNumber       string
	Status           model.AttendanceStatus
	StartTime        time.Time
	DurationMinutes  int
	ExtraTimeMinutes int
	ExtensionPercent int
}

// OpenBreak is one currently open break episode, joined with the room
// and student context the overstay advisory needs.
type OpenBreak struct {
	AttendanceID uuid.UUID
	StudentID    uuid.UUID
	StudentName  string
	ExamID       uuid.UUID
	RoomNumber   string
	ExitTime     time.Time
}

// AttendanceRepository handles attendance and break data access. All
// status mutations are conditional on the record's current status so a
// losing concurrent writer observes a no-op instead of corrupting state.
type AttendanceRepository struct {
	pool *pgxpool.Pool
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, student_id, room_assignment_id, status, check_in_time, check_out_time, created_at, updated_at`

func scanAttendance(row interface{ Scan(...any) error }) (*model.AttendanceRecord, error) {
	a := &model.AttendanceRecord{}
	err := row.Scan(&a.ID, &a.StudentID, &a.RoomAssignmentID, &a.Status,
		&a.CheckInTime, &a.CheckOutTime, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attendance record.
func (r *AttendanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AttendanceRecord, error) {
	return scanAttendance(r.pool.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the student's attendance record within a
// given exam, across all of the exam's rooms.
func (r *AttendanceRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.AttendanceRecord, error) {
	return scanAttendance(r.pool.QueryRow(ctx,
		`SELECT ar.id, ar.student_id, ar.room_assignment_id, ar.status,
		        ar.check_in_time, ar.check_out_time, ar.created_at, ar.updated_at
		 FROM attendance_records ar
		 JOIN room_assignments ra ON ra.id = ar.room_assignment_id
		 WHERE ra.exam_id = $1 AND ar.student_id = $2`, examID, studentID))
}

// Enroll creates a defaulted ABSENT record for a student in a room. A
// repeated enrollment returns the existing record unchanged.
func (r *AttendanceRepository) Enroll(ctx context.Context, assignmentID, studentID uuid.UUID) (*model.AttendanceRecord, error) {
	a, err := scanAttendance(r.pool.QueryRow(ctx,
		`INSERT INTO attendance_records (student_id, room_assignment_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (student_id, room_assignment_id) DO NOTHING
		 RETURNING `+attendanceColumns,
		studentID, assignmentID, model.AttendanceAbsent))
	if err == nil {
		return a, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}
	// Concurrent or repeated enrollment; fetch the surviving row.
	return scanAttendance(r.pool.QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance_records
		 WHERE student_id = $1 AND room_assignment_id = $2`, studentID, assignmentID))
}

// ListByAssignment retrieves the roster of one room, students ordered by name.
func (r *AttendanceRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]RosterEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ar.id, ar.student_id, ar.room_assignment_id, ar.status,
		        ar.check_in_time, ar.check_out_time, ar.created_at, ar.updated_at,
		        p.full_name, p.extension_percent
		 FROM attendance_records ar
		 JOIN profiles p ON p.id = ar.student_id
		 WHERE ar.room_assignment_id = $1
		 ORDER BY p.full_name`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.ID, &e.StudentID, &e.RoomAssignmentID, &e.Status,
			&e.CheckInTime, &e.CheckOutTime, &e.CreatedAt, &e.UpdatedAt,
			&e.StudentName, &e.ExtensionPercent); err != nil {
			return nil, err
		}
		roster = append(roster, e)
	}
	return roster, rows.Err()
}

// Admit transitions ABSENT → PRESENT and stamps check_in_time once.
// Returns false when the record was not in ABSENT.
func (r *AttendanceRepository) Admit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attendance_records
		 SET status = $1, check_in_time = COALESCE(check_in_time, $2), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		model.AttendancePresent, now, id, model.AttendanceAbsent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// StartBreak transitions PRESENT → ON_BREAK and opens a break record,
// atomically. The room's single exit pass is re-checked inside the same
// transaction: if any other attendance in the room holds an open break
// the whole transition rolls back and locked is reported. No partial
// transition is ever observable.
func (r *AttendanceRepository) StartBreak(ctx context.Context, id, roomAssignmentID uuid.UUID, now time.Time, reason string) (changed, locked bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attendance_records SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.AttendanceOnBreak, id, model.AttendancePresent)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() == 0 {
		return false, false, nil
	}

	tag, err = tx.Exec(ctx,
		`INSERT INTO break_records (attendance_id, exit_time, reason)
		 SELECT $1, $2, $3
		 WHERE NOT EXISTS (
			SELECT 1 FROM break_records b
			JOIN attendance_records ar ON ar.id = b.attendance_id
			WHERE ar.room_assignment_id = $4
			  AND b.attendance_id <> $1
			  AND b.return_time IS NULL
		 )`,
		id, now, reason, roomAssignmentID)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() == 0 {
		// Another student holds the room's exit pass. Roll back the
		// status change so the caller sees the prior state untouched.
		return false, true, nil
	}

	return true, false, tx.Commit(ctx)
}

// EndBreak transitions ON_BREAK → PRESENT and closes the most recently
// opened break. closedBreak is false when the status flipped but no open
// break existed, which the caller should flag as anomalous.
func (r *AttendanceRepository) EndBreak(ctx context.Context, id uuid.UUID, now time.Time) (changed, closedBreak bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attendance_records SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.AttendancePresent, id, model.AttendanceOnBreak)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() == 0 {
		return false, false, nil
	}

	tag, err = tx.Exec(ctx,
		`UPDATE break_records SET return_time = $1
		 WHERE id = (
			SELECT id FROM break_records
			WHERE attendance_id = $2 AND return_time IS NULL
			ORDER BY exit_time DESC
			LIMIT 1
		 )`, now, id)
	if err != nil {
		return false, false, err
	}

	return true, tag.RowsAffected() == 1, tx.Commit(ctx)
}

// Submit transitions PRESENT or ON_BREAK → SUBMITTED, stamps
// check_out_time exactly once and closes any open break. Returns false
// for a record not in a submittable status (already submitted, or still
// absent); the engine treats that as a benign no-op.
func (r *AttendanceRepository) Submit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.submit(ctx, id, now, false)
}

// AutoSubmit is Submit under the finished-exam barrier: the conditional
// update additionally requires the owning exam to still be ACTIVE, so a
// sweep cycle in flight for a since-finished exam no-ops at commit time.
func (r *AttendanceRepository) AutoSubmit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return r.submit(ctx, id, now, true)
}

func (r *AttendanceRepository) submit(ctx context.Context, id uuid.UUID, now time.Time, requireActiveExam bool) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	query := `UPDATE attendance_records
	 SET status = $1, check_out_time = COALESCE(check_out_time, $2), updated_at = NOW()
	 WHERE id = $3 AND status = ANY($4)`
	args := []any{model.AttendanceSubmitted, now, id,
		[]model.AttendanceStatus{model.AttendancePresent, model.AttendanceOnBreak}}

	if requireActiveExam {
		query += ` AND EXISTS (
			SELECT 1 FROM room_assignments ra
			JOIN exams e ON e.id = ra.exam_id
			WHERE ra.id = attendance_records.room_assignment_id AND e.status = $5
		)`
		args = append(args, model.ExamStatusActive)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE break_records SET return_time = $1
		 WHERE attendance_id = $2 AND return_time IS NULL`, now, id); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// HasOtherOpenBreakInRoom reports whether any attendance record in the
// room other than the given one currently holds an open break.
func (r *AttendanceRepository) HasOtherOpenBreakInRoom(ctx context.Context, roomAssignmentID, excludeAttendanceID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM break_records b
			JOIN attendance_records ar ON ar.id = b.attendance_id
			WHERE ar.room_assignment_id = $1
			  AND b.attendance_id <> $2
			  AND b.return_time IS NULL
		 )`, roomAssignmentID, excludeAttendanceID).Scan(&exists)
	return exists, err
}

// ListBreaks retrieves a record's break history, newest first.
func (r *AttendanceRepository) ListBreaks(ctx context.Context, attendanceID uuid.UUID) ([]model.BreakRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attendance_id, exit_time, return_time, reason
		 FROM break_records WHERE attendance_id = $1
		 ORDER BY exit_time DESC`, attendanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []model.BreakRecord
	for rows.Next() {
		var b model.BreakRecord
		if err := rows.Scan(&b.ID, &b.AttendanceID, &b.ExitTime, &b.ReturnTime, &b.Reason); err != nil {
			return nil, err
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// ListTimedActive retrieves every PRESENT or ON_BREAK record under an
// ACTIVE exam, joined with the timing inputs the sweep needs.
func (r *AttendanceRepository) ListTimedActive(ctx context.Context) ([]TimedRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ar.id, ar.student_id, p.full_name, e.id, ra.room_number, ar.status,
		        e.start_time, e.duration_minutes, e.extra_time_minutes, p.extension_percent
		 FROM attendance_records ar
		 JOIN room_assignments ra ON ra.id = ar.room_assignment_id
		 JOIN exams e ON e.id = ra.exam_id
		 JOIN profiles p ON p.id = ar.student_id
		 WHERE e.status = $1 AND ar.status = ANY($2)`,
		model.ExamStatusActive,
		[]model.AttendanceStatus{model.AttendancePresent, model.AttendanceOnBreak})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TimedRecord
	for rows.Next() {
		var t TimedRecord
		if err := rows.Scan(&t.AttendanceID, &t.StudentID, &t.StudentName, &t.ExamID,
			&t.RoomNumber, &t.Status, &t.StartTime, &t.DurationMinutes,
			&t.ExtraTimeMinutes, &t.ExtensionPercent); err != nil {
			return nil, err
		}
		records = append(records, t)
	}
	return records, rows.Err()
}

// ListOpenBreaks retrieves every open break under an ACTIVE exam, joined
// with the context the overstay advisory needs.
func (r *AttendanceRepository) ListOpenBreaks(ctx context.Context) ([]OpenBreak, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.attendance_id, ar.student_id, p.full_name, e.id, ra.room_number, b.exit_time
		 FROM break_records b
		 JOIN attendance_records ar ON ar.id = b.attendance_id
		 JOIN room_assignments ra ON ra.id = ar.room_assignment_id
		 JOIN exams e ON e.id = ra.exam_id
		 JOIN profiles p ON p.id = ar.student_id
		 WHERE b.return_time IS NULL AND e.status = $1`,
		model.ExamStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []OpenBreak
	for rows.Next() {
		var b OpenBreak
		if err := rows.Scan(&b.AttendanceID, &b.StudentID, &b.StudentName,
			&b.ExamID, &b.RoomNumber, &b.ExitTime); err != nil {
			return nil, err
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// ForceCloseExam submits every PRESENT or ON_BREAK record of an exam and
// closes their open breaks. Runs when the exam transitions to FINISHED.
// Returns the affected records for event emission.
func (r *AttendanceRepository) ForceCloseExam(ctx context.Context, examID uuid.UUID, now time.Time) ([]TimedRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE attendance_records ar
		 SET status = $1, check_out_time = COALESCE(ar.check_out_time, $2), updated_at = NOW()
		 FROM room_assignments ra, profiles p
		 WHERE ra.id = ar.room_assignment_id
		   AND p.id = ar.student_id
		   AND ra.exam_id = $3
		   AND ar.status = ANY($4)
		 RETURNING ar.id, ar.student_id, p.full_name, ra.exam_id, ra.room_number, ar.status`,
		model.AttendanceSubmitted, now, examID,
		[]model.AttendanceStatus{model.AttendancePresent, model.AttendanceOnBreak})
	if err != nil {
		return nil, err
	}

	var closed []TimedRecord
	for rows.Next() {
		var t TimedRecord
		if err := rows.Scan(&t.AttendanceID, &t.StudentID, &t.StudentName,
			&t.ExamID, &t.RoomNumber, &t.Status); err != nil {
			rows.Close()
			return nil, err
		}
		closed = append(closed, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE break_records b SET return_time = $1
		 FROM attendance_records ar, room_assignments ra
		 WHERE ar.id = b.attendance_id
		   AND ra.id = ar.room_assignment_id
		   AND ra.exam_id = $2
		   AND b.return_time IS NULL`, now, examID); err != nil {
		return nil, err
	}

	return closed, tx.Commit(ctx)
}
