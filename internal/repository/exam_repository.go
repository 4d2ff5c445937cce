package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/vigil-backend/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, subject_name, start_time, duration_minutes, extra_time_minutes, status, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.SubjectName, &e.StartTime,
		&e.DurationMinutes, &e.ExtraTimeMinutes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam in PENDING status.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, subject_name, start_time, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, extra_time_minutes, status, created_at, updated_at`,
		e.Title, e.SubjectName, e.StartTime, e.DurationMinutes, model.ExamStatusPending,
	).Scan(&e.ID, &e.ExtraTimeMinutes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
}

// List retrieves all exams ordered by start time, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListByStatus retrieves exams in any of the given statuses.
func (r *ExamRepository) ListByStatus(ctx context.Context, statuses ...model.ExamStatus) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = ANY($1) ORDER BY start_time`,
		statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// UpdateStatusGuarded transitions an exam's status only when it currently
// holds the expected status. Returns false when a concurrent writer won.
func (r *ExamRepository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateSchedule rewrites an exam's start time and duration. The caller
// must have validated the move for conflicts immediately beforehand.
func (r *ExamRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET start_time = $1, duration_minutes = $2, updated_at = NOW()
		 WHERE id = $3`,
		start, durationMinutes, id)
	return err
}

// AddExtraTime grants additional session-wide minutes. Remaining time is
// always derived, so the grant propagates to every student on their next
// poll without any per-student write.
func (r *ExamRepository) AddExtraTime(ctx context.Context, id uuid.UUID, minutes int) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`UPDATE exams SET extra_time_minutes = extra_time_minutes + $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING `+examColumns, minutes, id))
}
