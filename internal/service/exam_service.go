package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/model"
)

// ExamWindowPayload is the Redis-cached timing of an exam, read by the
// countdown stream on every tick with a PostgreSQL fallback.
type ExamWindowPayload struct {
	StartUnix        int64 `json:"start_unix"`
	DurationMinutes  int   `json:"duration_minutes"`
	ExtraTimeMinutes int   `json:"extra_time_minutes"`
}

// ExamService handles exam lifecycle business logic and the Redis window
// cache.
type ExamService struct {
	exams       ExamStore
	assignments AssignmentStore
	attendance  AttendanceStore
	conflicts   *ConflictService
	events      EventPublisher
	rdb         *redis.Client
	log         zerolog.Logger
	now         func() time.Time
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams ExamStore,
	assignments AssignmentStore,
	attendance AttendanceStore,
	conflicts *ConflictService,
	events EventPublisher,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:       exams,
		assignments: assignments,
		attendance:  attendance,
		conflicts:   conflicts,
		events:      events,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_service").Logger(),
		now:         time.Now,
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.exams.GetByID(ctx, id)
}

// List retrieves all exams.
func (s *ExamService) List(ctx context.Context) ([]model.Exam, error) {
	return s.exams.List(ctx)
}

// Create inserts a new PENDING exam and caches its window.
func (s *ExamService) Create(ctx context.Context, req model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:           req.Title,
		SubjectName:     req.SubjectName,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	s.cacheWindow(ctx, exam)
	return exam, nil
}

// Activate transitions PENDING → ACTIVE. From that point the attendance
// timer engine is the sole authority over per-student state.
func (s *ExamService) Activate(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	ok, err := s.exams.UpdateStatusGuarded(ctx, id, model.ExamStatusPending, model.ExamStatusActive)
	if err != nil {
		return nil, fmt.Errorf("activate exam: %w", err)
	}
	if !ok {
		return nil, ErrExamNotPending
	}
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheWindow(ctx, exam)
	s.log.Info().Str("exam_id", id.String()).Msg("Exam activated")
	return exam, nil
}

// Finish transitions ACTIVE → FINISHED. The status flip is the barrier:
// once committed, any sweep cycle still in flight no-ops because the
// auto-submit statement re-checks the exam status. Every remaining open
// session is then force-closed and its submission event emitted.
func (s *ExamService) Finish(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	ok, err := s.exams.UpdateStatusGuarded(ctx, id, model.ExamStatusActive, model.ExamStatusFinished)
	if err != nil {
		return nil, fmt.Errorf("finish exam: %w", err)
	}
	if !ok {
		return nil, ErrExamNotActive
	}

	now := s.now()
	closed, err := s.attendance.ForceCloseExam(ctx, id, now)
	if err != nil {
		// The exam is already FINISHED; the force-close must be retried
		// by the operator rather than rolled into the status change.
		return nil, fmt.Errorf("force close attendances: %w", err)
	}
	for i := range closed {
		c := closed[i]
		s.events.Publish(ctx, model.Event{
			Type:         model.EventSubmitted,
			ExamID:       c.ExamID,
			AttendanceID: c.AttendanceID,
			StudentID:    c.StudentID,
			StudentName:  c.StudentName,
			RoomNumber:   c.RoomNumber,
			Message:      fmt.Sprintf("%s: submitted at exam finish", c.StudentName),
			OccurredAt:   now,
		})
	}

	s.log.Info().
		Str("exam_id", id.String()).
		Int("force_closed", len(closed)).
		Msg("Exam finished")

	return s.exams.GetByID(ctx, id)
}

// GrantExtraTime adds session-wide minutes to the exam. Because remaining
// time is derived on every poll, the grant reaches every student sharing
// the exam immediately; only the window cache needs a refresh.
func (s *ExamService) GrantExtraTime(ctx context.Context, id uuid.UUID, minutes int) (*model.Exam, error) {
	exam, err := s.exams.AddExtraTime(ctx, id, minutes)
	if err != nil {
		return nil, fmt.Errorf("grant extra time: %w", err)
	}
	s.cacheWindow(ctx, exam)
	s.log.Info().
		Str("exam_id", id.String()).
		Int("extra_minutes", minutes).
		Msg("Extra time granted")
	return exam, nil
}

// Reschedule moves an exam to a new start time and duration. Every room
// assignment of the exam is validated against the proposed window; any
// conflict rejects the whole move with the verbatim list.
func (s *ExamService) Reschedule(ctx context.Context, id uuid.UUID, req model.RescheduleExamRequest) (*model.Exam, error) {
	assignments, err := s.assignments.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	proposedStart := req.StartTime.Unix()
	var conflicts []model.Conflict
	for i := range assignments {
		a := assignments[i]
		found, err := s.conflicts.CheckConflicts(ctx, model.ConflictKindExamReschedule, model.ConflictCheckRequest{
			ExamID:                  id,
			AssignmentID:            &a.ID,
			RoomNumber:              a.RoomNumber,
			SupervisorID:            a.SupervisorID,
			FloorSupervisorID:       a.FloorSupervisorID,
			ProposedStart:           &proposedStart,
			ProposedDurationMinutes: &req.DurationMinutes,
		})
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, found...)
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Conflicts: conflicts}
	}

	if err := s.exams.UpdateSchedule(ctx, id, req.StartTime, req.DurationMinutes); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheWindow(ctx, exam)
	return exam, nil
}

// PrewarmWindowCache loads the window of every PENDING and ACTIVE exam
// into Redis before the server accepts traffic, so countdown streams
// never stampede PostgreSQL on startup.
func (s *ExamService) PrewarmWindowCache(ctx context.Context) error {
	exams, err := s.exams.ListByStatus(ctx, model.ExamStatusPending, model.ExamStatusActive)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}
	for i := range exams {
		s.cacheWindow(ctx, &exams[i])
	}
	s.log.Info().Int("count", len(exams)).Msg("Exam window cache prewarmed")
	return nil
}

// GetWindow reads the exam's timing from the Redis window cache. On a
// miss or Redis failure it falls back to PostgreSQL and repopulates the
// cache.
func (s *ExamService) GetWindow(ctx context.Context, examID uuid.UUID) (*ExamWindowPayload, error) {
	key := config.CacheKey.ExamWindowKey(examID.String())
	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var payload ExamWindowPayload
		if jsonErr := json.Unmarshal([]byte(raw), &payload); jsonErr == nil {
			return &payload, nil
		}
	} else if err != redis.Nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Window cache read failed, falling back to database")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.cacheWindow(ctx, exam)
	return &ExamWindowPayload{
		StartUnix:        exam.StartTime.Unix(),
		DurationMinutes:  exam.DurationMinutes,
		ExtraTimeMinutes: exam.ExtraTimeMinutes,
	}, nil
}

// cacheWindow writes the exam's timing to Redis. Failures are logged and
// tolerated; readers fall back to PostgreSQL on a cache miss.
func (s *ExamService) cacheWindow(ctx context.Context, exam *model.Exam) {
	payload, err := json.Marshal(ExamWindowPayload{
		StartUnix:        exam.StartTime.Unix(),
		DurationMinutes:  exam.DurationMinutes,
		ExtraTimeMinutes: exam.ExtraTimeMinutes,
	})
	if err != nil {
		return
	}
	key := config.CacheKey.ExamWindowKey(exam.ID.String())
	if err := s.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to cache exam window")
	}
}
