package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/vigil-backend/internal/model"
)

// The window cache is best-effort; an unreachable Redis only logs. The
// tests use a dead client so cacheWindow exercises that path.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func newExamFixture() (*memStore, *capturedEvents, *ExamService) {
	store := newMemStore()
	events := &capturedEvents{}
	conflicts := NewConflictService(store, memAssignments{store}, memAttendance{store}, testLogger())
	svc := NewExamService(store, memAssignments{store}, memAttendance{store}, conflicts, events, deadRedis(), testLogger())
	return store, events, svc
}

func TestExamActivateGuard(t *testing.T) {
	store, _, svc := newExamFixture()
	exam := store.addExam("Physics", day(9, 0), 90, model.ExamStatusPending)

	activated, err := svc.Activate(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if activated.Status != model.ExamStatusActive {
		t.Fatalf("status = %s", activated.Status)
	}

	// Activating again loses the guard.
	if _, err := svc.Activate(context.Background(), exam.ID); !errors.Is(err, ErrExamNotPending) {
		t.Fatalf("second Activate() error = %v, want ErrExamNotPending", err)
	}
}

func TestExamFinishForceClosesAndIsTerminal(t *testing.T) {
	store, events, svc := newExamFixture()
	exam := store.addExam("Physics", day(9, 0), 90, model.ExamStatusActive)
	assignment := store.addAssignment(exam.ID, "A-101", nil, nil)
	alice := store.addProfile("Alice Morgan", model.RoleStudent, 0)
	ben := store.addProfile("Ben Carter", model.RoleStudent, 0)
	present := store.addAttendance(assignment.ID, alice.ID, model.AttendancePresent)
	onBreak := store.addAttendance(assignment.ID, ben.ID, model.AttendanceOnBreak)
	submitted := store.addAttendance(assignment.ID, store.addProfile("Chloe Dawson", model.RoleStudent, 0).ID, model.AttendanceSubmitted)
	absent := store.addAttendance(assignment.ID, store.addProfile("David Ellis", model.RoleStudent, 0).ID, model.AttendanceAbsent)

	finished, err := svc.Finish(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if finished.Status != model.ExamStatusFinished {
		t.Fatalf("status = %s", finished.Status)
	}

	// Open sessions are closed; terminal and never-admitted rows are left alone.
	if store.attendance[present.ID].Status != model.AttendanceSubmitted {
		t.Fatal("present record not force-closed")
	}
	if store.attendance[onBreak.ID].Status != model.AttendanceSubmitted {
		t.Fatal("on-break record not force-closed")
	}
	if store.attendance[submitted.ID].Status != model.AttendanceSubmitted {
		t.Fatal("submitted record changed")
	}
	if store.attendance[absent.ID].Status != model.AttendanceAbsent {
		t.Fatal("absent record changed")
	}
	if got := len(events.ofType(model.EventSubmitted)); got != 2 {
		t.Fatalf("submission events = %d, want 2", got)
	}

	if _, err := svc.Finish(context.Background(), exam.ID); !errors.Is(err, ErrExamNotActive) {
		t.Fatalf("second Finish() error = %v, want ErrExamNotActive", err)
	}
}

func TestExamGrantExtraTimeAccumulates(t *testing.T) {
	store, _, svc := newExamFixture()
	exam := store.addExam("Physics", day(9, 0), 90, model.ExamStatusActive)

	updated, err := svc.GrantExtraTime(context.Background(), exam.ID, 10)
	if err != nil {
		t.Fatalf("GrantExtraTime() error = %v", err)
	}
	if updated.ExtraTimeMinutes != 10 {
		t.Fatalf("extra = %d", updated.ExtraTimeMinutes)
	}

	updated, _ = svc.GrantExtraTime(context.Background(), exam.ID, 5)
	if updated.ExtraTimeMinutes != 15 {
		t.Fatalf("extra after second grant = %d, want 15", updated.ExtraTimeMinutes)
	}
}

func TestExamRescheduleValidatesEveryAssignment(t *testing.T) {
	store, _, svc := newExamFixture()
	examA := store.addExam("Physics", day(9, 0), 60, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(13, 0), 60, model.ExamStatusPending)
	store.addAssignment(examA.ID, "A-101", nil, nil)
	store.addAssignment(examB.ID, "A-101", nil, nil)
	store.addAssignment(examB.ID, "B-201", nil, nil)

	// Moving examB onto the morning collides in room A-101.
	_, err := svc.Reschedule(context.Background(), examB.ID, model.RescheduleExamRequest{
		StartTime:       day(9, 30),
		DurationMinutes: 60,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("Reschedule() error = %v, want ConflictError", err)
	}

	// The stored schedule is untouched.
	current, _ := svc.GetByID(context.Background(), examB.ID)
	if !current.StartTime.Equal(day(13, 0)) {
		t.Fatalf("rejected reschedule committed: start = %v", current.StartTime)
	}

	// An afternoon slot is clean.
	moved, err := svc.Reschedule(context.Background(), examB.ID, model.RescheduleExamRequest{
		StartTime:       day(15, 0),
		DurationMinutes: 45,
	})
	if err != nil {
		t.Fatalf("clean Reschedule() error = %v", err)
	}
	if !moved.StartTime.Equal(day(15, 0)) || moved.DurationMinutes != 45 {
		t.Fatalf("moved = %+v", moved)
	}
}
