package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/vigil-backend/internal/model"
)

func day(hour, minute int) time.Time {
	return time.Date(2026, 3, 9, hour, minute, 0, 0, time.UTC)
}

func newConflictFixture() (*memStore, *ConflictService) {
	store := newMemStore()
	svc := NewConflictService(store, memAssignments{store}, memAttendance{store}, testLogger())
	return store, svc
}

func TestCheckConflictsCleanRequest(t *testing.T) {
	store, svc := newConflictFixture()
	exam := store.addExam("Physics", day(9, 0), 90, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:       exam.ID,
		RoomNumber:   "A-101",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", conflicts)
	}
}

func TestCheckConflictsUnknownExamYieldsNone(t *testing.T) {
	_, svc := newConflictFixture()

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:     uuid.New(),
		RoomNumber: "A-101",
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for unresolvable exam, got %v", conflicts)
	}
}

func TestCheckConflictsSupervisorDoubleBooked(t *testing.T) {
	store, svc := newConflictFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)
	store.addAssignment(examA.ID, "A-101", &supervisor.ID, nil)

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindAssignSupervisor, model.ConflictCheckRequest{
		ExamID:       examB.ID,
		RoomNumber:   "B-201",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d: %v", len(conflicts), conflicts)
	}
	if !strings.Contains(conflicts[0].Message, "already assigned") {
		t.Errorf("unexpected message %q", conflicts[0].Message)
	}
}

// A supervisor claiming a second room of the SAME exam still conflicts;
// only the floor-supervisor seat is exempt within one exam.
func TestCheckConflictsSupervisorSameExamStillConflicts(t *testing.T) {
	store, svc := newConflictFixture()
	exam := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)
	store.addAssignment(exam.ID, "A-101", &supervisor.ID, nil)

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:       exam.ID,
		RoomNumber:   "A-102",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected the same-exam supervisor collision to be reported, got %v", conflicts)
	}
}

func TestCheckConflictsFloorSupervisorSameExamExempt(t *testing.T) {
	store, svc := newConflictFixture()
	exam := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	other := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	floor := store.addProfile("Margaret Ellison", model.RoleFloorSupervisor, 0)
	store.addAssignment(exam.ID, "A-101", nil, &floor.ID)

	// Same exam, second room: covering several rooms of one sitting is
	// exactly what a floor supervisor is for.
	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:            exam.ID,
		RoomNumber:        "A-102",
		FloorSupervisorID: &floor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("same-exam floor supervisor must be exempt, got %v", conflicts)
	}

	// A different overlapping exam still conflicts.
	conflicts, err = svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:            other.ID,
		RoomNumber:        "B-201",
		FloorSupervisorID: &floor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("cross-exam floor supervisor collision must be reported, got %v", conflicts)
	}
}

func TestCheckConflictsRoomCaseInsensitive(t *testing.T) {
	store, svc := newConflictFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	store.addAssignment(examA.ID, "a-101", nil, nil)

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:     examB.ID,
		RoomNumber: "A-101",
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected case-insensitive room collision, got %v", conflicts)
	}
	if !strings.Contains(conflicts[0].Message, "already occupied") {
		t.Errorf("unexpected message %q", conflicts[0].Message)
	}
}

func TestCheckConflictsRoomNonOverlappingClean(t *testing.T) {
	store, svc := newConflictFixture()
	examA := store.addExam("Physics", day(9, 0), 60, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 60, model.ExamStatusPending)
	store.addAssignment(examA.ID, "A-101", nil, nil)

	// Back to back: examA ends 10:00 exactly when examB starts.
	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:     examB.ID,
		RoomNumber: "A-101",
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("back-to-back windows must not conflict, got %v", conflicts)
	}
}

func TestCheckConflictsUpdateExcludesSelf(t *testing.T) {
	store, svc := newConflictFixture()
	exam := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)
	assignment := store.addAssignment(exam.ID, "A-101", &supervisor.ID, nil)

	// Re-saving the assignment unchanged must not collide with itself.
	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomUpdate, model.ConflictCheckRequest{
		ExamID:       exam.ID,
		AssignmentID: &assignment.ID,
		RoomNumber:   "A-101",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("assignment under edit must be excluded, got %v", conflicts)
	}
}

func TestCheckConflictsStudentDoubleBooked(t *testing.T) {
	store, svc := newConflictFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	student := store.addProfile("Alice Morgan", model.RoleStudent, 0)
	assignmentA := store.addAssignment(examA.ID, "A-101", nil, nil)
	store.addAttendance(assignmentA.ID, student.ID, model.AttendanceAbsent)

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindBulkImportRow, model.ConflictCheckRequest{
		ExamID:    examB.ID,
		StudentID: &student.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected student double-booking conflict, got %v", conflicts)
	}

	// Another room of the same exam is not a double-booking.
	conflicts, err = svc.CheckConflicts(context.Background(), model.ConflictKindBulkImportRow, model.ConflictCheckRequest{
		ExamID:    examA.ID,
		StudentID: &student.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("same-exam enrollment must not report a conflict, got %v", conflicts)
	}
}

// All applicable checks report cumulatively in one pass.
func TestCheckConflictsCumulative(t *testing.T) {
	store, svc := newConflictFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)
	store.addAssignment(examA.ID, "A-101", &supervisor.ID, nil)

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindClassroomCreate, model.ConflictCheckRequest{
		ExamID:       examB.ID,
		RoomNumber:   "A-101",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected supervisor and room conflicts together, got %d: %v", len(conflicts), conflicts)
	}
}

// Exam reschedule validates the proposed window, not the stored one.
func TestCheckConflictsRescheduleProposedWindow(t *testing.T) {
	store, svc := newConflictFixture()
	examA := store.addExam("Physics", day(9, 0), 60, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(13, 0), 60, model.ExamStatusPending)
	store.addAssignment(examA.ID, "A-101", nil, nil)
	assignmentB := store.addAssignment(examB.ID, "A-101", nil, nil)

	// Stored windows are disjoint; the proposed move of examB onto the
	// morning collides.
	proposedStart := day(9, 30).Unix()
	proposedDuration := 60
	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindExamReschedule, model.ConflictCheckRequest{
		ExamID:                  examB.ID,
		AssignmentID:            &assignmentB.ID,
		RoomNumber:              "A-101",
		ProposedStart:           &proposedStart,
		ProposedDurationMinutes: &proposedDuration,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected the proposed window to collide, got %v", conflicts)
	}
}

func TestCheckConflictsBreakLock(t *testing.T) {
	store, svc := newConflictFixture()
	exam := store.addExam("Physics", day(9, 0), 120, model.ExamStatusActive)
	assignment := store.addAssignment(exam.ID, "A-101", nil, nil)
	alice := store.addAttendance(assignment.ID, uuid.New(), model.AttendanceOnBreak)
	ben := store.addAttendance(assignment.ID, uuid.New(), model.AttendancePresent)
	store.addOpenBreak(alice.ID, day(9, 30))

	conflicts, err := svc.CheckConflicts(context.Background(), model.ConflictKindBreakLock, model.ConflictCheckRequest{
		ExamID:           exam.ID,
		RoomAssignmentID: &assignment.ID,
		AttendanceID:     &ben.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected break-lock conflict while the pass is held, got %v", conflicts)
	}

	// The holder's own check is not blocked by their own break.
	conflicts, err = svc.CheckConflicts(context.Background(), model.ConflictKindBreakLock, model.ConflictCheckRequest{
		ExamID:           exam.ID,
		RoomAssignmentID: &assignment.ID,
		AttendanceID:     &alice.ID,
	})
	if err != nil {
		t.Fatalf("CheckConflicts() error = %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("holder must not conflict with own break, got %v", conflicts)
	}
}
