package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/vigil-backend/internal/model"
)

func newAssignmentFixture() (*memStore, *AssignmentService) {
	store := newMemStore()
	conflicts := NewConflictService(store, memAssignments{store}, memAttendance{store}, testLogger())
	svc := NewAssignmentService(memAssignments{store}, memAttendance{store}, conflicts, testLogger())
	return store, svc
}

func TestAssignmentCreateRejectsConflicts(t *testing.T) {
	store, svc := newAssignmentFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	store.addAssignment(examA.ID, "A-101", nil, nil)

	_, err := svc.Create(context.Background(), model.CreateRoomAssignmentRequest{
		ExamID:     examB.ID,
		RoomNumber: "A-101",
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("Create() error = %v, want ConflictError", err)
	}
	if len(conflictErr.Conflicts) != 1 {
		t.Fatalf("conflicts = %v", conflictErr.Conflicts)
	}

	// Nothing was committed.
	assignments, _ := svc.ListByExam(context.Background(), examB.ID)
	if len(assignments) != 0 {
		t.Fatalf("rejected create still committed: %v", assignments)
	}
}

func TestAssignmentCreateClean(t *testing.T) {
	store, svc := newAssignmentFixture()
	exam := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)

	created, err := svc.Create(context.Background(), model.CreateRoomAssignmentRequest{
		ExamID:       exam.ID,
		RoomNumber:   "A-101",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("created assignment has no ID")
	}
}

func TestAssignmentUpdateExcludesSelf(t *testing.T) {
	store, svc := newAssignmentFixture()
	exam := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	supervisor := store.addProfile("Nina Wells", model.RoleSupervisor, 0)
	assignment := store.addAssignment(exam.ID, "A-101", &supervisor.ID, nil)

	updated, err := svc.Update(context.Background(), assignment.ID, model.CreateRoomAssignmentRequest{
		ExamID:       exam.ID,
		RoomNumber:   "A-101",
		SupervisorID: &supervisor.ID,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.RoomNumber != "A-101" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestBulkImportSkipsConflictingRows(t *testing.T) {
	store, svc := newAssignmentFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	store.addAssignment(examA.ID, "A-101", nil, nil)

	alice := store.addProfile("Alice Morgan", model.RoleStudent, 0)
	ben := store.addProfile("Ben Carter", model.RoleStudent, 0)

	results, err := svc.BulkImport(context.Background(), model.BulkImportRequest{
		ExamID: examB.ID,
		Rows: []model.BulkImportRow{
			{RoomNumber: "A-101"}, // collides with examA
			{RoomNumber: "B-201", StudentIDs: []uuid.UUID{alice.ID, ben.ID}},
		},
	})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}

	if len(results[0].Conflicts) == 0 || results[0].AssignmentID != nil {
		t.Fatalf("conflicting row must be reported and skipped, got %+v", results[0])
	}
	if results[1].AssignmentID == nil || len(results[1].Conflicts) != 0 {
		t.Fatalf("clean row must be committed, got %+v", results[1])
	}

	// Clean row's students are enrolled ABSENT.
	roster, err := memAttendance{store}.ListByAssignment(context.Background(), *results[1].AssignmentID)
	if err != nil {
		t.Fatalf("ListByAssignment() error = %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster = %v", roster)
	}
	for _, entry := range roster {
		if entry.Status != model.AttendanceAbsent {
			t.Fatalf("enrolled status = %s, want ABSENT", entry.Status)
		}
	}
}

func TestBulkImportReportsStudentDoubleBooking(t *testing.T) {
	store, svc := newAssignmentFixture()
	examA := store.addExam("Physics", day(9, 0), 120, model.ExamStatusPending)
	examB := store.addExam("Chemistry", day(10, 0), 120, model.ExamStatusPending)
	alice := store.addProfile("Alice Morgan", model.RoleStudent, 0)
	assignmentA := store.addAssignment(examA.ID, "A-101", nil, nil)
	store.addAttendance(assignmentA.ID, alice.ID, model.AttendanceAbsent)

	results, err := svc.BulkImport(context.Background(), model.BulkImportRequest{
		ExamID: examB.ID,
		Rows: []model.BulkImportRow{
			{RoomNumber: "B-201", StudentIDs: []uuid.UUID{alice.ID}},
		},
	})
	if err != nil {
		t.Fatalf("BulkImport() error = %v", err)
	}
	if len(results[0].Conflicts) != 1 || results[0].AssignmentID != nil {
		t.Fatalf("double-booked student must block the row, got %+v", results[0])
	}
}
