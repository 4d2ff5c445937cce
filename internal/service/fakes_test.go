package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/repository"
)

// memStore is an in-memory stand-in for the pgx repositories. It
// reproduces the guarded-transition semantics of the SQL statements:
// every mutation checks the current status and reports changed=false
// when the guard fails, exactly like a conditional UPDATE matching zero
// rows.
type memStore struct {
	mu          sync.Mutex
	exams       map[uuid.UUID]*model.Exam
	profiles    map[uuid.UUID]*model.Profile
	assignments map[uuid.UUID]*model.RoomAssignment
	attendance  map[uuid.UUID]*model.AttendanceRecord
	breaks      []*model.BreakRecord
}

func newMemStore() *memStore {
	return &memStore{
		exams:       make(map[uuid.UUID]*model.Exam),
		profiles:    make(map[uuid.UUID]*model.Profile),
		assignments: make(map[uuid.UUID]*model.RoomAssignment),
		attendance:  make(map[uuid.UUID]*model.AttendanceRecord),
	}
}

// ─── seeding helpers ────────────────────────────────────────────────

func (m *memStore) addExam(title string, start time.Time, durationMinutes int, status model.ExamStatus) *model.Exam {
	e := &model.Exam{
		ID:              uuid.New(),
		Title:           title,
		SubjectName:     title,
		StartTime:       start,
		DurationMinutes: durationMinutes,
		Status:          status,
	}
	m.exams[e.ID] = e
	return e
}

func (m *memStore) addProfile(name string, role model.ProfileRole, extensionPercent int) *model.Profile {
	p := &model.Profile{
		ID:               uuid.New(),
		FullName:         name,
		Role:             role,
		ExtensionPercent: extensionPercent,
	}
	m.profiles[p.ID] = p
	return p
}

func (m *memStore) addAssignment(examID uuid.UUID, room string, supervisorID, floorSupervisorID *uuid.UUID) *model.RoomAssignment {
	a := &model.RoomAssignment{
		ID:                uuid.New(),
		ExamID:            examID,
		RoomNumber:        room,
		SupervisorID:      supervisorID,
		FloorSupervisorID: floorSupervisorID,
	}
	m.assignments[a.ID] = a
	return a
}

func (m *memStore) addAttendance(assignmentID, studentID uuid.UUID, status model.AttendanceStatus) *model.AttendanceRecord {
	r := &model.AttendanceRecord{
		ID:               uuid.New(),
		StudentID:        studentID,
		RoomAssignmentID: assignmentID,
		Status:           status,
	}
	m.attendance[r.ID] = r
	return r
}

func (m *memStore) addOpenBreak(attendanceID uuid.UUID, exitTime time.Time) *model.BreakRecord {
	b := &model.BreakRecord{
		ID:           uuid.New(),
		AttendanceID: attendanceID,
		ExitTime:     exitTime,
		Reason:       model.DefaultBreakReason,
	}
	m.breaks = append(m.breaks, b)
	return b
}

// ─── ExamStore ──────────────────────────────────────────────────────

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) Create(ctx context.Context, e *model.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.Status = model.ExamStatusPending
	cp := *e
	m.exams[e.ID] = &cp
	return nil
}

func (m *memStore) List(ctx context.Context) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Exam, 0, len(m.exams))
	for _, e := range m.exams {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) ListByStatus(ctx context.Context, statuses ...model.ExamStatus) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		for _, st := range statuses {
			if e.Status == st {
				out = append(out, *e)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}

func (m *memStore) UpdateSchedule(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	e.StartTime = start
	e.DurationMinutes = durationMinutes
	return nil
}

func (m *memStore) AddExtraTime(ctx context.Context, id uuid.UUID, minutes int) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	e.ExtraTimeMinutes += minutes
	cp := *e
	return &cp, nil
}

// ─── AssignmentStore ────────────────────────────────────────────────
// The wrapper types below exist because the store interfaces share
// method names (GetByID, Create) with different signatures.

type memAssignments struct{ *memStore }

func (m memAssignments) GetByID(ctx context.Context, id uuid.UUID) (*model.RoomAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m memAssignments) Create(ctx context.Context, a *model.RoomAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m memAssignments) Update(ctx context.Context, a *model.RoomAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *a
	m.assignments[a.ID] = &cp
	return nil
}

func (m memAssignments) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, id)
	return nil
}

func (m memAssignments) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.RoomAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoomAssignment
	for _, a := range m.assignments {
		if a.ExamID == examID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m memAssignments) ListBySupervisor(ctx context.Context, supervisorID uuid.UUID) ([]model.RoomAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoomAssignment
	for _, a := range m.assignments {
		if (a.SupervisorID != nil && *a.SupervisorID == supervisorID) ||
			(a.FloorSupervisorID != nil && *a.FloorSupervisorID == supervisorID) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m memAssignments) ListByRoomNumber(ctx context.Context, roomNumber string) ([]model.RoomAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoomAssignment
	for _, a := range m.assignments {
		if strings.EqualFold(a.RoomNumber, roomNumber) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m memAssignments) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.RoomAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RoomAssignment
	for _, r := range m.attendance {
		if r.StudentID != studentID {
			continue
		}
		if a, ok := m.assignments[r.RoomAssignmentID]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

// ─── ProfileStore ───────────────────────────────────────────────────

type memProfiles struct{ *memStore }

func (m memProfiles) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m memProfiles) Create(ctx context.Context, p *model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m memProfiles) ListByRole(ctx context.Context, role model.ProfileRole) ([]model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Profile
	for _, p := range m.profiles {
		if p.Role == role {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m memProfiles) SetExtensionPercent(ctx context.Context, id uuid.UUID, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok || p.Role != model.RoleStudent {
		return pgx.ErrNoRows
	}
	p.ExtensionPercent = percent
	return nil
}

// ─── AttendanceStore ────────────────────────────────────────────────

type memAttendance struct{ *memStore }

func (m memAttendance) GetByID(ctx context.Context, id uuid.UUID) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.attendance[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m memAttendance) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.attendance {
		a, ok := m.assignments[r.RoomAssignmentID]
		if ok && a.ExamID == examID && r.StudentID == studentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memAttendance) Enroll(ctx context.Context, assignmentID, studentID uuid.UUID) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.attendance {
		if r.RoomAssignmentID == assignmentID && r.StudentID == studentID {
			cp := *r
			return &cp, nil
		}
	}
	r := &model.AttendanceRecord{
		ID:               uuid.New(),
		StudentID:        studentID,
		RoomAssignmentID: assignmentID,
		Status:           model.AttendanceAbsent,
	}
	m.attendance[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m memAttendance) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]repository.RosterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.RosterEntry
	for _, r := range m.attendance {
		if r.RoomAssignmentID != assignmentID {
			continue
		}
		entry := repository.RosterEntry{AttendanceRecord: *r}
		if p, ok := m.profiles[r.StudentID]; ok {
			entry.StudentName = p.FullName
			entry.ExtensionPercent = p.ExtensionPercent
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m memAttendance) ListBreaks(ctx context.Context, attendanceID uuid.UUID) ([]model.BreakRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BreakRecord
	for _, b := range m.breaks {
		if b.AttendanceID == attendanceID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m memAttendance) Admit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.attendance[id]
	if !ok || r.Status != model.AttendanceAbsent {
		return false, nil
	}
	r.Status = model.AttendancePresent
	if r.CheckInTime == nil {
		t := now
		r.CheckInTime = &t
	}
	return true, nil
}

func (m memAttendance) StartBreak(ctx context.Context, id, roomAssignmentID uuid.UUID, now time.Time, reason string) (changed, locked bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.attendance[id]
	if !ok || r.Status != model.AttendancePresent {
		return false, false, nil
	}
	if m.otherOpenBreakInRoomLocked(roomAssignmentID, id) {
		return false, true, nil
	}
	r.Status = model.AttendanceOnBreak
	m.breaks = append(m.breaks, &model.BreakRecord{
		ID:           uuid.New(),
		AttendanceID: id,
		ExitTime:     now,
		Reason:       reason,
	})
	return true, false, nil
}

func (m memAttendance) EndBreak(ctx context.Context, id uuid.UUID, now time.Time) (changed, closedBreak bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.attendance[id]
	if !ok || r.Status != model.AttendanceOnBreak {
		return false, false, nil
	}
	r.Status = model.AttendancePresent
	return true, m.closeOpenBreaksLocked(id, now) > 0, nil
}

func (m memAttendance) Submit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return m.doSubmit(id, now, false)
}

func (m memAttendance) AutoSubmit(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return m.doSubmit(id, now, true)
}

func (m memAttendance) doSubmit(id uuid.UUID, now time.Time, requireActiveExam bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.attendance[id]
	if !ok || (r.Status != model.AttendancePresent && r.Status != model.AttendanceOnBreak) {
		return false, nil
	}
	if requireActiveExam {
		a, ok := m.assignments[r.RoomAssignmentID]
		if !ok {
			return false, nil
		}
		e, ok := m.exams[a.ExamID]
		if !ok || e.Status != model.ExamStatusActive {
			return false, nil
		}
	}
	r.Status = model.AttendanceSubmitted
	if r.CheckOutTime == nil {
		t := now
		r.CheckOutTime = &t
	}
	m.closeOpenBreaksLocked(id, now)
	return true, nil
}

func (m memAttendance) HasOtherOpenBreakInRoom(ctx context.Context, roomAssignmentID, excludeAttendanceID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otherOpenBreakInRoomLocked(roomAssignmentID, excludeAttendanceID), nil
}

func (m memAttendance) ListTimedActive(ctx context.Context) ([]repository.TimedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.TimedRecord
	for _, r := range m.attendance {
		if r.Status != model.AttendancePresent && r.Status != model.AttendanceOnBreak {
			continue
		}
		a, ok := m.assignments[r.RoomAssignmentID]
		if !ok {
			continue
		}
		e, ok := m.exams[a.ExamID]
		if !ok || e.Status != model.ExamStatusActive {
			continue
		}
		tr := repository.TimedRecord{
			AttendanceID:     r.ID,
			StudentID:        r.StudentID,
			ExamID:           e.ID,
			RoomNumber:       a.RoomNumber,
			Status:           r.Status,
			StartTime:        e.StartTime,
			DurationMinutes:  e.DurationMinutes,
			ExtraTimeMinutes: e.ExtraTimeMinutes,
		}
		if p, ok := m.profiles[r.StudentID]; ok {
			tr.StudentName = p.FullName
			tr.ExtensionPercent = p.ExtensionPercent
		}
		out = append(out, tr)
	}
	return out, nil
}

func (m memAttendance) ListOpenBreaks(ctx context.Context) ([]repository.OpenBreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.OpenBreak
	for _, b := range m.breaks {
		if b.ReturnTime != nil {
			continue
		}
		r, ok := m.attendance[b.AttendanceID]
		if !ok {
			continue
		}
		a, ok := m.assignments[r.RoomAssignmentID]
		if !ok {
			continue
		}
		ob := repository.OpenBreak{
			AttendanceID: b.AttendanceID,
			StudentID:    r.StudentID,
			ExamID:       a.ExamID,
			RoomNumber:   a.RoomNumber,
			ExitTime:     b.ExitTime,
		}
		if p, ok := m.profiles[r.StudentID]; ok {
			ob.StudentName = p.FullName
		}
		out = append(out, ob)
	}
	return out, nil
}

func (m memAttendance) ForceCloseExam(ctx context.Context, examID uuid.UUID, now time.Time) ([]repository.TimedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.TimedRecord
	for _, r := range m.attendance {
		if r.Status != model.AttendancePresent && r.Status != model.AttendanceOnBreak {
			continue
		}
		a, ok := m.assignments[r.RoomAssignmentID]
		if !ok || a.ExamID != examID {
			continue
		}
		r.Status = model.AttendanceSubmitted
		if r.CheckOutTime == nil {
			t := now
			r.CheckOutTime = &t
		}
		m.closeOpenBreaksLocked(r.ID, now)
		tr := repository.TimedRecord{
			AttendanceID: r.ID,
			StudentID:    r.StudentID,
			ExamID:       examID,
			RoomNumber:   a.RoomNumber,
			Status:       r.Status,
		}
		if p, ok := m.profiles[r.StudentID]; ok {
			tr.StudentName = p.FullName
		}
		out = append(out, tr)
	}
	return out, nil
}

// callers must hold mu
func (m *memStore) otherOpenBreakInRoomLocked(roomAssignmentID, excludeAttendanceID uuid.UUID) bool {
	for _, b := range m.breaks {
		if b.ReturnTime != nil || b.AttendanceID == excludeAttendanceID {
			continue
		}
		if r, ok := m.attendance[b.AttendanceID]; ok && r.RoomAssignmentID == roomAssignmentID {
			return true
		}
	}
	return false
}

// callers must hold mu
func (m *memStore) closeOpenBreaksLocked(attendanceID uuid.UUID, now time.Time) int {
	closed := 0
	for _, b := range m.breaks {
		if b.AttendanceID == attendanceID && b.ReturnTime == nil {
			t := now
			b.ReturnTime = &t
			closed++
		}
	}
	return closed
}

// ─── EventPublisher ─────────────────────────────────────────────────

type capturedEvents struct {
	mu     sync.Mutex
	events []model.Event
}

func (c *capturedEvents) Publish(ctx context.Context, event model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturedEvents) all() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *capturedEvents) ofType(t model.EventType) []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
