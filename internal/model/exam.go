package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the lifecycle states of an exam sitting.
type ExamStatus string

const (
	ExamStatusPending  ExamStatus = "PENDING"
	ExamStatusActive   ExamStatus = "ACTIVE"
	ExamStatusFinished ExamStatus = "FINISHED"
)

// Exam represents a supervised exam sitting. Its time window is always
// derived from StartTime, DurationMinutes and ExtraTimeMinutes; the end
// time is never stored.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	SubjectName      string     `json:"subject_name"`
	StartTime        time.Time  `json:"start_time"`
	DurationMinutes  int        `json:"duration_minutes"`
	ExtraTimeMinutes int        `json:"extra_time_minutes"`
	Status           ExamStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateExamRequest is the payload for creating a new exam sitting.
type CreateExamRequest struct {
	Title           string    `json:"title" binding:"required,min=3,max=255"`
	SubjectName     string    `json:"subject_name" binding:"required,min=2,max=100"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// RescheduleExamRequest moves an exam to a new start time and/or duration.
// The change is committed only when it introduces no scheduling conflicts.
type RescheduleExamRequest struct {
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// GrantExtraTimeRequest adds session-wide extra minutes to a running exam.
type GrantExtraTimeRequest struct {
	ExtraMinutes int `json:"extra_minutes" binding:"required,min=1,max=240"`
}
