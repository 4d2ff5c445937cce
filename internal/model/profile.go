package model

import (
	"time"

	"github.com/google/uuid"
)

// ProfileRole enumerates the roles a person can hold in a sitting.
type ProfileRole string

const (
	RoleStudent         ProfileRole = "STUDENT"
	RoleSupervisor      ProfileRole = "SUPERVISOR"
	RoleFloorSupervisor ProfileRole = "FLOOR_SUPERVISOR"
)

// Profile is a person known to the scheduling layer. ExtensionPercent is
// an individually granted additional fraction of the base exam duration
// (an accommodation) and is only meaningful for students.
type Profile struct {
	ID               uuid.UUID   `json:"id"`
	FullName         string      `json:"full_name"`
	Role             ProfileRole `json:"role"`
	ExtensionPercent int         `json:"extension_percent"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// CreateProfileRequest is the payload for registering a profile.
type CreateProfileRequest struct {
	FullName         string      `json:"full_name" binding:"required,min=2,max=150"`
	Role             ProfileRole `json:"role" binding:"required,oneof=STUDENT SUPERVISOR FLOOR_SUPERVISOR"`
	ExtensionPercent int         `json:"extension_percent" binding:"omitempty,min=0,max=100"`
}
