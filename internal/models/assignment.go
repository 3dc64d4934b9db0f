package models

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is a durable tutor-student pairing. At most one row exists per
// pair; it is the single source of truth for cross-role visibility.
type Assignment struct {
	TutorID    uuid.UUID `json:"tutor_id"`
	StudentID  uuid.UUID `json:"student_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

type AssignTutorRequest struct {
	TutorID   string `json:"tutor_id"`
	StudentID string `json:"student_id"`
}
