package models

import (
	"time"

	"github.com/google/uuid"
)

// Session-request statuses. CANCELLED and REJECTED are terminal;
// completion is implied by time passing and is not modeled.
const (
	RequestPending   = "PENDING"
	RequestAssigned  = "ASSIGNED"
	RequestCancelled = "CANCELLED"
	RequestRejected  = "REJECTED"
)

type SessionRequest struct {
	ID              uuid.UUID  `json:"id"`
	StudentID       uuid.UUID  `json:"student_id"`
	TutorID         *uuid.UUID `json:"tutor_id"`
	PreferredDate   string     `json:"preferred_date"`
	PreferredTime   string     `json:"preferred_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	TutorEventID    *string    `json:"tutor_event_id"`
	StudentEventID  *string    `json:"student_event_id"`
	MeetLink        *string    `json:"meet_link"`
	RejectionReason *string    `json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type CreateSessionRequestRequest struct {
	PreferredDate   string `json:"preferred_date"`
	PreferredTime   string `json:"preferred_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Subject         string `json:"subject"`
	Description     string `json:"description"`
}

type AssignRequestRequest struct {
	TutorID           string `json:"tutor_id"`
	ScheduledDateTime string `json:"scheduled_datetime"`
}

type UpdateRequestStatusRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
}
