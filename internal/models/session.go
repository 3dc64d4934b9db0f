package models

import (
	"time"

	"github.com/google/uuid"
)

// Session types
const (
	SessionOneToOne    = "ONE_TO_ONE"
	SessionSmartQuad   = "SMART_QUAD"
	SessionMasterclass = "MASTERCLASS"
)

// Session statuses
const (
	StatusScheduled = "SCHEDULED"
	StatusOngoing   = "ONGOING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// DefaultMaxParticipants maps each session type to its capacity when the
// creator does not override it.
var DefaultMaxParticipants = map[string]int{
	SessionOneToOne:    1,
	SessionSmartQuad:   4,
	SessionMasterclass: 15,
}

func ValidSessionType(t string) bool {
	_, ok := DefaultMaxParticipants[t]
	return ok
}

type Session struct {
	ID                  uuid.UUID `json:"id"`
	TutorID             uuid.UUID `json:"tutor_id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	SessionType         string    `json:"session_type"`
	CourseType          *string   `json:"course_type"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	GoogleEventID       *string   `json:"google_event_id"`
	MeetLink            *string   `json:"meet_link"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// ParticipantIDs is the enrolled-student roster, populated on single
	// reads for the session's tutor and admins only.
	ParticipantIDs []uuid.UUID `json:"participant_ids,omitempty"`
}

type CreateSessionRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	SessionType     string  `json:"session_type"`
	CourseType      *string `json:"course_type"`
	MaxParticipants int     `json:"max_participants"`
}

type UpdateSessionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Status      *string `json:"status"`
}

// InviteOutcome is one student's slot in a masterclass invite report.
type InviteOutcome struct {
	StudentID uuid.UUID `json:"student_id"`
	Email     string    `json:"email"`
	Reason    string    `json:"reason,omitempty"`
}

// CalendarInviteReport summarizes the best-effort bulk invite of a
// masterclass. A partial batch is still a successful masterclass.
type CalendarInviteReport struct {
	Successful    []InviteOutcome `json:"successful"`
	Failed        []InviteOutcome `json:"failed"`
	TotalStudents int             `json:"totalStudents"`
}

type MasterclassResponse struct {
	Session         *Session              `json:"session"`
	CalendarInvites *CalendarInviteReport `json:"calendarInvites"`
}

// VisibilityScope is computed once per request from the actor's role and
// assignments, then passed down to the repository query builder.
type VisibilityScope struct {
	All        bool        // ADMIN
	OwnerID    *uuid.UUID  // TUTOR: only sessions they created
	TutorIDs   []uuid.UUID // STUDENT: sessions of assigned tutors
	CourseType *string     // STUDENT: plus masterclasses for their course
}
