package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tutorhub-backend/internal/models"
)

type requestStore interface {
	Create(ctx context.Context, req *models.SessionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SessionRequest, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.SessionRequest, error)
	ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*models.SessionRequest, error)
	ListAll(ctx context.Context) ([]*models.SessionRequest, error)
	SetAssigned(ctx context.Context, req *models.SessionRequest) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error
}

type requestNotifier interface {
	SendSessionScheduled(to, subject string, start time.Time, meetLink string) error
}

// SessionRequestService drives the student-initiated request flow:
// PENDING -> ASSIGNED (admin) -> CANCELLED, or PENDING -> REJECTED (admin).
// CANCELLED and REJECTED are terminal.
type SessionRequestService struct {
	requests requestStore
	users    userStore
	orch     *Orchestrator
	email    requestNotifier
	now      func() time.Time
}

func NewSessionRequestService(requests requestStore, users userStore, orch *Orchestrator, email requestNotifier) *SessionRequestService {
	return &SessionRequestService{requests: requests, users: users, orch: orch, email: email, now: time.Now}
}

func (s *SessionRequestService) Create(ctx context.Context, actor models.Actor, req models.CreateSessionRequestRequest) (*models.SessionRequest, error) {
	if !actor.IsStudent() {
		return nil, &ForbiddenError{Message: "Only students can request sessions"}
	}

	fields := make(map[string]string)
	if req.Subject == "" {
		fields["subject"] = "Subject is required"
	}
	if req.DurationMinutes <= 0 {
		fields["duration_minutes"] = "Duration must be positive"
	}
	if _, err := time.Parse("2006-01-02", req.PreferredDate); err != nil {
		fields["preferred_date"] = "Must be YYYY-MM-DD"
	}
	if _, err := time.Parse("15:04", req.PreferredTime); err != nil {
		fields["preferred_time"] = "Must be HH:MM"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	request := &models.SessionRequest{
		StudentID:       actor.ID,
		PreferredDate:   req.PreferredDate,
		PreferredTime:   req.PreferredTime,
		DurationMinutes: req.DurationMinutes,
		Subject:         req.Subject,
		Description:     req.Description,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *SessionRequestService) List(ctx context.Context, actor models.Actor) ([]*models.SessionRequest, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return s.requests.ListAll(ctx)
	case models.RoleTutor:
		return s.requests.ListByTutor(ctx, actor.ID)
	default:
		return s.requests.ListByStudent(ctx, actor.ID)
	}
}

func (s *SessionRequestService) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.SessionRequest, error) {
	request, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != request.StudentID &&
		(request.TutorID == nil || actor.ID != *request.TutorID) {
		return nil, &NotFoundError{Message: "Session request not found"}
	}
	return request, nil
}

// AssignResult pairs the updated request with whatever did not make it to
// the calendar; a partial calendar outcome never blocks the assignment.
type AssignResult struct {
	Request        *models.SessionRequest `json:"request"`
	CalendarErrors []ParticipantError     `json:"calendar_errors,omitempty"`
}

// Assign resolves the meeting time, mirrors the meeting into the tutor's
// and student's calendars as two independent participants, and transitions
// the request to ASSIGNED with whatever subset of calendar data succeeded.
func (s *SessionRequestService) Assign(ctx context.Context, actor models.Actor, id uuid.UUID, tutorID uuid.UUID, scheduledDateTime string) (*AssignResult, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can assign session requests"}
	}

	request, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, &ConflictError{Message: fmt.Sprintf("Cannot assign a request in status %s", request.Status)}
	}

	tutor, err := s.users.GetByID(ctx, tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Tutor not found"}
		}
		return nil, err
	}
	if tutor.Role != models.RoleTutor {
		return nil, &ValidationError{Fields: map[string]string{"tutor_id": "User is not a tutor"}}
	}
	student, err := s.users.GetByID(ctx, request.StudentID)
	if err != nil {
		return nil, err
	}

	start, err := s.resolveMeetingTime(request, scheduledDateTime)
	if err != nil {
		return nil, err
	}
	end := start.Add(time.Duration(request.DurationMinutes) * time.Minute)

	result := s.orch.CreateMeeting(ctx, []Participant{
		{User: tutor, Organizer: true},
		{User: student},
	}, MeetingDetails{
		Title:       fmt.Sprintf("Tutoring: %s", request.Subject),
		Description: request.Description,
		Start:       start,
		End:         end,
	})

	request.TutorID = &tutor.ID
	request.Status = models.RequestAssigned
	request.ScheduledAt = &start
	if event := result.EventFor(tutor.ID); event != nil {
		request.TutorEventID = &event.EventID
	}
	if event := result.EventFor(student.ID); event != nil {
		request.StudentEventID = &event.EventID
	}
	if result.MeetLink != "" {
		link := result.MeetLink
		request.MeetLink = &link
	}

	if err := s.requests.SetAssigned(ctx, request); err != nil {
		return nil, err
	}

	go s.notifyScheduled(student.Email, request)
	go s.notifyScheduled(tutor.Email, request)

	return &AssignResult{Request: request, CalendarErrors: result.Errors}, nil
}

// resolveMeetingTime prefers the admin's explicit datetime and falls back
// to the student's preferred date and time.
func (s *SessionRequestService) resolveMeetingTime(request *models.SessionRequest, scheduledDateTime string) (time.Time, error) {
	if scheduledDateTime != "" {
		start, err := time.Parse(time.RFC3339, scheduledDateTime)
		if err != nil {
			return time.Time{}, &ValidationError{Fields: map[string]string{"scheduled_datetime": "Must be a valid RFC 3339 timestamp"}}
		}
		return start, nil
	}
	start, err := time.Parse("2006-01-02 15:04", request.PreferredDate+" "+request.PreferredTime)
	if err != nil {
		return time.Time{}, &ValidationError{Fields: map[string]string{"scheduled_datetime": "Request has no usable preferred date/time"}}
	}
	return start.UTC(), nil
}

func (s *SessionRequestService) notifyScheduled(to string, request *models.SessionRequest) {
	if s.email == nil || request.ScheduledAt == nil {
		return
	}
	link := ""
	if request.MeetLink != nil {
		link = *request.MeetLink
	}
	if err := s.email.SendSessionScheduled(to, request.Subject, *request.ScheduledAt, link); err != nil {
		log.Printf("failed to send scheduling email to %s: %v", to, err)
	}
}

// UpdateStatus is a direct admin transition with no side effects beyond
// persisting the reason for a rejection.
func (s *SessionRequestService) UpdateStatus(ctx context.Context, actor models.Actor, id uuid.UUID, status, rejectionReason string) (*models.SessionRequest, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can update request status"}
	}
	switch status {
	case models.RequestPending, models.RequestAssigned, models.RequestCancelled, models.RequestRejected:
	default:
		return nil, &ValidationError{Fields: map[string]string{"status": "Invalid status"}}
	}

	request, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	var reason *string
	if status == models.RequestRejected && rejectionReason != "" {
		reason = &rejectionReason
	}
	if err := s.requests.UpdateStatus(ctx, id, status, reason); err != nil {
		return nil, err
	}
	request.Status = status
	request.RejectionReason = reason
	return request, nil
}

// Cancel lets the owning student withdraw a request from PENDING or
// ASSIGNED. Existing calendar events are cancelled best-effort; a failure
// there never blocks the status transition.
func (s *SessionRequestService) Cancel(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.SessionRequest, error) {
	request, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStudent() || actor.ID != request.StudentID {
		return nil, &ForbiddenError{Message: "Only the requesting student can cancel"}
	}
	if request.Status != models.RequestPending && request.Status != models.RequestAssigned {
		return nil, &ConflictError{Message: fmt.Sprintf("Cannot cancel a request in status %s", request.Status)}
	}

	s.cancelRequestEvents(ctx, request, "Cancelled by the student")

	if err := s.requests.UpdateStatus(ctx, id, models.RequestCancelled, nil); err != nil {
		return nil, err
	}
	request.Status = models.RequestCancelled
	return request, nil
}

// AdminCancel is permitted from any non-terminal state; the reason is
// embedded in the mirrored events' descriptions.
func (s *SessionRequestService) AdminCancel(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) (*models.SessionRequest, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can cancel session requests"}
	}

	request, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status == models.RequestCancelled || request.Status == models.RequestRejected {
		return nil, &ConflictError{Message: fmt.Sprintf("Request is already in terminal status %s", request.Status)}
	}

	if reason == "" {
		reason = "Cancelled by an administrator"
	}
	s.cancelRequestEvents(ctx, request, reason)

	if err := s.requests.UpdateStatus(ctx, id, models.RequestCancelled, nil); err != nil {
		return nil, err
	}
	request.Status = models.RequestCancelled
	return request, nil
}

func (s *SessionRequestService) cancelRequestEvents(ctx context.Context, request *models.SessionRequest, reason string) {
	refs := make([]EventRef, 0, 2)
	if request.TutorID != nil && request.TutorEventID != nil {
		if tutor, err := s.users.GetByID(ctx, *request.TutorID); err == nil {
			refs = append(refs, EventRef{User: tutor, EventID: *request.TutorEventID})
		}
	}
	if request.StudentEventID != nil {
		if student, err := s.users.GetByID(ctx, request.StudentID); err == nil {
			refs = append(refs, EventRef{User: student, EventID: *request.StudentEventID})
		}
	}
	if len(refs) == 0 {
		return
	}
	if result := s.orch.CancelMeeting(ctx, refs, reason); len(result.Errors) > 0 {
		log.Printf("request %s: %d calendar cancellation(s) failed", request.ID, len(result.Errors))
	}
}

func (s *SessionRequestService) getRequest(ctx context.Context, id uuid.UUID) (*models.SessionRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Session request not found"}
		}
		return nil, err
	}
	return request, nil
}
