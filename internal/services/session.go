package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/repository"
)

// Narrow store interfaces so the controller can be exercised against fakes.

type sessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	CreateMasterclass(ctx context.Context, s *models.Session, studentIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	List(ctx context.Context, scope models.VisibilityScope, filter repository.SessionFilter) ([]*models.Session, error)
	Update(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetCalendarFields(ctx context.Context, id uuid.UUID, eventID, meetLink *string) error
	AddParticipant(ctx context.Context, sessionID, studentID uuid.UUID) error
	ListParticipantIDs(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
	MarkElapsedCompleted(ctx context.Context, now time.Time) (int64, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListActiveStudentsByCourse(ctx context.Context, courseType string) ([]*models.User, error)
}

type assignmentStore interface {
	Exists(ctx context.Context, tutorID, studentID uuid.UUID) (bool, error)
	ListTutorIDsOf(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error)
}

// SessionService drives the session lifecycle. The persisted row is the
// source of truth; the calendar is a best-effort mirror updated strictly
// after the primary write commits.
type SessionService struct {
	sessions    sessionStore
	users       userStore
	assignments assignmentStore
	orch        *Orchestrator
	now         func() time.Time
}

func NewSessionService(sessions sessionStore, users userStore, assignments assignmentStore, orch *Orchestrator) *SessionService {
	return &SessionService{
		sessions:    sessions,
		users:       users,
		assignments: assignments,
		orch:        orch,
		now:         time.Now,
	}
}

// canMutateSession is the single authorization predicate for session
// mutation: tutors touch only their own sessions, admins touch any.
func canMutateSession(actor models.Actor, session *models.Session) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsTutor() && session.TutorID == actor.ID
}

// visibilityFor computes the actor's visibility scope once per request.
// Students see sessions of their assigned tutors plus any masterclass for
// their course type; tutors see only what they created; admins see all.
func (s *SessionService) visibilityFor(ctx context.Context, actor models.Actor) (models.VisibilityScope, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return models.VisibilityScope{All: true}, nil
	case models.RoleTutor:
		id := actor.ID
		return models.VisibilityScope{OwnerID: &id}, nil
	default:
		tutorIDs, err := s.assignments.ListTutorIDsOf(ctx, actor.ID)
		if err != nil {
			return models.VisibilityScope{}, err
		}
		return models.VisibilityScope{TutorIDs: tutorIDs, CourseType: actor.CourseType}, nil
	}
}

func parseSessionTimes(startStr, endStr string) (time.Time, time.Time, map[string]string) {
	fields := make(map[string]string)
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		fields["start_time"] = "Must be a valid RFC 3339 timestamp"
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		fields["end_time"] = "Must be a valid RFC 3339 timestamp"
	}
	return start, end, fields
}

func (s *SessionService) Create(ctx context.Context, actor models.Actor, req models.CreateSessionRequest) (*models.Session, error) {
	if !actor.IsTutor() && !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only tutors can create sessions"}
	}

	fields := make(map[string]string)
	if req.Title == "" {
		fields["title"] = "Title is required"
	}
	if !models.ValidSessionType(req.SessionType) {
		fields["session_type"] = "Must be ONE_TO_ONE, SMART_QUAD or MASTERCLASS"
	} else if req.SessionType == models.SessionMasterclass {
		fields["session_type"] = "Masterclasses are created through the masterclass endpoint"
	}
	if req.StartTime == "" {
		fields["start_time"] = "Start time is required"
	}
	if req.EndTime == "" {
		fields["end_time"] = "End time is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	start, end, fields := parseSessionTimes(req.StartTime, req.EndTime)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if !start.Before(end) {
		return nil, &ValidationError{Fields: map[string]string{"start_time": "Start time must be before end time"}}
	}
	if start.Before(s.now()) {
		return nil, &ValidationError{Fields: map[string]string{"start_time": "Start time must not be in the past"}}
	}

	maxParticipants := req.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = models.DefaultMaxParticipants[req.SessionType]
	}

	session := &models.Session{
		TutorID:         actor.ID,
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       start,
		EndTime:         end,
		SessionType:     req.SessionType,
		CourseType:      req.CourseType,
		MaxParticipants: maxParticipants,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	// Best-effort calendar mirror: the session exists regardless of what
	// happens from here on.
	creator, err := s.users.GetByID(ctx, actor.ID)
	if err == nil && creator.CalendarConnected {
		result := s.orch.CreateMeeting(ctx, []Participant{{User: creator, Organizer: true}}, MeetingDetails{
			Title:       session.Title,
			Description: session.Description,
			Start:       session.StartTime,
			End:         session.EndTime,
		})
		s.applyCalendarResult(ctx, session, creator.ID, result)
	}

	return session, nil
}

// applyCalendarResult copies the organizer's event onto the row; failures
// were already logged and recorded per participant.
func (s *SessionService) applyCalendarResult(ctx context.Context, session *models.Session, organizerID uuid.UUID, result *MeetingResult) {
	event := result.EventFor(organizerID)
	if event == nil && result.MeetLink == "" {
		return
	}

	var eventID, meetLink *string
	if event != nil {
		eventID = &event.EventID
	}
	if result.MeetLink != "" {
		link := result.MeetLink
		meetLink = &link
	}
	session.GoogleEventID = eventID
	session.MeetLink = meetLink
	if err := s.sessions.SetCalendarFields(ctx, session.ID, eventID, meetLink); err != nil {
		log.Printf("failed to persist calendar fields for session %s: %v", session.ID, err)
	}
}

// CreateMasterclass creates an admin-owned masterclass and bulk-invites
// every active student of the course type. The session row and enrollments
// commit in one transaction; calendar invites run after commit and a
// partial batch is still a successful masterclass.
func (s *SessionService) CreateMasterclass(ctx context.Context, actor models.Actor, req models.CreateSessionRequest) (*models.MasterclassResponse, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can create masterclasses"}
	}

	fields := make(map[string]string)
	if req.Title == "" {
		fields["title"] = "Title is required"
	}
	if req.CourseType == nil || *req.CourseType == "" {
		fields["course_type"] = "Course type is required"
	}
	if req.StartTime == "" {
		fields["start_time"] = "Start time is required"
	}
	if req.EndTime == "" {
		fields["end_time"] = "End time is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	start, end, fields := parseSessionTimes(req.StartTime, req.EndTime)
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	if !start.Before(end) {
		return nil, &ValidationError{Fields: map[string]string{"start_time": "Start time must be before end time"}}
	}
	// Stricter than regular sessions: strictly in the future.
	if !start.After(s.now()) {
		return nil, &ValidationError{Fields: map[string]string{"start_time": "Start time must be in the future"}}
	}

	students, err := s.users.ListActiveStudentsByCourse(ctx, *req.CourseType)
	if err != nil {
		return nil, err
	}

	maxParticipants := req.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = models.DefaultMaxParticipants[models.SessionMasterclass]
	}
	if len(students) > maxParticipants {
		maxParticipants = len(students)
	}

	session := &models.Session{
		TutorID:         actor.ID,
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       start,
		EndTime:         end,
		SessionType:     models.SessionMasterclass,
		CourseType:      req.CourseType,
		MaxParticipants: maxParticipants,
	}

	studentIDs := make([]uuid.UUID, len(students))
	for i, st := range students {
		studentIDs[i] = st.ID
	}
	if err := s.sessions.CreateMasterclass(ctx, session, studentIDs); err != nil {
		return nil, err
	}

	admin, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	participants := make([]Participant, 0, len(students)+1)
	participants = append(participants, Participant{User: admin, Organizer: true})
	for _, st := range students {
		participants = append(participants, Participant{User: st})
	}

	result := s.orch.CreateMeeting(ctx, participants, MeetingDetails{
		Title:       session.Title,
		Description: session.Description,
		Start:       session.StartTime,
		End:         session.EndTime,
	})
	s.applyCalendarResult(ctx, session, admin.ID, result)

	report := &models.CalendarInviteReport{
		Successful:    make([]models.InviteOutcome, 0, len(students)),
		Failed:        make([]models.InviteOutcome, 0),
		TotalStudents: len(students),
	}
	for _, st := range students {
		outcome := models.InviteOutcome{StudentID: st.ID, Email: st.Email}
		switch {
		case result.EventFor(st.ID) != nil:
			report.Successful = append(report.Successful, outcome)
		case result.ErrorFor(st.ID) != nil:
			outcome.Reason = result.ErrorFor(st.ID).Message
			report.Failed = append(report.Failed, outcome)
		default:
			outcome.Reason = "calendar not connected"
			report.Failed = append(report.Failed, outcome)
		}
	}

	return &models.MasterclassResponse{Session: session, CalendarInvites: report}, nil
}

func (s *SessionService) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, err
	}

	visible, err := s.canSee(ctx, actor, session)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, &NotFoundError{Message: "Session not found"}
	}

	// The roster is only for those who run the session.
	if canMutateSession(actor, session) {
		ids, err := s.sessions.ListParticipantIDs(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		session.ParticipantIDs = ids
	}
	return session, nil
}

// canSee answers visibility for one session. Single-row reads check the
// tutor-student pair directly instead of materializing the full scope.
func (s *SessionService) canSee(ctx context.Context, actor models.Actor, session *models.Session) (bool, error) {
	switch {
	case actor.IsAdmin():
		return true, nil
	case actor.IsTutor():
		return session.TutorID == actor.ID, nil
	}

	assigned, err := s.assignments.Exists(ctx, session.TutorID, actor.ID)
	if err != nil {
		return false, err
	}
	if assigned {
		return true, nil
	}
	if session.SessionType == models.SessionMasterclass &&
		actor.CourseType != nil && session.CourseType != nil &&
		*actor.CourseType == *session.CourseType {
		return true, nil
	}
	return false, nil
}

func (s *SessionService) List(ctx context.Context, actor models.Actor, filter repository.SessionFilter) ([]*models.Session, error) {
	// Lazy sweep so elapsed sessions read as COMPLETED without a background
	// job; a failed sweep only delays the transition.
	if _, err := s.sessions.MarkElapsedCompleted(ctx, s.now()); err != nil {
		log.Printf("failed to sweep elapsed sessions: %v", err)
	}

	scope, err := s.visibilityFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.sessions.List(ctx, scope, filter)
}

func (s *SessionService) Update(ctx context.Context, actor models.Actor, id uuid.UUID, req models.UpdateSessionRequest) (*models.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, err
	}
	if !canMutateSession(actor, session) {
		return nil, &ForbiddenError{Message: "Not allowed to modify this session"}
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.StartTime != nil {
		start, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"start_time": "Must be a valid RFC 3339 timestamp"}}
		}
		session.StartTime = start
	}
	if req.EndTime != nil {
		end, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"end_time": "Must be a valid RFC 3339 timestamp"}}
		}
		session.EndTime = end
	}
	if !session.StartTime.Before(session.EndTime) {
		return nil, &ValidationError{Fields: map[string]string{"start_time": "Start time must be before end time"}}
	}
	if req.Status != nil {
		switch *req.Status {
		case models.StatusScheduled, models.StatusOngoing, models.StatusCompleted, models.StatusCancelled:
			session.Status = *req.Status
		default:
			return nil, &ValidationError{Fields: map[string]string{"status": "Invalid status"}}
		}
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	// Best-effort propagation of the change to the mirrored event. A
	// transition to CANCELLED takes the cancel path, not a patch.
	if session.GoogleEventID != nil {
		if owner, err := s.users.GetByID(ctx, session.TutorID); err == nil {
			refs := []EventRef{{User: owner, EventID: *session.GoogleEventID}}
			if session.Status == models.StatusCancelled {
				s.orch.CancelMeeting(ctx, refs, "")
				session.GoogleEventID = nil
				session.MeetLink = nil
				if err := s.sessions.SetCalendarFields(ctx, session.ID, nil, nil); err != nil {
					log.Printf("failed to clear calendar fields for session %s: %v", session.ID, err)
				}
			} else {
				s.orch.UpdateMeeting(ctx, refs, EventPatch{
					Title:       &session.Title,
					Description: &session.Description,
					Start:       &session.StartTime,
					End:         &session.EndTime,
				})
			}
		}
	}

	return session, nil
}

func (s *SessionService) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Session not found"}
		}
		return err
	}
	if !canMutateSession(actor, session) {
		return &ForbiddenError{Message: "Not allowed to delete this session"}
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}

	if session.GoogleEventID != nil {
		if owner, err := s.users.GetByID(ctx, session.TutorID); err == nil {
			s.orch.CancelMeeting(ctx,
				[]EventRef{{User: owner, EventID: *session.GoogleEventID}}, "")
		}
	}

	return nil
}

// Join seats a student. Capacity enforcement is a single conditional
// increment in the store, so concurrent joins cannot oversell a session.
func (s *SessionService) Join(ctx context.Context, actor models.Actor, sessionID uuid.UUID) error {
	if !actor.IsStudent() {
		return &ForbiddenError{Message: "Only students can join sessions"}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Session not found"}
		}
		return err
	}

	visible, err := s.canSee(ctx, actor, session)
	if err != nil {
		return err
	}
	if !visible {
		return &NotFoundError{Message: "Session not found"}
	}

	err = s.sessions.AddParticipant(ctx, sessionID, actor.ID)
	switch {
	case errors.Is(err, repository.ErrSessionFull):
		return &ConflictError{Message: "Session is full"}
	case errors.Is(err, repository.ErrAlreadyJoined):
		return &ConflictError{Message: "Already joined this session"}
	}
	return err
}
