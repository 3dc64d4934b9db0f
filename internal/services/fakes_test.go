package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/repository"
)

// ─── Calendar provider fake ───

type createdEvent struct {
	AccessToken string
	Details     EventDetails
}

type patchedEvent struct {
	EventID string
	Patch   EventPatch
}

type fakeProvider struct {
	mu         sync.Mutex
	created    []createdEvent
	patched    []patchedEvent
	deleted    []string
	failTokens map[string]bool
	refreshErr error
	rotateTo   string
	nextLink   string
	seq        int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{failTokens: make(map[string]bool), nextLink: "https://meet.example/abc-defg-hij"}
}

func (p *fakeProvider) AuthCodeURL(state string) string { return "https://accounts.example/auth?state=" + state }

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "exchanged", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)}, nil
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return &oauth2.Token{
		AccessToken:  "refreshed-" + refreshToken,
		RefreshToken: p.rotateTo,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (p *fakeProvider) Profile(ctx context.Context, token *oauth2.Token) (string, error) {
	return "profile@example.com", nil
}

func (p *fakeProvider) CreateEvent(ctx context.Context, token *oauth2.Token, details EventDetails) (*ProviderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTokens[token.AccessToken] {
		return nil, &ProviderError{Op: "create", Err: fmt.Errorf("simulated provider outage")}
	}
	p.seq++
	p.created = append(p.created, createdEvent{AccessToken: token.AccessToken, Details: details})
	event := &ProviderEvent{
		EventID:  fmt.Sprintf("evt-%d", p.seq),
		HTMLLink: fmt.Sprintf("https://calendar.example/evt-%d", p.seq),
	}
	if details.RequestMeetLink {
		event.MeetLink = p.nextLink
	}
	return event, nil
}

func (p *fakeProvider) UpdateEvent(ctx context.Context, token *oauth2.Token, eventID string, patch EventPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTokens[token.AccessToken] {
		return &ProviderError{Op: "update", Err: fmt.Errorf("simulated provider outage")}
	}
	p.patched = append(p.patched, patchedEvent{EventID: eventID, Patch: patch})
	return nil
}

func (p *fakeProvider) DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTokens[token.AccessToken] {
		return &ProviderError{Op: "delete", Err: fmt.Errorf("simulated provider outage")}
	}
	p.deleted = append(p.deleted, eventID)
	return nil
}

// ─── Credential store fake ───

type tokenUpdate struct {
	UserID      uuid.UUID
	AccessToken string
	Expiry      time.Time
}

type fakeCredStore struct {
	mu             sync.Mutex
	updates        []tokenUpdate
	refreshUpdates map[uuid.UUID]string
}

func (s *fakeCredStore) UpdateAccessToken(ctx context.Context, userID uuid.UUID, accessToken string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, tokenUpdate{UserID: userID, AccessToken: accessToken, Expiry: expiry})
	return nil
}

func (s *fakeCredStore) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshUpdates == nil {
		s.refreshUpdates = make(map[uuid.UUID]string)
	}
	s.refreshUpdates[userID] = refreshToken
	return nil
}

var errNoRows = pgx.ErrNoRows

// ─── User fixtures ───

func strPtr(s string) *string { return &s }

func connectedUser(role, email string) *models.User {
	expiry := time.Now().Add(time.Hour)
	return &models.User{
		ID:                 uuid.New(),
		Email:              email,
		FullName:           email,
		Role:               role,
		IsActive:           true,
		CalendarConnected:  true,
		GoogleAccessToken:  strPtr("tok-" + email),
		GoogleRefreshToken: strPtr("ref-" + email),
		GoogleTokenExpiry:  &expiry,
	}
}

func unconnectedUser(role, email string) *models.User {
	return &models.User{
		ID:       uuid.New(),
		Email:    email,
		FullName: email,
		Role:     role,
		IsActive: true,
	}
}

func testOrchestrator(provider *fakeProvider) *Orchestrator {
	tokens := NewTokenManager(&fakeCredStore{}, provider)
	return NewOrchestrator(tokens, provider, 5*time.Second, 3)
}

// ─── Store fakes for the session and request services ───

type fakeUserStore struct {
	users    map[uuid.UUID]*models.User
	students []*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, errNoRows
}

func (s *fakeUserStore) ListActiveStudentsByCourse(ctx context.Context, courseType string) ([]*models.User, error) {
	out := make([]*models.User, 0)
	for _, u := range s.students {
		if u.CourseType != nil && *u.CourseType == courseType {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeAssignmentStore struct {
	tutorsByStudent map[uuid.UUID][]uuid.UUID
}

func (s *fakeAssignmentStore) Exists(ctx context.Context, tutorID, studentID uuid.UUID) (bool, error) {
	for _, id := range s.tutorsByStudent[studentID] {
		if id == tutorID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeAssignmentStore) ListTutorIDsOf(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	return s.tutorsByStudent[studentID], nil
}

type fakeSessionStore struct {
	sessions    map[uuid.UUID]*models.Session
	joined      map[uuid.UUID][]uuid.UUID
	full        bool
	lastScope   models.VisibilityScope
	masterclass []uuid.UUID
	sweeps      int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[uuid.UUID]*models.Session),
		joined:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *fakeSessionStore) Create(ctx context.Context, session *models.Session) error {
	session.ID = uuid.New()
	session.Status = models.StatusScheduled
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *fakeSessionStore) CreateMasterclass(ctx context.Context, session *models.Session, studentIDs []uuid.UUID) error {
	if err := s.Create(ctx, session); err != nil {
		return err
	}
	session.CurrentParticipants = len(studentIDs)
	s.sessions[session.ID].CurrentParticipants = len(studentIDs)
	s.masterclass = studentIDs
	return nil
}

func (s *fakeSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	if session, ok := s.sessions[id]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, errNoRows
}

func (s *fakeSessionStore) List(ctx context.Context, scope models.VisibilityScope, filter repository.SessionFilter) ([]*models.Session, error) {
	s.lastScope = scope
	return nil, nil
}

func (s *fakeSessionStore) Update(ctx context.Context, session *models.Session) error {
	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *fakeSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.sessions, id)
	return nil
}

func (s *fakeSessionStore) SetCalendarFields(ctx context.Context, id uuid.UUID, eventID, meetLink *string) error {
	if session, ok := s.sessions[id]; ok {
		session.GoogleEventID = eventID
		session.MeetLink = meetLink
	}
	return nil
}

func (s *fakeSessionStore) ListParticipantIDs(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	if len(s.masterclass) > 0 {
		return s.masterclass, nil
	}
	return s.joined[sessionID], nil
}

func (s *fakeSessionStore) MarkElapsedCompleted(ctx context.Context, now time.Time) (int64, error) {
	s.sweeps++
	var n int64
	for _, session := range s.sessions {
		if session.EndTime.Before(now) && (session.Status == models.StatusScheduled || session.Status == models.StatusOngoing) {
			session.Status = models.StatusCompleted
			n++
		}
	}
	return n, nil
}

func (s *fakeSessionStore) AddParticipant(ctx context.Context, sessionID, studentID uuid.UUID) error {
	for _, id := range s.joined[sessionID] {
		if id == studentID {
			return repository.ErrAlreadyJoined
		}
	}
	if s.full {
		return repository.ErrSessionFull
	}
	s.joined[sessionID] = append(s.joined[sessionID], studentID)
	return nil
}

type fakeRequestStore struct {
	requests map[uuid.UUID]*models.SessionRequest
}

func newFakeRequestStore(requests ...*models.SessionRequest) *fakeRequestStore {
	s := &fakeRequestStore{requests: make(map[uuid.UUID]*models.SessionRequest)}
	for _, r := range requests {
		s.requests[r.ID] = r
	}
	return s
}

func (s *fakeRequestStore) Create(ctx context.Context, req *models.SessionRequest) error {
	req.ID = uuid.New()
	req.Status = models.RequestPending
	req.CreatedAt = time.Now()
	stored := *req
	s.requests[req.ID] = &stored
	return nil
}

func (s *fakeRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.SessionRequest, error) {
	if req, ok := s.requests[id]; ok {
		copied := *req
		return &copied, nil
	}
	return nil, errNoRows
}

func (s *fakeRequestStore) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.SessionRequest, error) {
	return nil, nil
}

func (s *fakeRequestStore) ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*models.SessionRequest, error) {
	return nil, nil
}

func (s *fakeRequestStore) ListAll(ctx context.Context) ([]*models.SessionRequest, error) {
	return nil, nil
}

func (s *fakeRequestStore) SetAssigned(ctx context.Context, req *models.SessionRequest) error {
	stored := *req
	s.requests[req.ID] = &stored
	return nil
}

func (s *fakeRequestStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error {
	if req, ok := s.requests[id]; ok {
		req.Status = status
		req.RejectionReason = rejectionReason
	}
	return nil
}
