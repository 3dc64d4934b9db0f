package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorhub-backend/internal/models"
)

// Participant is one calendar to mirror a meeting into.
type Participant struct {
	User      *models.User
	Organizer bool
}

// EventRef points at an existing provider event owned by a user.
type EventRef struct {
	User    *models.User
	EventID string
}

type MeetingDetails struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

type ParticipantEvent struct {
	UserID   uuid.UUID
	EventID  string
	HTMLLink string
	MeetLink string
}

type ParticipantError struct {
	UserID  uuid.UUID
	Email   string
	Message string
}

// MeetingResult reports one orchestrator call. It is produced fresh every
// time and never persisted as a whole; callers copy the fields they want
// onto their own rows. Zero events with no errors is a valid outcome (no
// participant had a calendar connected).
type MeetingResult struct {
	Events   map[uuid.UUID]*ParticipantEvent
	MeetLink string
	Errors   []ParticipantError
}

func newMeetingResult() *MeetingResult {
	return &MeetingResult{Events: make(map[uuid.UUID]*ParticipantEvent)}
}

func (r *MeetingResult) EventFor(userID uuid.UUID) *ParticipantEvent {
	return r.Events[userID]
}

func (r *MeetingResult) ErrorFor(userID uuid.UUID) *ParticipantError {
	for i := range r.Errors {
		if r.Errors[i].UserID == userID {
			return &r.Errors[i]
		}
	}
	return nil
}

// Orchestrator mirrors one logical meeting into up to N independent
// calendars. Every participant's outcome is isolated: a failure is appended
// to the result's error list and never aborts the other participants or the
// overall call.
type Orchestrator struct {
	tokens      *TokenManager
	provider    CalendarProvider
	timeout     time.Duration
	concurrency int
}

func NewOrchestrator(tokens *TokenManager, provider CalendarProvider, timeout time.Duration, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{tokens: tokens, provider: provider, timeout: timeout, concurrency: concurrency}
}

// CreateMeeting creates one event per calendar-connected participant.
//
// The organizer's event is created first so its provider-generated meeting
// link becomes canonical; every later event embeds that link in its
// description instead of minting a second one, so all parties converge on
// one join URL. If the organizer is unconnected or fails, the next connected
// participant takes over minting. Remaining participants are created
// concurrently (bounded), each under its own timeout, accumulating
// per-participant success and failure. A partial batch is a success with a
// report, not a failure.
func (o *Orchestrator) CreateMeeting(ctx context.Context, participants []Participant, details MeetingDetails) *MeetingResult {
	result := newMeetingResult()

	ordered := make([]Participant, 0, len(participants))
	for _, p := range participants {
		if p.Organizer {
			ordered = append(ordered, p)
		}
	}
	for _, p := range participants {
		if !p.Organizer {
			ordered = append(ordered, p)
		}
	}

	emails := make(map[uuid.UUID]string, len(ordered))
	for _, p := range ordered {
		emails[p.User.ID] = p.User.CalendarEmail()
	}

	// Mint the canonical link sequentially: walk participants in order
	// until one event creation succeeds with a conference request.
	rest := ordered
	for len(rest) > 0 {
		p := rest[0]
		if !p.User.CalendarConnected {
			rest = rest[1:]
			continue
		}
		event := o.createOne(ctx, p, details, attendeesFor(p, emails), "", true, result)
		rest = rest[1:]
		if event != nil {
			result.MeetLink = event.MeetLink
			break
		}
	}

	if len(rest) == 0 {
		return result
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, o.concurrency)

	for _, p := range rest {
		if !p.User.CalendarConnected {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p Participant) {
			defer wg.Done()
			defer func() { <-sem }()

			sub := newMeetingResult()
			event := o.createOne(ctx, p, details, attendeesFor(p, emails), result.MeetLink, false, sub)

			mu.Lock()
			defer mu.Unlock()
			if event != nil {
				result.Events[p.User.ID] = event
			}
			result.Errors = append(result.Errors, sub.Errors...)
		}(p)
	}
	wg.Wait()

	return result
}

func attendeesFor(p Participant, emails map[uuid.UUID]string) []string {
	attendees := make([]string, 0, len(emails)-1)
	for id, email := range emails {
		if id != p.User.ID {
			attendees = append(attendees, email)
		}
	}
	return attendees
}

// createOne performs a single participant's create under the per-call
// timeout, recording the outcome on result. Only the minting call requests
// a provider-generated meeting link; everyone else embeds the canonical
// link in their event description.
func (o *Orchestrator) createOne(ctx context.Context, p Participant, details MeetingDetails, attendees []string, canonicalLink string, mint bool, result *MeetingResult) *ParticipantEvent {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	token, err := o.tokens.ValidCredentials(callCtx, p.User)
	if err != nil {
		o.recordFailure(result, p.User, "create", err)
		return nil
	}

	description := details.Description
	if canonicalLink != "" {
		description = fmt.Sprintf("%s\n\nJoin: %s", description, canonicalLink)
	}

	created, err := o.provider.CreateEvent(callCtx, token, EventDetails{
		Title:           details.Title,
		Description:     description,
		Start:           details.Start,
		End:             details.End,
		Attendees:       attendees,
		RequestMeetLink: mint,
	})
	if err != nil {
		o.recordFailure(result, p.User, "create", err)
		return nil
	}

	event := &ParticipantEvent{
		UserID:   p.User.ID,
		EventID:  created.EventID,
		HTMLLink: created.HTMLLink,
		MeetLink: created.MeetLink,
	}
	result.Events[p.User.ID] = event
	return event
}

// UpdateMeeting propagates a patch to each referenced event independently.
func (o *Orchestrator) UpdateMeeting(ctx context.Context, refs []EventRef, patch EventPatch) *MeetingResult {
	return o.forEachRef(ctx, refs, "update", func(callCtx context.Context, user *models.User, eventID string) error {
		token, err := o.tokens.ValidCredentials(callCtx, user)
		if err != nil {
			return err
		}
		return o.provider.UpdateEvent(callCtx, token, eventID, patch)
	})
}

// CancelMeeting cancels each referenced event independently. With a reason,
// the event is kept and patched so the cancellation (and why) shows in the
// attendees' calendars; without one the event is deleted outright.
func (o *Orchestrator) CancelMeeting(ctx context.Context, refs []EventRef, reason string) *MeetingResult {
	return o.forEachRef(ctx, refs, "cancel", func(callCtx context.Context, user *models.User, eventID string) error {
		token, err := o.tokens.ValidCredentials(callCtx, user)
		if err != nil {
			return err
		}
		if reason != "" {
			description := "This session has been cancelled.\nReason: " + reason
			return o.provider.UpdateEvent(callCtx, token, eventID, EventPatch{Description: &description})
		}
		return o.provider.DeleteEvent(callCtx, token, eventID)
	})
}

func (o *Orchestrator) forEachRef(ctx context.Context, refs []EventRef, op string, fn func(context.Context, *models.User, string) error) *MeetingResult {
	result := newMeetingResult()

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, o.concurrency)

	for _, ref := range refs {
		if ref.EventID == "" || !ref.User.CalendarConnected {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ref EventRef) {
			defer wg.Done()
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			if err := fn(callCtx, ref.User, ref.EventID); err != nil {
				mu.Lock()
				o.recordFailure(result, ref.User, op, err)
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Events[ref.User.ID] = &ParticipantEvent{UserID: ref.User.ID, EventID: ref.EventID}
			mu.Unlock()
		}(ref)
	}
	wg.Wait()

	return result
}

func (o *Orchestrator) recordFailure(result *MeetingResult, user *models.User, op string, err error) {
	log.Printf("calendar %s failed for %s: %v", op, user.Email, err)
	result.Errors = append(result.Errors, ParticipantError{
		UserID:  user.ID,
		Email:   user.Email,
		Message: err.Error(),
	})
}
