package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	oauth2v2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// EventDetails describes one participant's mirror of a logical meeting.
type EventDetails struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	// RequestMeetLink asks the provider to generate a video-meeting link.
	// Only the organizer event of a meeting sets this; a later event embeds
	// the canonical link in its description instead.
	RequestMeetLink bool
	// RequestKey is the client-supplied idempotency key for conference
	// creation, so provider-side retries do not mint duplicate links.
	RequestKey string
}

type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// ProviderEvent is what one successful provider call yields.
type ProviderEvent struct {
	EventID  string
	HTMLLink string
	MeetLink string
}

// CalendarProvider is the capability contract for the external calendar.
// The scheduling core never speaks the provider's wire protocol directly.
type CalendarProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (string, error)
	CreateEvent(ctx context.Context, token *oauth2.Token, details EventDetails) (*ProviderEvent, error)
	UpdateEvent(ctx context.Context, token *oauth2.Token, eventID string, patch EventPatch) error
	DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error
}

// GoogleCalendar implements CalendarProvider against the Google Calendar v3
// API, creating events on each participant's primary calendar.
type GoogleCalendar struct {
	oauth *oauth2.Config
}

func NewGoogleCalendar(clientID, clientSecret, redirectURL string) *GoogleCalendar {
	return &GoogleCalendar{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				calendar.CalendarEventsScope,
				oauth2v2.UserinfoEmailScope,
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (g *GoogleCalendar) AuthCodeURL(state string) string {
	// offline + consent so Google returns a refresh token every time
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *GoogleCalendar) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

func (g *GoogleCalendar) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, &CredentialRefreshError{Err: err}
	}
	return token, nil
}

func (g *GoogleCalendar) Profile(ctx context.Context, token *oauth2.Token) (string, error) {
	svc, err := oauth2v2.NewService(ctx, option.WithTokenSource(g.oauth.TokenSource(ctx, token)))
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch Google profile: %w", err)
	}
	return info.Email, nil
}

func (g *GoogleCalendar) service(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithTokenSource(g.oauth.TokenSource(ctx, token)))
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, token *oauth2.Token, details EventDetails) (*ProviderEvent, error) {
	svc, err := g.service(ctx, token)
	if err != nil {
		return nil, &ProviderError{Op: "create", Err: err}
	}

	event := &calendar.Event{
		Summary:     details.Title,
		Description: details.Description,
		Start: &calendar.EventDateTime{
			DateTime: details.Start.Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: details.End.Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}
	for _, email := range details.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	if details.RequestMeetLink {
		key := details.RequestKey
		if key == "" {
			key = uuid.NewString()
		}
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             key,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	call := svc.Events.Insert("primary", event).SendUpdates("all").Context(ctx)
	if details.RequestMeetLink {
		call = call.ConferenceDataVersion(1)
	}

	created, err := call.Do()
	if err != nil {
		return nil, &ProviderError{Op: "create", Err: err}
	}

	return &ProviderEvent{
		EventID:  created.Id,
		HTMLLink: created.HtmlLink,
		MeetLink: created.HangoutLink,
	}, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, token *oauth2.Token, eventID string, patch EventPatch) error {
	svc, err := g.service(ctx, token)
	if err != nil {
		return &ProviderError{Op: "update", Err: err}
	}

	event := &calendar.Event{}
	if patch.Title != nil {
		event.Summary = *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Start != nil {
		event.Start = &calendar.EventDateTime{DateTime: patch.Start.Format(time.RFC3339), TimeZone: "UTC"}
	}
	if patch.End != nil {
		event.End = &calendar.EventDateTime{DateTime: patch.End.Format(time.RFC3339), TimeZone: "UTC"}
	}

	if _, err := svc.Events.Patch("primary", eventID, event).SendUpdates("all").Context(ctx).Do(); err != nil {
		return &ProviderError{Op: "update", Err: err}
	}
	return nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, token *oauth2.Token, eventID string) error {
	svc, err := g.service(ctx, token)
	if err != nil {
		return &ProviderError{Op: "delete", Err: err}
	}
	if err := svc.Events.Delete("primary", eventID).SendUpdates("all").Context(ctx).Do(); err != nil {
		return &ProviderError{Op: "delete", Err: err}
	}
	return nil
}
