package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"tutorhub-backend/internal/models"
)

// credentialStore is the slice of UserRepo the token manager needs.
type credentialStore interface {
	UpdateAccessToken(ctx context.Context, userID uuid.UUID, accessToken string, expiry time.Time) error
	UpdateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string) error
}

// TokenManager hands out currently-valid provider credentials, refreshing
// and persisting them transparently when the stored token has expired.
type TokenManager struct {
	users    credentialStore
	provider CalendarProvider
	now      func() time.Time
}

func NewTokenManager(users credentialStore, provider CalendarProvider) *TokenManager {
	return &TokenManager{users: users, provider: provider, now: time.Now}
}

// refreshSkew refreshes slightly early so a token does not expire mid-call.
const refreshSkew = time.Minute

// ValidCredentials returns a usable access token for the user.
//
// A user without a stored refresh token gets their stored token back
// unchanged, possibly unusable: callers treat a missing connection as "skip
// calendar integration", never as an error. A rejected refresh surfaces as
// CredentialRefreshError, which callers degrade to "no calendar event".
// Two near-simultaneous refreshes race last-write-wins; refreshing is
// idempotent and tokens are short-lived, so no locking is needed here.
func (m *TokenManager) ValidCredentials(ctx context.Context, user *models.User) (*oauth2.Token, error) {
	token := &oauth2.Token{}
	if user.GoogleAccessToken != nil {
		token.AccessToken = *user.GoogleAccessToken
	}
	if user.GoogleRefreshToken != nil {
		token.RefreshToken = *user.GoogleRefreshToken
	}
	if user.GoogleTokenExpiry != nil {
		token.Expiry = *user.GoogleTokenExpiry
	}

	if token.RefreshToken == "" {
		return token, nil
	}
	if user.GoogleTokenExpiry != nil && m.now().Add(refreshSkew).Before(*user.GoogleTokenExpiry) {
		return token, nil
	}

	refreshed, err := m.provider.Refresh(ctx, token.RefreshToken)
	if err != nil {
		return nil, err
	}

	if err := m.users.UpdateAccessToken(ctx, user.ID, refreshed.AccessToken, refreshed.Expiry); err != nil {
		return nil, err
	}

	// Providers may rotate or omit the refresh token. A rotated one must be
	// persisted or the next refresh replays the revoked token; an omitted one
	// means the stored token is still live.
	switch {
	case refreshed.RefreshToken == "":
		refreshed.RefreshToken = token.RefreshToken
	case refreshed.RefreshToken != token.RefreshToken:
		if err := m.users.UpdateRefreshToken(ctx, user.ID, refreshed.RefreshToken); err != nil {
			return nil, err
		}
	}
	return refreshed, nil
}
