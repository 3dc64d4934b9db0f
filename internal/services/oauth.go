package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/repository"
)

// CalendarConnectService owns the per-user OAuth connect lifecycle for the
// external calendar: authorization URL, callback, status, disconnect.
type CalendarConnectService struct {
	users    *repository.UserRepo
	provider CalendarProvider
	redis    *redis.Client
}

func NewCalendarConnectService(users *repository.UserRepo, provider CalendarProvider, redisClient *redis.Client) *CalendarConnectService {
	return &CalendarConnectService{users: users, provider: provider, redis: redisClient}
}

const oauthStateTTL = 10 * time.Minute

// AuthorizationURL mints a CSRF state nonce bound to the user and returns
// the provider consent URL.
func (s *CalendarConnectService) AuthorizationURL(ctx context.Context, userID uuid.UUID) (string, error) {
	state, err := generateToken(24)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, "oauth_state:"+state, userID.String(), oauthStateTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// HandleCallback exchanges the auth code, resolves the Google account email
// and persists the credential set. Returns the connected user.
func (s *CalendarConnectService) HandleCallback(ctx context.Context, code, state string) (*models.User, error) {
	userIDStr, err := s.redis.Get(ctx, "oauth_state:"+state).Result()
	if err != nil {
		return nil, &UnauthorizedError{Message: "Invalid or expired OAuth state"}
	}
	s.redis.Del(ctx, "oauth_state:"+state)

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in oauth state: %w", err)
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, &UnauthorizedError{Message: "Authorization code exchange failed"}
	}

	googleEmail, err := s.provider.Profile(ctx, token)
	if err != nil {
		// The calendar connection is still usable without the profile
		// email; invites fall back to the login address.
		googleEmail = ""
	}

	if err := s.users.SaveGoogleTokens(ctx, userID, token.AccessToken, token.RefreshToken, token.Expiry, googleEmail); err != nil {
		return nil, err
	}

	return s.users.GetByID(ctx, userID)
}

type CalendarStatus struct {
	Connected   bool    `json:"connected"`
	GoogleEmail *string `json:"google_email,omitempty"`
}

func (s *CalendarConnectService) Status(ctx context.Context, userID uuid.UUID) (*CalendarStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CalendarStatus{Connected: user.CalendarConnected, GoogleEmail: user.GoogleEmail}, nil
}

func (s *CalendarConnectService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	return s.users.DisconnectCalendar(ctx, userID)
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
