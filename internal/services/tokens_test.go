package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tutorhub-backend/internal/models"
)

func TestValidCredentialsReturnsUnexpiredTokenUnchanged(t *testing.T) {
	provider := newFakeProvider()
	store := &fakeCredStore{}
	tm := NewTokenManager(store, provider)

	user := connectedUser(models.RoleTutor, "tutor@example.com")

	token, err := tm.ValidCredentials(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "tok-tutor@example.com" {
		t.Errorf("expected stored access token, got %s", token.AccessToken)
	}
	if len(store.updates) != 0 {
		t.Error("no persistence expected for a valid token")
	}
}

func TestValidCredentialsRefreshesExpiredToken(t *testing.T) {
	provider := newFakeProvider()
	store := &fakeCredStore{}
	tm := NewTokenManager(store, provider)

	user := connectedUser(models.RoleTutor, "tutor@example.com")
	expired := time.Now().Add(-time.Hour)
	user.GoogleTokenExpiry = &expired

	token, err := tm.ValidCredentials(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "refreshed-ref-tutor@example.com" {
		t.Errorf("expected refreshed access token, got %s", token.AccessToken)
	}
	if token.RefreshToken != "ref-tutor@example.com" {
		t.Error("stored refresh token should be retained when the response omits one")
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected 1 persisted update, got %d", len(store.updates))
	}
	if store.updates[0].UserID != user.ID {
		t.Error("update persisted against the wrong user")
	}
}

func TestValidCredentialsPersistsRotatedRefreshToken(t *testing.T) {
	provider := newFakeProvider()
	provider.rotateTo = "rotated-refresh"
	store := &fakeCredStore{}
	tm := NewTokenManager(store, provider)

	user := connectedUser(models.RoleTutor, "tutor@example.com")
	expired := time.Now().Add(-time.Hour)
	user.GoogleTokenExpiry = &expired

	token, err := tm.ValidCredentials(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.RefreshToken != "rotated-refresh" {
		t.Errorf("expected rotated refresh token, got %s", token.RefreshToken)
	}
	if store.refreshUpdates[user.ID] != "rotated-refresh" {
		t.Error("rotated refresh token must be persisted, or the next refresh replays the revoked one")
	}
}

func TestValidCredentialsRefreshesInsideSkewWindow(t *testing.T) {
	provider := newFakeProvider()
	tm := NewTokenManager(&fakeCredStore{}, provider)

	user := connectedUser(models.RoleTutor, "tutor@example.com")
	soon := time.Now().Add(10 * time.Second)
	user.GoogleTokenExpiry = &soon

	token, err := tm.ValidCredentials(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken == "tok-tutor@example.com" {
		t.Error("token expiring within the skew window should be refreshed")
	}
}

func TestValidCredentialsWithoutRefreshTokenIsPassthrough(t *testing.T) {
	provider := newFakeProvider()
	store := &fakeCredStore{}
	tm := NewTokenManager(store, provider)

	user := connectedUser(models.RoleTutor, "tutor@example.com")
	user.GoogleRefreshToken = nil
	expired := time.Now().Add(-time.Hour)
	user.GoogleTokenExpiry = &expired

	token, err := tm.ValidCredentials(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.AccessToken != "tok-tutor@example.com" {
		t.Error("without a refresh token the stored token is returned as-is")
	}
	if len(store.updates) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestValidCredentialsSurfacesRefreshRejection(t *testing.T) {
	provider := newFakeProvider()
	provider.refreshErr = &CredentialRefreshError{Err: fmt.Errorf("invalid_grant")}
	tm := NewTokenManager(&fakeCredStore{}, provider)

	user := connectedUser(models.RoleTutor, "tutor@example.com")
	expired := time.Now().Add(-time.Hour)
	user.GoogleTokenExpiry = &expired

	_, err := tm.ValidCredentials(context.Background(), user)
	var refreshErr *CredentialRefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("expected CredentialRefreshError, got %v", err)
	}
}
