package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/services"
)

// ─── Error envelope ───

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"title": "Title is required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "Session is full"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "Session not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "Invalid email or password"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", &services.ForbiddenError{Message: "Only admins can create masterclasses"}, http.StatusForbidden, "FORBIDDEN"},
		{"unknown", errors.New("pool exhausted"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			req.Header.Set("X-Request-ID", "req-123")
			rr := httptest.NewRecorder()

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error envelope: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Errorf("request id should be echoed, got %q", resp.Error.RequestID)
			}
		})
	}
}

func TestHandleServiceErrorValidationCarriesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	rr := httptest.NewRecorder()

	handleServiceError(rr, req, &services.ValidationError{Fields: map[string]string{
		"start_time": "Start time must be before end time",
	}})

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Fields["start_time"] == "" {
		t.Error("field-level messages should survive the envelope")
	}
}

func TestHandleServiceErrorInternalHidesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	rr := httptest.NewRecorder()

	handleServiceError(rr, req, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Message != "An unexpected error occurred" {
		t.Errorf("internal detail must not leak, got %q", resp.Error.Message)
	}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
}

// ─── Request parsing ───

func TestLoginHandlerRejectsMalformedBody(t *testing.T) {
	h := NewAuthHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.Login(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", resp.Error.Code)
	}
}

func TestCreateSessionRequestParsing(t *testing.T) {
	body := map[string]interface{}{
		"title":        "Algebra drills",
		"start_time":   "2026-09-14T16:00:00Z",
		"end_time":     "2026-09-14T17:00:00Z",
		"session_type": "SMART_QUAD",
	}
	jsonBody, _ := json.Marshal(body)

	var parsed models.CreateSessionRequest
	if err := json.NewDecoder(bytes.NewReader(jsonBody)).Decode(&parsed); err != nil {
		t.Fatalf("failed to parse request body: %v", err)
	}
	if parsed.SessionType != models.SessionSmartQuad {
		t.Errorf("expected SMART_QUAD, got %q", parsed.SessionType)
	}
	if parsed.MaxParticipants != 0 {
		t.Errorf("omitted max_participants should decode to zero, got %d", parsed.MaxParticipants)
	}
}
