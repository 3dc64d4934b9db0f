package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"tutorhub-backend/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	course := "IELTS"
	user := &models.User{ID: uuid.New(), Role: models.RoleStudent, CourseType: &course}

	token, err := auth.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	var got models.Actor
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetActor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.ID != user.ID {
		t.Errorf("expected actor %s, got %s", user.ID, got.ID)
	}
	if got.Role != models.RoleStudent {
		t.Errorf("expected STUDENT, got %s", got.Role)
	}
	if got.CourseType == nil || *got.CourseType != "IELTS" {
		t.Error("course type claim should round-trip")
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			auth.Middleware(next).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestJWTMiddlewareRejectsForeignSignature(t *testing.T) {
	token, err := NewJWTAuth("other-secret").GenerateAccessToken(&models.User{ID: uuid.New(), Role: models.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	NewJWTAuth("test-secret").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}
