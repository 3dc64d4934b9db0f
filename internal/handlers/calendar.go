package handlers

import (
	"net/http"

	"tutorhub-backend/internal/middleware"
	"tutorhub-backend/internal/services"
)

type CalendarHandler struct {
	connect *services.CalendarConnectService
}

func NewCalendarHandler(connect *services.CalendarConnectService) *CalendarHandler {
	return &CalendarHandler{connect: connect}
}

// AuthorizationURL returns the provider consent URL for the caller.
func (h *CalendarHandler) AuthorizationURL(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	url, err := h.connect.AuthorizationURL(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"authorization_url": url})
}

// Callback is hit by the provider redirect; it carries no bearer token, so
// identity is re-established through the state nonce minted at connect time.
func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Missing code or state", r))
		return
	}

	user, err := h.connect.HandleCallback(r.Context(), code, state)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Calendar connected",
		"user":    user,
	})
}

func (h *CalendarHandler) Status(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	status, err := h.connect.Status(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	if err := h.connect.Disconnect(r.Context(), actor.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Calendar disconnected"})
}
