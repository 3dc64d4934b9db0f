package handlers

import (
	"encoding/json"
	"net/http"

	"tutorhub-backend/internal/middleware"
	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/services"
)

type UserHandler struct {
	authService *services.AuthService
}

func NewUserHandler(authService *services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// Create provisions a user (admin only). The response includes a generated
// password only when the admin left the password field empty.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.authService.CreateUser(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List returns active users filtered by the required role query param
// (admin only).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	users, err := h.authService.ListUsers(r.Context(), actor, r.URL.Query().Get("role"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	user, err := h.authService.GetUser(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
