package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tutorhub-backend/internal/middleware"
	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/services"
)

type SessionRequestHandler struct {
	requests *services.SessionRequestService
}

func NewSessionRequestHandler(requests *services.SessionRequestService) *SessionRequestHandler {
	return &SessionRequestHandler{requests: requests}
}

func (h *SessionRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.CreateSessionRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	request, err := h.requests.Create(r.Context(), actor, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"request": request})
}

func (h *SessionRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	requests, err := h.requests.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

func (h *SessionRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request ID", r))
		return
	}

	request, err := h.requests.Get(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"request": request})
}

// Assign resolves the meeting time and mirrors it to both participants'
// calendars; partial calendar failure still returns 200 with the errors
// embedded in the response.
func (h *SessionRequestHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request ID", r))
		return
	}

	var req models.AssignRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	tutorID, err := uuid.Parse(req.TutorID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tutor_id", r))
		return
	}

	result, err := h.requests.Assign(r.Context(), actor, id, tutorID, req.ScheduledDateTime)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SessionRequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request ID", r))
		return
	}

	var req models.UpdateRequestStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	request, err := h.requests.UpdateStatus(r.Context(), actor, id, req.Status, req.RejectionReason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"request": request})
}

func (h *SessionRequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request ID", r))
		return
	}

	request, err := h.requests.Cancel(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"request": request})
}

func (h *SessionRequestHandler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request ID", r))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	request, err := h.requests.AdminCancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"request": request})
}
