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

type AssignmentHandler struct {
	assignments *services.AssignmentService
}

func NewAssignmentHandler(assignments *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.AssignTutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	tutorID, err := uuid.Parse(req.TutorID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tutor_id", r))
		return
	}
	studentID, err := uuid.Parse(req.StudentID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid student_id", r))
		return
	}

	assignment, err := h.assignments.Assign(r.Context(), actor, tutorID, studentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"assignment": assignment})
}

func (h *AssignmentHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	tutorID, err := uuid.Parse(chi.URLParam(r, "tutorID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tutor ID", r))
		return
	}
	studentID, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid student ID", r))
		return
	}

	if err := h.assignments.Unassign(r.Context(), actor, tutorID, studentID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Assignment removed"})
}

func (h *AssignmentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	tutorID, err := uuid.Parse(chi.URLParam(r, "tutorID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tutor ID", r))
		return
	}

	students, err := h.assignments.ListStudentsOf(r.Context(), actor, tutorID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"students": students})
}

func (h *AssignmentHandler) ListTutors(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	studentID, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid student ID", r))
		return
	}

	tutors, err := h.assignments.ListTutorsOf(r.Context(), actor, studentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tutors": tutors})
}
