package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/repository"
)

type assignmentRegistry interface {
	Create(ctx context.Context, tutorID, studentID uuid.UUID) (*models.Assignment, error)
	Delete(ctx context.Context, tutorID, studentID uuid.UUID) error
	ListStudentsOf(ctx context.Context, tutorID uuid.UUID) ([]*models.User, error)
	ListTutorsOf(ctx context.Context, studentID uuid.UUID) ([]*models.User, error)
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AssignmentService owns the tutor-student pairing registry. Every other
// component treats it as the single source of truth for "may X see Y";
// removing a pair never retroactively alters existing sessions or events.
type AssignmentService struct {
	assignments assignmentRegistry
	users       userReader
}

func NewAssignmentService(assignments assignmentRegistry, users userReader) *AssignmentService {
	return &AssignmentService{assignments: assignments, users: users}
}

func (s *AssignmentService) Assign(ctx context.Context, actor models.Actor, tutorID, studentID uuid.UUID) (*models.Assignment, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can assign tutors"}
	}

	tutor, err := s.users.GetByID(ctx, tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Tutor not found"}
		}
		return nil, err
	}
	if tutor.Role != models.RoleTutor {
		return nil, &ValidationError{Fields: map[string]string{"tutor_id": "User is not a tutor"}}
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Student not found"}
		}
		return nil, err
	}
	if student.Role != models.RoleStudent {
		return nil, &ValidationError{Fields: map[string]string{"student_id": "User is not a student"}}
	}

	assignment, err := s.assignments.Create(ctx, tutorID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateAssignment) {
			return nil, &ConflictError{Message: "Tutor is already assigned to this student"}
		}
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) Unassign(ctx context.Context, actor models.Actor, tutorID, studentID uuid.UUID) error {
	if !actor.IsAdmin() {
		return &ForbiddenError{Message: "Only admins can unassign tutors"}
	}

	err := s.assignments.Delete(ctx, tutorID, studentID)
	if errors.Is(err, repository.ErrAssignmentNotFound) {
		return &NotFoundError{Message: "Assignment not found"}
	}
	return err
}

// ListStudentsOf is visible to admins and to the tutor themselves.
func (s *AssignmentService) ListStudentsOf(ctx context.Context, actor models.Actor, tutorID uuid.UUID) ([]*models.User, error) {
	if !actor.IsAdmin() && actor.ID != tutorID {
		return nil, &ForbiddenError{Message: "Not allowed to view this tutor's students"}
	}
	return s.assignments.ListStudentsOf(ctx, tutorID)
}

// ListTutorsOf is visible to admins and to the student themselves.
func (s *AssignmentService) ListTutorsOf(ctx context.Context, actor models.Actor, studentID uuid.UUID) ([]*models.User, error) {
	if !actor.IsAdmin() && actor.ID != studentID {
		return nil, &ForbiddenError{Message: "Not allowed to view this student's tutors"}
	}
	return s.assignments.ListTutorsOf(ctx, studentID)
}
