package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"tutorhub-backend/internal/models"
	"tutorhub-backend/internal/repository"
)

type pairKey struct{ tutorID, studentID uuid.UUID }

type fakeAssignmentRegistry struct {
	pairs map[pairKey]bool
}

func newFakeAssignmentRegistry() *fakeAssignmentRegistry {
	return &fakeAssignmentRegistry{pairs: make(map[pairKey]bool)}
}

func (r *fakeAssignmentRegistry) Create(ctx context.Context, tutorID, studentID uuid.UUID) (*models.Assignment, error) {
	key := pairKey{tutorID, studentID}
	if r.pairs[key] {
		return nil, repository.ErrDuplicateAssignment
	}
	r.pairs[key] = true
	return &models.Assignment{TutorID: tutorID, StudentID: studentID, AssignedAt: time.Now()}, nil
}

func (r *fakeAssignmentRegistry) Delete(ctx context.Context, tutorID, studentID uuid.UUID) error {
	key := pairKey{tutorID, studentID}
	if !r.pairs[key] {
		return repository.ErrAssignmentNotFound
	}
	delete(r.pairs, key)
	return nil
}

func (r *fakeAssignmentRegistry) ListStudentsOf(ctx context.Context, tutorID uuid.UUID) ([]*models.User, error) {
	return nil, nil
}

func (r *fakeAssignmentRegistry) ListTutorsOf(ctx context.Context, studentID uuid.UUID) ([]*models.User, error) {
	return nil, nil
}

func TestAssignTutorToStudent(t *testing.T) {
	tutor := unconnectedUser(models.RoleTutor, "tutor@example.com")
	student := unconnectedUser(models.RoleStudent, "student@example.com")
	registry := newFakeAssignmentRegistry()
	svc := NewAssignmentService(registry, newFakeUserStore(tutor, student))

	assignment, err := svc.Assign(context.Background(), adminActor(), tutor.ID, student.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assignment.TutorID != tutor.ID || assignment.StudentID != student.ID {
		t.Error("wrong pair recorded")
	}

	_, err = svc.Assign(context.Background(), adminActor(), tutor.ID, student.ID)
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("duplicate pair should conflict, got %v", err)
	}
}

func TestAssignValidatesRoles(t *testing.T) {
	tutor := unconnectedUser(models.RoleTutor, "tutor@example.com")
	student := unconnectedUser(models.RoleStudent, "student@example.com")
	svc := NewAssignmentService(newFakeAssignmentRegistry(), newFakeUserStore(tutor, student))

	// Swapped IDs: the "tutor" slot holds a student.
	_, err := svc.Assign(context.Background(), adminActor(), student.ID, tutor.ID)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAssignRequiresAdmin(t *testing.T) {
	svc := NewAssignmentService(newFakeAssignmentRegistry(), newFakeUserStore())

	_, err := svc.Assign(context.Background(), models.Actor{ID: uuid.New(), Role: models.RoleTutor}, uuid.New(), uuid.New())

	var fErr *ForbiddenError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestUnassignMissingPair(t *testing.T) {
	svc := NewAssignmentService(newFakeAssignmentRegistry(), newFakeUserStore())

	err := svc.Unassign(context.Background(), adminActor(), uuid.New(), uuid.New())

	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestListStudentsOfSelfOrAdminOnly(t *testing.T) {
	tutorID := uuid.New()
	svc := NewAssignmentService(newFakeAssignmentRegistry(), newFakeUserStore())

	if _, err := svc.ListStudentsOf(context.Background(), models.Actor{ID: tutorID, Role: models.RoleTutor}, tutorID); err != nil {
		t.Errorf("tutor should see their own students: %v", err)
	}
	if _, err := svc.ListStudentsOf(context.Background(), adminActor(), tutorID); err != nil {
		t.Errorf("admin should see any tutor's students: %v", err)
	}

	_, err := svc.ListStudentsOf(context.Background(), models.Actor{ID: uuid.New(), Role: models.RoleTutor}, tutorID)
	var fErr *ForbiddenError
	if !errors.As(err, &fErr) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}
