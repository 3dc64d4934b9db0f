package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorhub-backend/internal/models"
)

// ErrDuplicateAssignment is returned when the (tutor, student) pair already
// exists; the table's primary key enforces at most one row per pair.
var ErrDuplicateAssignment = errors.New("assignment already exists")

// ErrAssignmentNotFound is returned by Delete when no such pair exists.
var ErrAssignmentNotFound = errors.New("assignment not found")

type AssignmentRepo struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepo(pool *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{pool: pool}
}

func (r *AssignmentRepo) Create(ctx context.Context, tutorID, studentID uuid.UUID) (*models.Assignment, error) {
	a := &models.Assignment{TutorID: tutorID, StudentID: studentID}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assignments (tutor_id, student_id) VALUES ($1, $2)
		RETURNING assigned_at`, tutorID, studentID).Scan(&a.AssignedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAssignment
		}
		return nil, err
	}
	return a, nil
}

func (r *AssignmentRepo) Delete(ctx context.Context, tutorID, studentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM assignments WHERE tutor_id = $1 AND student_id = $2", tutorID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *AssignmentRepo) Exists(ctx context.Context, tutorID, studentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM assignments WHERE tutor_id = $1 AND student_id = $2)",
		tutorID, studentID).Scan(&exists)
	return exists, err
}

// ListTutorIDsOf returns the student's assigned tutor IDs ordered by
// assignment time, so index 0 is the first-assigned tutor.
func (r *AssignmentRepo) ListTutorIDsOf(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT tutor_id FROM assignments WHERE student_id = $1 ORDER BY assigned_at", studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AssignmentRepo) ListStudentsOf(ctx context.Context, tutorID uuid.UUID) ([]*models.User, error) {
	return r.listAssigned(ctx,
		`SELECT `+prefixedUserColumns+` FROM assignments a
		 JOIN users u ON u.id = a.student_id
		 WHERE a.tutor_id = $1 ORDER BY a.assigned_at`, tutorID)
}

func (r *AssignmentRepo) ListTutorsOf(ctx context.Context, studentID uuid.UUID) ([]*models.User, error) {
	return r.listAssigned(ctx,
		`SELECT `+prefixedUserColumns+` FROM assignments a
		 JOIN users u ON u.id = a.tutor_id
		 WHERE a.student_id = $1 ORDER BY a.assigned_at`, studentID)
}

const prefixedUserColumns = `u.id, u.email, u.password_hash, u.full_name, u.role, u.course_type,
	u.is_active, u.calendar_connected, u.google_access_token, u.google_refresh_token,
	u.google_token_expiry, u.google_email, u.created_at, u.last_login_at`

func (r *AssignmentRepo) listAssigned(ctx context.Context, query string, id uuid.UUID) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
