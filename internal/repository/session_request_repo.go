package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorhub-backend/internal/models"
)

type SessionRequestRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRequestRepo(pool *pgxpool.Pool) *SessionRequestRepo {
	return &SessionRequestRepo{pool: pool}
}

const requestColumns = `id, student_id, tutor_id, preferred_date, preferred_time, duration_minutes,
	subject, description, status, scheduled_at, tutor_event_id, student_event_id, meet_link,
	rejection_reason, created_at, updated_at`

func scanRequest(row interface{ Scan(dest ...any) error }) (*models.SessionRequest, error) {
	req := &models.SessionRequest{}
	err := row.Scan(
		&req.ID, &req.StudentID, &req.TutorID, &req.PreferredDate, &req.PreferredTime,
		&req.DurationMinutes, &req.Subject, &req.Description, &req.Status, &req.ScheduledAt,
		&req.TutorEventID, &req.StudentEventID, &req.MeetLink, &req.RejectionReason,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *SessionRequestRepo) Create(ctx context.Context, req *models.SessionRequest) error {
	query := `
		INSERT INTO session_requests (id, student_id, preferred_date, preferred_time,
			duration_minutes, subject, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	req.ID = uuid.New()
	req.Status = models.RequestPending

	return r.pool.QueryRow(ctx, query,
		req.ID, req.StudentID, req.PreferredDate, req.PreferredTime,
		req.DurationMinutes, req.Subject, req.Description, req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *SessionRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SessionRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM session_requests WHERE id = $1`, id))
}

func (r *SessionRequestRepo) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.SessionRequest, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM session_requests WHERE student_id = $1 ORDER BY created_at DESC`,
		studentID)
}

func (r *SessionRequestRepo) ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*models.SessionRequest, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM session_requests WHERE tutor_id = $1 ORDER BY created_at DESC`,
		tutorID)
}

func (r *SessionRequestRepo) ListAll(ctx context.Context) ([]*models.SessionRequest, error) {
	return r.list(ctx,
		`SELECT `+requestColumns+` FROM session_requests ORDER BY created_at DESC`)
}

func (r *SessionRequestRepo) list(ctx context.Context, query string, args ...any) ([]*models.SessionRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*models.SessionRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// SetAssigned persists the outcome of an admin assignment: the tutor, the
// resolved meeting time, and whatever subset of calendar data succeeded.
func (r *SessionRequestRepo) SetAssigned(ctx context.Context, req *models.SessionRequest) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE session_requests SET tutor_id = $1, status = $2, scheduled_at = $3,
			tutor_event_id = $4, student_event_id = $5, meet_link = $6, updated_at = NOW()
		WHERE id = $7`,
		req.TutorID, req.Status, req.ScheduledAt,
		req.TutorEventID, req.StudentEventID, req.MeetLink, req.ID)
	return err
}

func (r *SessionRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, rejectionReason *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE session_requests SET status = $1, rejection_reason = $2, updated_at = NOW()
		WHERE id = $3`, status, rejectionReason, id)
	return err
}
