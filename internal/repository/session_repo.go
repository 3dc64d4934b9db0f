package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorhub-backend/internal/models"
)

// ErrSessionFull is returned when a join would exceed max_participants.
var ErrSessionFull = errors.New("session is full")

// ErrAlreadyJoined is returned when the student already holds a seat.
var ErrAlreadyJoined = errors.New("already joined this session")

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, tutor_id, title, description, start_time, end_time, session_type,
	course_type, max_participants, current_participants, google_event_id, meet_link, status,
	created_at, updated_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(
		&s.ID, &s.TutorID, &s.Title, &s.Description, &s.StartTime, &s.EndTime,
		&s.SessionType, &s.CourseType, &s.MaxParticipants, &s.CurrentParticipants,
		&s.GoogleEventID, &s.MeetLink, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, tutor_id, title, description, start_time, end_time,
			session_type, course_type, max_participants, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	s.ID = uuid.New()
	s.Status = models.StatusScheduled

	return r.pool.QueryRow(ctx, query,
		s.ID, s.TutorID, s.Title, s.Description, s.StartTime, s.EndTime,
		s.SessionType, s.CourseType, s.MaxParticipants, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// CreateMasterclass inserts the session row and pre-enrolls the matched
// students inside one transaction. Calendar work happens strictly after
// this commits; only a persistence failure rolls back.
func (r *SessionRepo) CreateMasterclass(ctx context.Context, s *models.Session, studentIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	s.ID = uuid.New()
	s.Status = models.StatusScheduled
	s.CurrentParticipants = len(studentIDs)

	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (id, tutor_id, title, description, start_time, end_time,
			session_type, course_type, max_participants, current_participants, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		s.ID, s.TutorID, s.Title, s.Description, s.StartTime, s.EndTime,
		s.SessionType, s.CourseType, s.MaxParticipants, s.CurrentParticipants, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}

	for _, studentID := range studentIDs {
		if _, err := tx.Exec(ctx,
			"INSERT INTO session_participants (session_id, student_id) VALUES ($1, $2)",
			s.ID, studentID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// SessionFilter narrows a visibility-scoped listing.
type SessionFilter struct {
	Upcoming bool
	Today    bool
	TutorID  *uuid.UUID
}

// List applies the caller's visibility scope plus an optional filter. The
// scope is computed once per request by the service layer and never widened
// here.
func (r *SessionRepo) List(ctx context.Context, scope models.VisibilityScope, filter SessionFilter) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	args := []any{}
	n := 0

	next := func(v any) string {
		args = append(args, v)
		n++
		return fmt.Sprintf("$%d", n)
	}

	if !scope.All {
		switch {
		case scope.OwnerID != nil:
			query += " AND tutor_id = " + next(*scope.OwnerID)
		case scope.CourseType != nil:
			query += fmt.Sprintf(" AND (tutor_id = ANY(%s) OR (session_type = '%s' AND course_type = %s))",
				next(scope.TutorIDs), models.SessionMasterclass, next(*scope.CourseType))
		default:
			query += " AND tutor_id = ANY(" + next(scope.TutorIDs) + ")"
		}
	}

	if filter.Upcoming {
		query += " AND start_time > NOW() AND status = " + next(models.StatusScheduled)
	}
	if filter.Today {
		query += " AND start_time >= date_trunc('day', NOW()) AND start_time < date_trunc('day', NOW()) + INTERVAL '1 day'"
	}
	if filter.TutorID != nil {
		query += " AND tutor_id = " + next(*filter.TutorID)
	}

	query += " ORDER BY start_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) Update(ctx context.Context, s *models.Session) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sessions SET title = $1, description = $2, start_time = $3, end_time = $4,
			status = $5, updated_at = NOW()
		WHERE id = $6`,
		s.Title, s.Description, s.StartTime, s.EndTime, s.Status, s.ID)
	return err
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	return err
}

// SetCalendarFields copies whatever the calendar side effect produced onto
// the already-persisted row.
func (r *SessionRepo) SetCalendarFields(ctx context.Context, id uuid.UUID, eventID, meetLink *string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE sessions SET google_event_id = $1, meet_link = $2, updated_at = NOW() WHERE id = $3",
		eventID, meetLink, id)
	return err
}

// AddParticipant seats a student using a conditional increment so two
// concurrent joins cannot both pass a capacity check against a stale count.
func (r *SessionRepo) AddParticipant(ctx context.Context, sessionID, studentID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO session_participants (session_id, student_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, sessionID, studentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyJoined
	}

	tag, err = tx.Exec(ctx, `
		UPDATE sessions SET current_participants = current_participants + 1, updated_at = NOW()
		WHERE id = $1 AND current_participants < max_participants AND status = $2`,
		sessionID, models.StatusScheduled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionFull
	}

	return tx.Commit(ctx)
}

func (r *SessionRepo) ListParticipantIDs(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT student_id FROM session_participants WHERE session_id = $1 ORDER BY joined_at", sessionID)
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

// MarkElapsedCompleted is a maintenance helper: sessions whose end time has
// passed read as COMPLETED without an explicit transition call.
func (r *SessionRepo) MarkElapsedCompleted(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET status = $1, updated_at = NOW()
		WHERE end_time < $2 AND status IN ($3, $4)`,
		models.StatusCompleted, now, models.StatusScheduled, models.StatusOngoing)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
