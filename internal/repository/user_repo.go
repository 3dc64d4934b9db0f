package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutorhub-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, course_type, is_active,
	calendar_connected, google_access_token, google_refresh_token, google_token_expiry,
	google_email, created_at, last_login_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role,
		&user.CourseType, &user.IsActive, &user.CalendarConnected,
		&user.GoogleAccessToken, &user.GoogleRefreshToken, &user.GoogleTokenExpiry,
		&user.GoogleEmail, &user.CreatedAt, &user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, full_name, role, course_type, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	user.ID = uuid.New()
	user.IsActive = true

	return r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Role, user.CourseType, user.IsActive,
	).Scan(&user.CreatedAt)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND is_active = TRUE ORDER BY created_at`, role)
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

// ListActiveStudentsByCourse returns every active student whose course type
// matches, the enrollment pool for a masterclass.
func (r *UserRepo) ListActiveStudentsByCourse(ctx context.Context, courseType string) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE role = $1 AND is_active = TRUE AND course_type = $2
		 ORDER BY created_at`, models.RoleStudent, courseType)
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

func (r *UserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $1 WHERE id = $2", time.Now(), userID)
	return err
}

// SaveGoogleTokens persists a full credential set after the OAuth callback
// and flips the connection flag on.
func (r *UserRepo) SaveGoogleTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiry time.Time, googleEmail string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET calendar_connected = TRUE, google_access_token = $1,
			google_refresh_token = $2, google_token_expiry = $3, google_email = $4
		WHERE id = $5`,
		accessToken, refreshToken, expiry, googleEmail, userID)
	return err
}

// UpdateAccessToken persists a refreshed access token. Concurrent refreshes
// race last-write-wins, which is safe: tokens are idempotent to refresh.
func (r *UserRepo) UpdateAccessToken(ctx context.Context, userID uuid.UUID, accessToken string, expiry time.Time) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE users SET google_access_token = $1, google_token_expiry = $2 WHERE id = $3",
		accessToken, expiry, userID)
	return err
}

// UpdateRefreshToken persists a provider-rotated refresh token so the next
// refresh does not replay a revoked one.
func (r *UserRepo) UpdateRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE users SET google_refresh_token = $1 WHERE id = $2", refreshToken, userID)
	return err
}

func (r *UserRepo) DisconnectCalendar(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET calendar_connected = FALSE, google_access_token = NULL,
			google_refresh_token = NULL, google_token_expiry = NULL, google_email = NULL
		WHERE id = $1`, userID)
	return err
}
