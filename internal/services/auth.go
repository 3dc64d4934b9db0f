package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"tutorhub-backend/internal/middleware"
	"tutorhub-backend/internal/models"
)

type userAccountStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

type AuthService struct {
	users userAccountStore
	jwt   *middleware.JWTAuth
}

func NewAuthService(users userAccountStore, jwt *middleware.JWTAuth) *AuthService {
	return &AuthService{users: users, jwt: jwt}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: "Invalid email or password"}
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, &UnauthorizedError{Message: "Account is deactivated"}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, &UnauthorizedError{Message: "Invalid email or password"}
	}

	s.users.UpdateLastLogin(ctx, user.ID)

	token, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   24 * 60 * 60,
		User:        user,
	}, nil
}

// CreateUser provisions an account (admin only). When the admin does not
// supply a password the platform generates one and echoes it back exactly
// once; an admin-chosen password is never echoed.
func (s *AuthService) CreateUser(ctx context.Context, actor models.Actor, req models.CreateUserRequest) (*models.CreateUserResponse, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can create users"}
	}

	fields := make(map[string]string)
	if req.FullName == "" {
		fields["full_name"] = "Full name is required"
	}
	if !emailRegex.MatchString(req.Email) {
		fields["email"] = "Invalid email format"
	}
	switch req.Role {
	case models.RoleAdmin, models.RoleTutor, models.RoleStudent:
	default:
		fields["role"] = "Role must be ADMIN, TUTOR or STUDENT"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, &ConflictError{Message: "Email already in use"}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	password := req.Password
	generated := ""
	if password == "" {
		p, err := generatePassword(12)
		if err != nil {
			return nil, err
		}
		password = p
		generated = p
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		CourseType:   req.CourseType,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return &models.CreateUserResponse{User: user, GeneratedPassword: generated}, nil
}

// ListUsers returns the active users holding a role, for admin pickers
// (choosing a tutor to assign, listing students).
func (s *AuthService) ListUsers(ctx context.Context, actor models.Actor, role string) ([]*models.User, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Message: "Only admins can list users"}
	}
	switch role {
	case models.RoleAdmin, models.RoleTutor, models.RoleStudent:
	default:
		return nil, &ValidationError{Fields: map[string]string{"role": "Role must be ADMIN, TUTOR or STUDENT"}}
	}
	return s.users.ListByRole(ctx, role)
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, err
	}
	return user, nil
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%"

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
