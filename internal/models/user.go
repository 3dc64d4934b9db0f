package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles
const (
	RoleAdmin   = "ADMIN"
	RoleTutor   = "TUTOR"
	RoleStudent = "STUDENT"
)

type User struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	FullName           string     `json:"full_name"`
	Role               string     `json:"role"`
	CourseType         *string    `json:"course_type"`
	IsActive           bool       `json:"is_active"`
	CalendarConnected  bool       `json:"calendar_connected"`
	GoogleAccessToken  *string    `json:"-"`
	GoogleRefreshToken *string    `json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`
	GoogleEmail        *string    `json:"google_email,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLoginAt        *time.Time `json:"last_login_at"`
}

// CalendarEmail returns the address calendar invites should go to: the
// connected Google account when known, the login email otherwise.
func (u *User) CalendarEmail() string {
	if u.GoogleEmail != nil && *u.GoogleEmail != "" {
		return *u.GoogleEmail
	}
	return u.Email
}

// Actor is the authenticated caller attached to every request by the JWT
// middleware. The scheduling core trusts these fields as-is.
type Actor struct {
	ID         uuid.UUID
	Role       string
	CourseType *string
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsTutor() bool   { return a.Role == RoleTutor }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

type CreateUserRequest struct {
	FullName   string  `json:"full_name"`
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	Role       string  `json:"role"`
	CourseType *string `json:"course_type"`
}

// CreateUserResponse carries GeneratedPassword only when the platform picked
// the password itself; an admin-chosen password is never echoed back.
type CreateUserResponse struct {
	User              *User  `json:"user"`
	GeneratedPassword string `json:"generated_password,omitempty"`
}

// API error envelope

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
