package models

import (
	"encoding/json"
	"time"
)

// Database dialects
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Email backends
const (
	EmailBackendConsole = "console"
	EmailBackendSMTP    = "smtp"
	EmailBackendMemory  = "memory"
)

// MaxTitleLength mirrors the todo.title column limit.
const MaxTitleLength = 200

// Request types

// TodoRequest is used for create, full update and partial update.
// Nil fields were not present in the request body.
type TodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SendEmailRequest keeps "to" raw since it may be a string or a list of strings.
type SendEmailRequest struct {
	To      json.RawMessage `json:"to"`
	Subject string          `json:"subject"`
	Message string          `json:"message"`
}

type ResendActivationRequest struct {
	Email string `json:"email"`
}

// Response types

type TokenResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

type EmailAvailability struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

type SendEmailResponse struct {
	Sent       int      `json:"sent"`
	Recipients []string `json:"recipients"`
}

type StatusResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Domain types

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON
	IsActive     bool       `json:"is_active"`
	DateJoined   time.Time  `json:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

type Todo struct {
	ID            int64     `json:"id"`
	Owner         *int64    `json:"owner"`
	OwnerUsername *string   `json:"owner_username"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// String returns the todo title.
func (t Todo) String() string {
	return t.Title
}

type Token struct {
	Key       string    `json:"key"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
