package model

import "time"

// User represents a user in the database.
type User struct {
	ID                   int64
	FirstName            string
	MiddleName           *string
	LastName             string
	Email                string
	HashedPassword       string
	IsVerified           bool
	PasswordResetToken   *string
	PasswordResetExpires *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	MiddleName      *string `json:"middle_name"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirm_password"`
}

// RegisterResponse acknowledges a new account that still awaits verification.
type RegisterResponse struct {
	Message   string `json:"message"`
	EmailSent bool   `json:"email_sent"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// PasswordResetRequest starts the password reset flow for an email.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetResponse acknowledges a reset request. The token itself is
// only ever delivered by email.
type PasswordResetResponse struct {
	Message   string `json:"message"`
	EmailSent bool   `json:"email_sent"`
}

// ConfirmPasswordResetRequest completes a password reset.
type ConfirmPasswordResetRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// VerifyStatus is the outcome of an email verification attempt.
type VerifyStatus int

const (
	VerifyInvalid VerifyStatus = iota
	VerifyUserNotFound
	VerifyAlreadyVerified
	VerifySucceeded
)

// UserResponse represents user data safe for API responses (no sensitive fields).
type UserResponse struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	MiddleName *string   `json:"middle_name,omitempty"`
	LastName   string    `json:"last_name"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
