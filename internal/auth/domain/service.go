package domain

import (
	"context"
	"time"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	ChangePassword(ctx context.Context, userID string, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) (*ResetTokenResult, error)
	ResetPassword(ctx context.Context, rawToken string, newPassword string) error
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *UserView
	RawToken  string
	ExpiresAt time.Time
}

// ResetTokenResult carries the raw reset token back to the caller. Delivery
// by email is best-effort; the token is also usable through other channels.
type ResetTokenResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
}
