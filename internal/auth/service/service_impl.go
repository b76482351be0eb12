package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/auth/domain"
	"github.com/smallbiznis/tracklight/internal/auth/password"
	"github.com/smallbiznis/tracklight/internal/clock"
	"github.com/smallbiznis/tracklight/pkg/db"
	"go.uber.org/zap"
)

const (
	sessionTTL     = 30 * 24 * time.Hour
	resetTokenTTL  = 1 * time.Hour
	minPasswordLen = 8
)

type service struct {
	repo     domain.Repository
	sessions domain.SessionRepository
	genID    *snowflake.Node
	clock    clock.Clock
	log      *zap.Logger
}

func NewService(repo domain.Repository, sessions domain.SessionRepository, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) domain.Service {
	return &service{
		repo:     repo,
		sessions: sessions,
		genID:    genID,
		clock:    clk,
		log:      log.Named("auth.service"),
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidCredentials
	}
	if len(req.Password) < minPasswordLen {
		return nil, domain.ErrWeakPassword
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        email,
		PasswordHash: &hash,
		OrgRole:      "MEMBER",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(sessionTTL)
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        req.UserAgent,
		IPAddress:        req.IPAddress,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:      domain.NewUserView(user),
		RawToken:  rawToken,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return err
	}
	return s.sessions.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		if err == domain.ErrSessionNotFound {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.log.Warn("failed to update session last_seen", zap.Error(err))
	}

	return session, nil
}

func (s *service) ChangePassword(ctx context.Context, userID string, currentPassword, newPassword string) error {
	id, err := snowflake.ParseString(userID)
	if err != nil {
		return domain.ErrUserNotFound
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil || !password.Verify(currentPassword, *user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLen {
		return domain.ErrWeakPassword
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash": hash,
	})
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) (*domain.ResetTokenResult, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	rawToken, err := newToken()
	if err != nil {
		return nil, err
	}

	expiresAt := s.clock.Now().Add(resetTokenTTL)
	if err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"reset_token_hash":       hashToken(rawToken),
		"reset_token_expires_at": expiresAt,
	}); err != nil {
		return nil, err
	}

	return &domain.ResetTokenResult{
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *service) ResetPassword(ctx context.Context, rawToken string, newPassword string) error {
	if strings.TrimSpace(rawToken) == "" {
		return domain.ErrResetTokenInvalid
	}
	if len(newPassword) < minPasswordLen {
		return domain.ErrWeakPassword
	}

	user, err := s.repo.FindByResetTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return err
	}
	if user.ResetTokenExpiresAt == nil || s.clock.Now().After(*user.ResetTokenExpiresAt) {
		return domain.ErrResetTokenExpired
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash":          hash,
		"reset_token_hash":       nil,
		"reset_token_expires_at": nil,
	})
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
