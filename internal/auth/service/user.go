package service

import (
	"context"
	"errors"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store"
	"github.com/paysignal/console-auth/pkg/cryptox"
	"github.com/paysignal/console-auth/pkg/idx"
	"github.com/paysignal/console-auth/pkg/slogx"
)

var ErrUserExists = errors.New("user_exists")

// UserService owns account creation and password changes.
type UserService struct {
	Store     store.Store
	Lifecycle *LifecycleService
}

// Signup creates a read_only account and kicks off email verification.
// The verification email is best effort; the account exists either way.
func (s *UserService) Signup(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	now := time.Now()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleReadOnly,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	raw, err := s.Lifecycle.Issue(ctx, u.ID, domain.PurposeEmailVerification)
	if err != nil {
		l.Warn("could not issue verification token at signup", "user_id", u.ID, "err", err)
	} else {
		s.Lifecycle.sendVerification(ctx, u.Email, raw)
	}

	l.Info("user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// ChangePassword verifies the current password, installs the new hash,
// and durably revokes every refresh token and session before returning.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := cryptox.VerifyPassword(current, u.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		if err := tx.RefreshTokens().RevokeAllForUser(ctx, userID); err != nil {
			return err
		}
		return tx.Sessions().DeleteSessionsForUser(ctx, userID)
	})
}

// GetUserByID is the lookup behind /me.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}
