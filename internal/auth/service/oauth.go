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

var ErrLastAuthMethod = errors.New("last_auth_method")

// ExternalIdentity is an identity an OAuth provider vouched for. The
// email is verified by the provider before it gets here.
type ExternalIdentity struct {
	Provider       string
	ProviderUserID string
	Email          string
}

// OAuthService owns external login and link management. Token issuance
// is delegated to the TokenService, so OAuth logins mint the same
// refresh families and sessions as password logins.
type OAuthService struct {
	Store  store.Store
	Tokens *TokenService
}

// LoginExternal resolves a provider-vouched identity to a console user
// and issues a token pair. A known link logs straight in; a matching
// email links the provider to the existing account; anyone else gets a
// fresh operator account with the provider as its only login method.
func (s *OAuthService) LoginExternal(ctx context.Context, ext ExternalIdentity, client ClientInfo) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	// 1. A known link short-circuits straight to issuance.
	link, err := s.Store.OAuthAccounts().GetOAuthAccountByProviderID(ctx, ext.Provider, ext.ProviderUserID)
	if err == nil {
		u, err := s.Store.Users().GetUserByID(ctx, link.UserID)
		if err != nil {
			return nil, err
		}
		return s.Tokens.IssueForUser(ctx, u, client)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, ext.Email)
	switch {
	case err == nil:
		// 2. Same address, existing account: link the provider and
		// treat the address as verified, the provider vouched for it.
		if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			if !u.IsVerified() {
				if err := tx.Users().MarkEmailVerified(ctx, u.ID); err != nil {
					return err
				}
			}
			return tx.OAuthAccounts().UpsertOAuthAccount(ctx, newLink(u.ID, ext, now))
		}); err != nil {
			return nil, err
		}
		l.Info("oauth provider linked", "user_id", u.ID, "provider", ext.Provider)

	case errors.Is(err, store.ErrNotFound):
		// 3. First contact: provision an operator account behind an
		// unguessable password. The provider is its login method.
		random, err := cryptox.GenerateToken(32)
		if err != nil {
			return nil, err
		}
		hash, err := cryptox.HashPassword(random)
		if err != nil {
			return nil, err
		}
		u = domain.User{
			ID:            idx.New().String(),
			Email:         ext.Email,
			PasswordHash:  hash,
			Role:          domain.RoleOperator,
			EmailVerified: &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return tx.OAuthAccounts().UpsertOAuthAccount(ctx, newLink(u.ID, ext, now))
		}); err != nil {
			return nil, err
		}
		l.Info("user created via oauth", "user_id", u.ID, "provider", ext.Provider)

	default:
		return nil, err
	}

	return s.Tokens.IssueForUser(ctx, u, client)
}

// Unlink removes a user's link for one provider. Refused when the link
// is the only way into the account; idempotent otherwise.
func (s *OAuthService) Unlink(ctx context.Context, userID, provider string) error {
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	n, err := s.Store.OAuthAccounts().CountOAuthAccountsForUser(ctx, userID)
	if err != nil {
		return err
	}
	if n <= 1 && u.PasswordHash == "" {
		return ErrLastAuthMethod
	}

	if err := s.Store.OAuthAccounts().DeleteOAuthAccountsForProvider(ctx, userID, provider); err != nil {
		return err
	}
	l.Info("oauth provider unlinked", "user_id", userID, "provider", provider)
	return nil
}

func newLink(userID string, ext ExternalIdentity, now time.Time) domain.OAuthAccount {
	return domain.OAuthAccount{
		ID:             idx.New().String(),
		UserID:         userID,
		Provider:       ext.Provider,
		ProviderUserID: ext.ProviderUserID,
		Email:          ext.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
