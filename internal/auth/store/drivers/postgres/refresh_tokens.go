package postgres

import (
	"context"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store"
)

type refreshTokensRepo struct {
	db Querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, client_ip, user_agent, issued_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.TokenHash, t.FamilyID, t.ClientIP, t.UserAgent, t.IssuedAt, t.ExpiresAt, t.RevokedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, family_id, client_ip, user_agent, issued_at, expires_at, revoked_at
		FROM refresh_tokens WHERE token_hash = $1`,
		hash,
	)
	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID, &t.ClientIP, &t.UserAgent, &t.IssuedAt, &t.ExpiresAt, &t.RevokedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

// The revoked_at IS NULL guard makes every revocation idempotent: a
// second revoke matches zero rows and keeps the original timestamp.

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)
	return err
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now() WHERE family_id = $1 AND revoked_at IS NULL`,
		familyID,
	)
	return err
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, retain time.Duration) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < now() - make_interval(secs => $1)`,
		retain.Seconds(),
	)
	return err
}
