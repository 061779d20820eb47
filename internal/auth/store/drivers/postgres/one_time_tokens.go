package postgres

import (
	"context"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
	"github.com/paysignal/console-auth/internal/auth/store"
)

type oneTimeTokensRepo struct {
	db Querier
}

func (r *oneTimeTokensRepo) CreateOneTimeToken(ctx context.Context, t domain.OneTimeToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO one_time_tokens (id, user_id, purpose, token_hash, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, string(t.Purpose), t.TokenHash, t.ExpiresAt, t.ConsumedAt, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *oneTimeTokensRepo) GetOneTimeTokenByHash(ctx context.Context, hash string) (domain.OneTimeToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, purpose, token_hash, expires_at, consumed_at, created_at
		FROM one_time_tokens WHERE token_hash = $1`,
		hash,
	)
	var t domain.OneTimeToken
	err := row.Scan(&t.ID, &t.UserID, &t.Purpose, &t.TokenHash, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		return domain.OneTimeToken{}, mapNotFound(err)
	}
	return t, nil
}

// ConsumeOneTimeToken is the single-use gate: the consumed_at IS NULL
// guard means exactly one caller ever sees a row affected.
func (r *oneTimeTokensRepo) ConsumeOneTimeToken(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE one_time_tokens SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *oneTimeTokensRepo) SupersedeOneTimeTokens(ctx context.Context, userID string, purpose domain.OneTimeTokenPurpose, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE one_time_tokens SET consumed_at = $3
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL`,
		userID, string(purpose), at,
	)
	return err
}

func (r *oneTimeTokensRepo) DeleteExpiredOneTimeTokens(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM one_time_tokens WHERE expires_at < now()`)
	return err
}
