package postgres

import (
	"context"

	"github.com/paysignal/console-auth/internal/auth/domain"
)

type oauthAccountsRepo struct {
	db Querier
}

func (r *oauthAccountsRepo) UpsertOAuthAccount(ctx context.Context, a domain.OAuthAccount) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_user_id, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (provider, provider_user_id)
		DO UPDATE SET email = EXCLUDED.email, updated_at = now()`,
		a.ID, a.UserID, a.Provider, a.ProviderUserID, a.Email,
	)
	return err
}

func (r *oauthAccountsRepo) GetOAuthAccountByProviderID(ctx context.Context, provider, providerUserID string) (domain.OAuthAccount, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, provider, provider_user_id, email, created_at, updated_at
		FROM oauth_accounts WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	)
	var a domain.OAuthAccount
	err := row.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &a.Email, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.OAuthAccount{}, mapNotFound(err)
	}
	return a, nil
}

func (r *oauthAccountsRepo) CountOAuthAccountsForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM oauth_accounts WHERE user_id = $1`,
		userID,
	).Scan(&n)
	return n, err
}

func (r *oauthAccountsRepo) DeleteOAuthAccountsForProvider(ctx context.Context, userID, provider string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM oauth_accounts WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	return err
}
