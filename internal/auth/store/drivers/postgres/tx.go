package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/paysignal/console-auth/internal/auth/store"
)

var errNestedTx = errors.New("postgres: nested transactions are not supported")

type txStore struct {
	ctx context.Context
	tx  pgx.Tx
}

func newTx(ctx context.Context, tx pgx.Tx) *txStore {
	return &txStore{ctx: ctx, tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit(t.ctx) }
func (t *txStore) Rollback() error { return t.tx.Rollback(t.ctx) }

func (t *txStore) Close() error { return nil } // caller commits/rollbacks; the outer pool stays open

// Ping is a no-op for transactions, the connection is already live.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, errNestedTx
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errNestedTx
}

func (t *txStore) Users() store.Users                 { return &usersRepo{db: t.tx} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: t.tx} }
func (t *txStore) Sessions() store.Sessions           { return &sessionsRepo{db: t.tx} }
func (t *txStore) OneTimeTokens() store.OneTimeTokens { return &oneTimeTokensRepo{db: t.tx} }
func (t *txStore) OAuthAccounts() store.OAuthAccounts { return &oauthAccountsRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx starts
