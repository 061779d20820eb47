// Package postgres is the PostgreSQL driver for the auth store, built on
// pgx. Repositories run against a Querier so the same code serves the
// pool, a transaction, and pgxmock in tests.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paysignal/console-auth/internal/auth/store"
)

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the pool surface the Store needs. Implemented by
// *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

type Store struct {
	pool PgxPool
	dsn  string
}

// NewStore opens a connection pool for the given DSN.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, dsn: dsn}, nil
}

// NewStoreWithPool wires an existing pool, used by tests with pgxmock.
func NewStoreWithPool(pool PgxPool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return newTx(ctx, tx), nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Rollback in the defer is safe even after a successful commit.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users                 { return &usersRepo{db: s.pool} }
func (s *Store) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{db: s.pool} }
func (s *Store) Sessions() store.Sessions           { return &sessionsRepo{db: s.pool} }
func (s *Store) OneTimeTokens() store.OneTimeTokens { return &oneTimeTokensRepo{db: s.pool} }
func (s *Store) OAuthAccounts() store.OAuthAccounts { return &oauthAccountsRepo{db: s.pool} }

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}
