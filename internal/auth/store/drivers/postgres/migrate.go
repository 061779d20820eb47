package postgres

import (
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/paysignal/console-auth/internal/auth/store/drivers/postgres/migrations"
)

// ApplyMigrations applies any pending database migrations from the
// embedded migration files. It opens its own short-lived connection
// rather than borrowing one from the pool, migrate owns locking and
// closes it when done.
func (s *Store) ApplyMigrations() error {
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgxURL(s.dsn))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// pgxURL rewrites a postgres:// DSN to the scheme the migrate pgx/v5
// driver registers under.
func pgxURL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}
