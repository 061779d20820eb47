package postgres

import (
	"context"
	"time"

	"github.com/paysignal/console-auth/internal/auth/domain"
)

type sessionsRepo struct {
	db Querier
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token_id, ip, user_agent, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.RefreshTokenID, s.IP, s.UserAgent, s.CreatedAt, s.LastActiveAt,
	)
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, refresh_token_id, ip, user_agent, created_at, last_active_at
		FROM sessions WHERE id = $1`,
		id,
	)
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenID, &s.IP, &s.UserAgent, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetSessionByRefreshTokenID(ctx context.Context, refreshTokenID string) (domain.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, refresh_token_id, ip, user_agent, created_at, last_active_at
		FROM sessions WHERE refresh_token_id = $1`,
		refreshTokenID,
	)
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenID, &s.IP, &s.UserAgent, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET last_active_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionsRepo) DeleteSessionsForUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *sessionsRepo) DeleteStaleSessions(ctx context.Context, maxIdle time.Duration) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE last_active_at < now() - make_interval(secs => $1)`,
		maxIdle.Seconds(),
	)
	return err
}
