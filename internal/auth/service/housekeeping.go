package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/paysignal/console-auth/internal/auth/store"
)

// HousekeepingService periodically cleans up expired database records to
// prevent unbounded growth of refresh_tokens, one_time_tokens, and
// sessions. Revoked refresh tokens are kept for an audit retention
// window after expiry before deletion.
type HousekeepingService struct {
	Store            store.Store
	Logger           *slog.Logger
	Interval         time.Duration
	RefreshRetention time.Duration
	SessionMaxIdle   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. Zero durations fall back to defaults.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:            st,
		Logger:           logger,
		Interval:         interval,
		RefreshRetention: 30 * 24 * time.Hour,
		SessionMaxIdle:   30 * 24 * time.Hour,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Non-blocking; call Stop() to shut it down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletions. Each is independent, a failure
// in one does not stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Info("starting housekeeping cleanup")

	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, s.RefreshRetention); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	}

	if err := s.Store.OneTimeTokens().DeleteExpiredOneTimeTokens(ctx); err != nil {
		s.Logger.Error("failed to delete expired one-time tokens", "error", err)
	}

	if err := s.Store.Sessions().DeleteStaleSessions(ctx, s.SessionMaxIdle); err != nil {
		s.Logger.Error("failed to delete stale sessions", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
