package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/store"
)

// HousekeepingService periodically sweeps expired sessions and pending
// logins so the store does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to 5 minutes.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every tick. It does not block.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

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

// cleanup sweeps each record kind independently.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	sessions, err := s.Store.Sessions().DeleteExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	}

	logins, err := s.Store.PendingLogins().DeleteExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired pending logins", "error", err)
	}

	s.Logger.Debug("housekeeping cleanup completed",
		"expired_sessions", sessions,
		"expired_pending_logins", logins,
	)
}
