package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// DefaultSyncInterval applies when a scheduler is built with a zero interval.
const DefaultSyncInterval = 30 * time.Second

// SyncScheduler runs Synchronize on a ticker while the App is unlocked
// and tracks whether the server was reachable on the last attempt.
type SyncScheduler struct {
	app      *App
	interval time.Duration
	logger   logging.Logger

	mu   sync.RWMutex
	mode Mode
	last error
}

func NewSyncScheduler(app *App, interval time.Duration, logger logging.Logger) *SyncScheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SyncScheduler{
		app:      app,
		interval: interval,
		logger:   logger.With("module", "sync"),
		mode:     ModeOffline,
	}
}

// Mode reports the connectivity seen by the last run.
func (s *SyncScheduler) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// LastError is the error of the last run, nil after a clean one.
func (s *SyncScheduler) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *SyncScheduler) setMode(ctx context.Context, mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != mode {
		s.mode = mode
		s.logger.Info(ctx, "switched mode", "mode", mode)
	}
}

// RunOnce synchronizes once. A locked or logged out App is skipped.
func (s *SyncScheduler) RunOnce(ctx context.Context) error {
	if s.app.Locked() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	err := s.app.Synchronize(ctx)
	switch {
	case errors.Is(err, common.ErrUnavailable):
		s.setMode(ctx, ModeOffline)
	case errors.Is(err, common.ErrLocked), errors.Is(err, ErrNoAccount):
		err = nil
	default:
		s.setMode(ctx, ModeOnline)
	}
	if err != nil {
		s.logger.Warn(ctx, "synchronization failed", "error", err)
	}

	s.mu.Lock()
	s.last = err
	s.mu.Unlock()
	return err
}

// Run calls RunOnce every interval until ctx is done.
func (s *SyncScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}
