package backup

import (
	"context"
	"log/slog"
	"time"
)

// Snapshotter is anything that can take one backup of the QA store.
type Snapshotter interface {
	Snapshot(ctx context.Context) error
}

// Scheduler triggers snapshots on a fixed interval until the context is
// cancelled. Upload failures are logged and the loop keeps going; backups
// are best-effort and must never take the service down.
type Scheduler struct {
	snapshotter Snapshotter
	interval    time.Duration
	logger      *slog.Logger
}

func NewScheduler(snapshotter Snapshotter, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		snapshotter: snapshotter,
		interval:    interval,
		logger:      logger.With("component", "backup.scheduler"),
	}
}

// Run blocks until ctx is done. It always returns nil so it can share an
// errgroup with the HTTP server without shooting it down.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.snapshotter == nil || s.interval <= 0 {
		s.logger.Info("backup disabled")
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("backup scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.snapshotter.Snapshot(ctx); err != nil {
				s.logger.Error("qa snapshot failed", "error", err)
			}
		}
	}
}
