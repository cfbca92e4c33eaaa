package core

// scheduler.go polls the submission bucket in the background.
//
// The scheduler is long-running and context-aware for graceful shutdown. A
// failed pass is logged and retried on the next tick; it never stops the
// daemon.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultSyncInterval is used when SyncSchedule.Interval is zero.
const DefaultSyncInterval = 5 * time.Minute

// SyncSchedule configures StartSyncScheduler.
type SyncSchedule struct {
	Interval time.Duration
	// SkipInitial delays the first pass by one interval.
	SkipInitial bool
}

// StartSyncScheduler polls the bucket every Interval until ctx is cancelled.
// It runs immediately on start unless SkipInitial is set. Ticks that land
// while a pass is still running join that pass.
func (s *Service) StartSyncScheduler(ctx context.Context, cfg SyncSchedule) {
	if s.syncer == nil {
		s.log.Info("sync scheduler disabled: no bucket configured")
		return
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	s.log.Info("sync scheduler started", "interval", interval.String())

	if !cfg.SkipInitial {
		s.runSyncJob(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.runSyncJob(ctx)
		}
	}
}

// runSyncJob performs one poll.
func (s *Service) runSyncJob(ctx context.Context) {
	start := time.Now()
	sum, err := s.Sync(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		s.log.Error("sync failed", "error", err)
		return
	}
	level := slog.LevelInfo
	if sum.Failed > 0 {
		level = slog.LevelWarn
	}
	s.log.Log(ctx, level, "sync completed",
		"listed", sum.Listed,
		"skipped", sum.Skipped,
		"ingested", sum.Ingested,
		"failed", sum.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
