package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultRetentionDays   = 30
	DefaultCleanupSchedule = "@every 24h"
	retentionSweepTimeout  = time.Minute
)

type LogPruner interface {
	DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetentionOptions struct {
	Enabled  bool
	Days     int
	Schedule string
	Now      func() time.Time
}

// RetentionSweeper deletes audit log entries older than the retention window.
type RetentionSweeper struct {
	log      zerolog.Logger
	logs     LogPruner
	enabled  bool
	days     int
	schedule string
	now      func() time.Time
}

func NewRetentionSweeper(log zerolog.Logger, logs LogPruner, opts RetentionOptions) *RetentionSweeper {
	if opts.Days <= 0 {
		opts.Days = DefaultRetentionDays
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultCleanupSchedule
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &RetentionSweeper{
		log:      log.With().Str("component", "retention").Logger(),
		logs:     logs,
		enabled:  opts.Enabled,
		days:     opts.Days,
		schedule: opts.Schedule,
		now:      opts.Now,
	}
}

// Run sweeps once, then on the cron schedule until ctx is done.
func (s *RetentionSweeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		s.sweepAndLog(ctx)
	}); err != nil {
		return fmt.Errorf("schedule log cleanup %q: %w", s.schedule, err)
	}

	s.log.Info().Bool("enabled", s.enabled).Int("retention_days", s.days).Str("schedule", s.schedule).Msg("log retention sweeper started")
	s.sweepAndLog(ctx)

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *RetentionSweeper) sweepAndLog(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	sweepCtx, cancel := context.WithTimeout(ctx, retentionSweepTimeout)
	defer cancel()

	if _, err := s.SweepOnce(sweepCtx); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("log cleanup failed")
	}
}

// SweepOnce deletes expired entries and returns how many were removed. It is
// a no-op when retention is disabled.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	if !s.enabled {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(s.days) * 24 * time.Hour)
	n, err := s.logs.DeleteLogsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete logs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		s.log.Info().Int64("deleted", n).Int("retention_days", s.days).Msg("old logs cleaned up")
	}
	return n, nil
}
