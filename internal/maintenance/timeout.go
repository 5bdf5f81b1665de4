// Package maintenance holds the periodic background jobs: demoting silent
// devices and pruning old audit logs.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

const (
	DefaultCheckInterval = 30 * time.Second
	DefaultDeviceTimeout = 60 * time.Second
)

type DeviceLister interface {
	ListDevicesByStatus(ctx context.Context, status sqlcgen.DeviceStatus) ([]sqlcgen.Device, error)
}

type Disconnector interface {
	RecordDisconnection(ctx context.Context, mac string) error
}

type TimeoutOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

// TimeoutScanner marks online devices offline once they have been silent for
// longer than the device timeout.
type TimeoutScanner struct {
	log      zerolog.Logger
	devices  DeviceLister
	tracker  Disconnector
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewTimeoutScanner(log zerolog.Logger, devices DeviceLister, tracker Disconnector, opts TimeoutOptions) *TimeoutScanner {
	if opts.Interval <= 0 {
		opts.Interval = DefaultCheckInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDeviceTimeout
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &TimeoutScanner{
		log:      log.With().Str("component", "timeout_scanner").Logger(),
		devices:  devices,
		tracker:  tracker,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      opts.Now,
	}
}

// Run scans immediately and then every interval until ctx is done.
func (s *TimeoutScanner) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Dur("timeout", s.timeout).Msg("timeout scanner started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("timeout scan failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ScanOnce demotes every timed-out online device and returns how many it
// demoted. A failure stops the current scan.
func (s *TimeoutScanner) ScanOnce(ctx context.Context) (int, error) {
	online, err := s.devices.ListDevicesByStatus(ctx, sqlcgen.DeviceStatusOnline)
	if err != nil {
		return 0, fmt.Errorf("list online devices: %w", err)
	}

	now := s.now()
	demoted := 0
	for _, d := range online {
		if now.Sub(d.LastSeen) <= s.timeout {
			continue
		}
		if err := s.tracker.RecordDisconnection(ctx, d.MACAddress); err != nil {
			return demoted, fmt.Errorf("disconnect %s: %w", d.MACAddress, err)
		}
		demoted++
	}
	if demoted > 0 {
		s.log.Info().Int("devices", demoted).Msg("timed out devices marked offline")
	}
	return demoted, nil
}
