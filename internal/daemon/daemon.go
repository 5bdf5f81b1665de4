// Package daemon assembles the monitoring pipeline: producers feed the event
// queue, the presence tracker consumes it, and background jobs run alongside
// under one supervisor.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/capture"
	"github.com/P8labs/foxd/internal/config"
	"github.com/P8labs/foxd/internal/maintenance"
	"github.com/P8labs/foxd/internal/metrics"
	"github.com/P8labs/foxd/internal/neighbor"
	"github.com/P8labs/foxd/internal/netevent"
	"github.com/P8labs/foxd/internal/notify"
	"github.com/P8labs/foxd/internal/presence"
	"github.com/P8labs/foxd/internal/rules"
	"github.com/P8labs/foxd/internal/supervisor"
)

// Store is everything the pipeline reads and writes. *sqlcgen.Queries
// satisfies it.
type Store interface {
	presence.Store
	rules.Store
	maintenance.DeviceLister
	maintenance.LogPruner
	notify.ChannelLister
}

type Options struct {
	Config  config.Daemon
	Metrics *metrics.Metrics
	// Now overrides the wall clock for presence and timeout decisions.
	Now func() time.Time
	// CaptureOpen and ReadARPTable replace the live interface and
	// /proc/net/arp readers.
	CaptureOpen  capture.Opener
	ReadARPTable func(path string) ([]byte, error)
}

type Daemon struct {
	log        zerolog.Logger
	cfg        config.Daemon
	store      Store
	dispatcher *notify.Dispatcher

	queue    *netevent.Queue
	tracker  *presence.Tracker
	scanner  *maintenance.TimeoutScanner
	sweeper  *maintenance.RetentionSweeper
	capture  *capture.Source
	neighbor *neighbor.Watcher
}

func New(log zerolog.Logger, store Store, dispatcher *notify.Dispatcher, opts Options) *Daemon {
	cfg := opts.Config
	queue := netevent.NewQueue(cfg.EventQueueCapacity, opts.Metrics)
	engine := rules.NewEngine(log, store, dispatcher)
	if opts.Now != nil {
		engine.WithClock(opts.Now)
	}
	tracker := presence.NewTracker(log, store, engine, presence.Options{Now: opts.Now})

	d := &Daemon{
		log:        log.With().Str("component", "daemon").Logger(),
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		queue:      queue,
		tracker:    tracker,
		scanner: maintenance.NewTimeoutScanner(log, store, tracker, maintenance.TimeoutOptions{
			Interval: cfg.NeighborCheckInterval(),
			Timeout:  cfg.DeviceTimeout(),
			Now:      opts.Now,
		}),
		sweeper: maintenance.NewRetentionSweeper(log, store, maintenance.RetentionOptions{
			Enabled:  cfg.LogCleanupEnabled,
			Days:     cfg.LogRetentionDays,
			Schedule: cfg.LogCleanupSchedule,
			Now:      opts.Now,
		}),
	}

	if cfg.CaptureEnabled {
		d.capture = capture.NewSource(log, queue, capture.Options{
			Interface: cfg.Interface,
			Filter:    cfg.CaptureFilter,
			Open:      opts.CaptureOpen,
			Metrics:   opts.Metrics,
		})
	}
	if cfg.NeighborEnabled {
		d.neighbor = neighbor.NewWatcher(log, queue, neighbor.Options{
			ARPTablePath: cfg.ARPTablePath,
			Interval:     cfg.NeighborCheckInterval(),
			ReadFile:     opts.ReadARPTable,
		})
	}
	return d
}

func (d *Daemon) Queue() *netevent.Queue { return d.queue }

func (d *Daemon) Tracker() *presence.Tracker { return d.tracker }

func (d *Daemon) Scanner() *maintenance.TimeoutScanner { return d.scanner }

// Neighbor is nil unless neighbor polling is enabled.
func (d *Daemon) Neighbor() *neighbor.Watcher { return d.neighbor }

// Run loads the notification channels and supervises every task until one
// stops or ctx is done. See supervisor.Supervisor.Run for the result.
func (d *Daemon) Run(ctx context.Context) error {
	n, err := d.dispatcher.Reload(ctx, d.store)
	if err != nil {
		return fmt.Errorf("load notification channels: %w", err)
	}
	d.log.Info().
		Int("channels", n).
		Str("interface", d.cfg.Interface).
		Bool("capture", d.capture != nil).
		Bool("neighbor", d.neighbor != nil).
		Msg("daemon starting")

	sup := supervisor.New(d.log, d.cfg.ShutdownGrace())
	sup.Add("presence", func(ctx context.Context) error {
		return d.tracker.Run(ctx, d.queue.Events())
	})
	sup.Add("timeout_scanner", d.scanner.Run)
	sup.Add("log_retention", d.sweeper.Run)
	if d.capture != nil {
		sup.Add("capture", d.capture.Run)
	}
	if d.neighbor != nil {
		sup.Add("neighbor", d.neighbor.Run)
	}

	err = sup.Run(ctx)
	d.log.Info().Err(err).Msg("daemon stopped")
	return err
}
