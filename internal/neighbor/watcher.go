// Package neighbor polls the kernel ARP table and reports neighbors that
// appear, are still present, or disappear.
package neighbor

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/netevent"
)

const (
	DefaultARPTablePath = "/proc/net/arp"
	DefaultInterval     = 30 * time.Second
)

type Options struct {
	ARPTablePath string
	Interval     time.Duration
	// ReadFile and IndexOf default to the os and net package lookups.
	ReadFile func(path string) ([]byte, error)
	IndexOf  func(device string) uint32
}

type Watcher struct {
	log      zerolog.Logger
	queue    *netevent.Queue
	path     string
	interval time.Duration
	readFile func(string) ([]byte, error)
	indexOf  func(string) uint32

	known map[string]Entry
}

func NewWatcher(log zerolog.Logger, queue *netevent.Queue, opts Options) *Watcher {
	if opts.ARPTablePath == "" {
		opts.ARPTablePath = DefaultARPTablePath
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	if opts.IndexOf == nil {
		opts.IndexOf = interfaceIndex
	}
	return &Watcher{
		log:      log.With().Str("component", "neighbor").Logger(),
		queue:    queue,
		path:     opts.ARPTablePath,
		interval: opts.Interval,
		readFile: opts.ReadFile,
		indexOf:  opts.IndexOf,
		known:    map[string]Entry{},
	}
}

// Run polls immediately and then every interval. Events are enqueued with a
// blocking send so neighbor changes are never dropped.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().Str("path", w.path).Dur("interval", w.interval).Msg("neighbor watcher started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads the table once and emits one event per neighbor. An entry that
// is still present emits NeighborUpdated on every poll so its last_seen keeps
// moving while it stays in the table.
func (w *Watcher) Poll(ctx context.Context) error {
	content, err := w.readFile(w.path)
	if err != nil {
		return fmt.Errorf("read arp table %s: %w", w.path, err)
	}
	entries, err := ParseProcNetARP(string(content))
	if err != nil {
		return fmt.Errorf("parse arp table %s: %w", w.path, err)
	}

	current := make(map[string]Entry, len(entries))
	for _, e := range entries {
		current[e.MAC] = e
	}

	for _, ev := range w.diff(current) {
		if err := w.queue.Send(ctx, ev); err != nil {
			return err
		}
	}
	w.known = current
	return nil
}

func (w *Watcher) diff(current map[string]Entry) []netevent.Event {
	var out []netevent.Event
	for mac, e := range current {
		if _, seen := w.known[mac]; !seen {
			out = append(out, netevent.NeighborAdded{HWAddr: mac, IP: e.IP, InterfaceIndex: w.indexOf(e.Device)})
			continue
		}
		out = append(out, netevent.NeighborUpdated{HWAddr: mac, IP: e.IP, InterfaceIndex: w.indexOf(e.Device)})
	}
	for mac, prev := range w.known {
		if _, ok := current[mac]; !ok {
			out = append(out, netevent.NeighborRemoved{HWAddr: mac, IP: prev.IP, InterfaceIndex: w.indexOf(prev.Device)})
		}
	}
	return out
}

func interfaceIndex(device string) uint32 {
	iface, err := net.InterfaceByName(device)
	if err != nil {
		return 0
	}
	return uint32(iface.Index)
}
