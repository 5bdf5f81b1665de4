// Package capture reads ARP and DHCP frames off a network interface and feeds
// them to the event queue.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/metrics"
	"github.com/P8labs/foxd/internal/netevent"
)

// ErrCaptureUnavailable is returned by builds without libpcap support.
var ErrCaptureUnavailable = errors.New("packet capture not compiled in (build with -tags pcap)")

// Handle is an open capture session.
type Handle interface {
	Packets() <-chan gopacket.Packet
	Close()
}

type Opener func(iface, filter string) (Handle, error)

type Options struct {
	Interface string
	Filter    string
	// Open defaults to the libpcap opener of this build.
	Open    Opener
	Metrics *metrics.Metrics
}

type Source struct {
	log     zerolog.Logger
	queue   *netevent.Queue
	iface   string
	filter  string
	open    Opener
	metrics *metrics.Metrics
}

func NewSource(log zerolog.Logger, queue *netevent.Queue, opts Options) *Source {
	if opts.Filter == "" {
		opts.Filter = DefaultFilter
	}
	if opts.Open == nil {
		opts.Open = openLive
	}
	return &Source{
		log:     log.With().Str("component", "capture").Str("interface", opts.Interface).Logger(),
		queue:   queue,
		iface:   opts.Interface,
		filter:  opts.Filter,
		open:    opts.Open,
		metrics: opts.Metrics,
	}
}

// Run captures until ctx is done. Failing to open the interface, or the
// packet stream ending on its own, is an error.
func (s *Source) Run(ctx context.Context) error {
	h, err := s.open(s.iface, s.filter)
	if err != nil {
		return fmt.Errorf("open capture on %s: %w", s.iface, err)
	}
	defer h.Close()

	s.log.Info().Str("filter", s.filter).Msg("packet capture started")
	return s.consume(ctx, h.Packets())
}

func (s *Source) consume(ctx context.Context, packets <-chan gopacket.Packet) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-packets:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("capture on %s: packet stream closed", s.iface)
			}
			s.metrics.IncPacketsCaptured()

			ev, ok := Decode(p)
			if !ok {
				continue
			}
			if !s.queue.TrySend(ev) {
				s.log.Debug().Str("mac", ev.MAC()).Msg("event queue full, dropping event")
			}
		}
	}
}
