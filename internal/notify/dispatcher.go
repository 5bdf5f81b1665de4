// Package notify delivers rule notifications to Telegram, ntfy, generic
// webhooks and MQTT brokers.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/metrics"
)

type Options struct {
	// HTTPClient defaults to a client with no timeout.
	HTTPClient      *http.Client
	TelegramAPIBase string
	MQTT            Publisher
	Metrics         *metrics.Metrics
}

// Result counts the outcome of one Send call.
type Result struct {
	Sent    int
	Failed  int
	Missing int
}

// Dispatcher owns the name -> channel table. Sends read-lock it; Replace swaps
// the whole table under the write lock.
type Dispatcher struct {
	log             zerolog.Logger
	client          *http.Client
	telegramAPIBase string
	mqtt            Publisher
	metrics         *metrics.Metrics

	mu       sync.RWMutex
	channels map[string]Channel
}

func NewDispatcher(log zerolog.Logger, opts Options) *Dispatcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.TelegramAPIBase == "" {
		opts.TelegramAPIBase = DefaultTelegramAPIBase
	}
	if opts.MQTT == nil {
		opts.MQTT = PahoPublisher{}
	}
	return &Dispatcher{
		log:             log.With().Str("component", "notify").Logger(),
		client:          opts.HTTPClient,
		telegramAPIBase: opts.TelegramAPIBase,
		mqtt:            opts.MQTT,
		metrics:         opts.Metrics,
		channels:        map[string]Channel{},
	}
}

// Replace installs a new channel table. Later entries win on name collisions.
func (d *Dispatcher) Replace(channels []Channel) {
	next := make(map[string]Channel, len(channels))
	for _, c := range channels {
		next[c.Name()] = c
	}

	d.mu.Lock()
	d.channels = next
	d.mu.Unlock()

	d.log.Info().Int("channels", len(next)).Msg("notification channels loaded")
}

// Names lists the loaded channel names.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.channels))
	for name := range d.channels {
		out = append(out, name)
	}
	return out
}

func (d *Dispatcher) lookup(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.channels[name]
	return c, ok
}

// Send makes exactly one delivery attempt per named channel. Failures are
// logged and counted; they never stop the remaining channels.
func (d *Dispatcher) Send(ctx context.Context, ev Event, names []string) Result {
	var res Result
	for _, name := range names {
		c, ok := d.lookup(name)
		if !ok {
			res.Missing++
			d.log.Warn().Str("channel", name).Msg("notification channel not found")
			continue
		}

		if err := d.deliver(ctx, c, ev); err != nil {
			res.Failed++
			d.metrics.IncNotificationsFailed()
			d.log.Error().Err(err).Str("channel", name).Str("mac", ev.Device.MACAddress).Msg("notification failed")
			continue
		}

		res.Sent++
		d.metrics.IncNotificationsSent()
		d.log.Info().Str("channel", name).Str("mac", ev.Device.MACAddress).Str("event_type", string(ev.EventType)).Msg("notification sent")
	}
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, c Channel, ev Event) error {
	var (
		req *http.Request
		err error
	)
	switch v := c.(type) {
	case Telegram:
		req, err = newTelegramRequest(ctx, d.telegramAPIBase, v, ev)
	case Ntfy:
		req, err = newNtfyRequest(ctx, v, ev)
	case Webhook:
		req, err = newWebhookRequest(ctx, v, ev)
	case MQTT:
		payload, err := webhookJSON(ev)
		if err != nil {
			return err
		}
		return d.mqtt.Publish(ctx, v, payload)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownChannelType, c)
	}
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.Type(), err)
	}
	return d.do(req)
}

func (d *Dispatcher) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s responded %d", req.URL.Host, resp.StatusCode)
	}
	return nil
}
