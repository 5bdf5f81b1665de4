// Package presence turns network events into device state. It is the single
// writer of device online/offline transitions.
package presence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/netevent"
	"github.com/P8labs/foxd/internal/rules"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

const logCategory = "device"

type Store interface {
	GetDeviceByMAC(ctx context.Context, mac string) (sqlcgen.Device, error)
	UpsertDevice(ctx context.Context, arg sqlcgen.UpsertDeviceParams) (int64, error)
	UpdateDeviceStatus(ctx context.Context, arg sqlcgen.UpdateDeviceStatusParams) error
	CreateLog(ctx context.Context, arg sqlcgen.CreateLogParams) (int64, error)
}

type RuleEngine interface {
	EvaluateActivity(ctx context.Context, device sqlcgen.Device, tr rules.Transition) (int, error)
	EvaluateDisconnection(ctx context.Context, device sqlcgen.Device) (int, error)
}

type Tracker struct {
	log   zerolog.Logger
	store Store
	rules RuleEngine
	now   func() time.Time
}

type Options struct {
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func NewTracker(log zerolog.Logger, store Store, engine RuleEngine, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Tracker{
		log:   log.With().Str("component", "presence").Logger(),
		store: store,
		rules: engine,
		now:   opts.Now,
	}
}

// NormalizeMAC canonicalizes hardware addresses to lowercase colon form.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(mac)
	if hw, err := net.ParseMAC(mac); err == nil {
		return hw.String()
	}
	return strings.ToLower(mac)
}

// RecordActivity marks the device online. ip may be empty when the event did
// not carry an address; the stored one is kept in that case.
func (t *Tracker) RecordActivity(ctx context.Context, mac string, ip string) error {
	mac = NormalizeMAC(mac)
	if mac == "" {
		return errors.New("record activity: empty mac")
	}

	existing, err := t.store.GetDeviceByMAC(ctx, mac)
	isNew := false
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		isNew = true
	case err != nil:
		return fmt.Errorf("get device %s: %w", mac, err)
	}

	now := t.now()
	oldStatus := sqlcgen.DeviceStatusUnknown
	device := sqlcgen.Device{MACAddress: mac, FirstSeen: now}
	if !isNew {
		oldStatus = existing.Status
		device = existing
		device.MACAddress = mac
	}

	var ipPtr *string
	if ip != "" {
		ipPtr = &ip
		device.IPAddress = ipPtr
	}
	device.LastSeen = now
	device.Status = sqlcgen.DeviceStatusOnline

	id, err := t.store.UpsertDevice(ctx, sqlcgen.UpsertDeviceParams{
		MACAddress: mac,
		IPAddress:  ipPtr,
		Hostname:   device.Hostname,
		Nickname:   device.Nickname,
		Vendor:     device.Vendor,
		FirstSeen:  device.FirstSeen,
		LastSeen:   now,
		Status:     sqlcgen.DeviceStatusOnline,
	})
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", mac, err)
	}
	device.ID = id

	switch {
	case isNew:
		t.audit(ctx, sqlcgen.LogLevelInfo, "New device discovered: "+mac, ipPtr)
		t.log.Info().Str("mac", mac).Str("ip", ip).Msg("new device discovered")
	case oldStatus != sqlcgen.DeviceStatusOnline:
		t.audit(ctx, sqlcgen.LogLevelInfo, "Device connected: "+mac, ipPtr)
		t.log.Info().Str("mac", mac).Str("ip", ip).Str("previous", string(oldStatus)).Msg("device connected")
	}

	tr := rules.Transition{IsNew: isNew, OldStatus: oldStatus, NewStatus: sqlcgen.DeviceStatusOnline}
	if _, err := t.rules.EvaluateActivity(ctx, device, tr); err != nil {
		return fmt.Errorf("evaluate rules for %s: %w", mac, err)
	}
	return nil
}

// RecordDisconnection marks a known online device offline. Unknown or already
// offline devices are left alone.
func (t *Tracker) RecordDisconnection(ctx context.Context, mac string) error {
	mac = NormalizeMAC(mac)

	device, err := t.store.GetDeviceByMAC(ctx, mac)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get device %s: %w", mac, err)
	}
	if device.Status == sqlcgen.DeviceStatusOffline {
		return nil
	}

	if err := t.store.UpdateDeviceStatus(ctx, sqlcgen.UpdateDeviceStatusParams{
		MACAddress: mac,
		Status:     sqlcgen.DeviceStatusOffline,
	}); err != nil {
		return fmt.Errorf("mark %s offline: %w", mac, err)
	}

	t.audit(ctx, sqlcgen.LogLevelWarning, "Device disconnected: "+mac, device.IPAddress)
	t.log.Warn().Str("mac", mac).Msg("device disconnected")

	device.Status = sqlcgen.DeviceStatusOffline
	if _, err := t.rules.EvaluateDisconnection(ctx, device); err != nil {
		return fmt.Errorf("evaluate rules for %s: %w", mac, err)
	}
	return nil
}

// HandleEvent routes one network event to the matching transition.
func (t *Tracker) HandleEvent(ctx context.Context, ev netevent.Event) error {
	switch e := ev.(type) {
	case netevent.ARPRequest:
		return t.RecordActivity(ctx, e.SourceMAC, addrString(e.SourceIP))
	case netevent.ARPReply:
		return t.RecordActivity(ctx, e.SourceMAC, addrString(e.SourceIP))
	case netevent.DHCPRequest:
		return t.RecordActivity(ctx, e.ClientMAC, addrString(e.RequestedIP))
	case netevent.NeighborAdded:
		return t.RecordActivity(ctx, e.HWAddr, addrString(e.IP))
	case netevent.NeighborUpdated:
		return t.RecordActivity(ctx, e.HWAddr, addrString(e.IP))
	case netevent.NeighborRemoved:
		return t.RecordDisconnection(ctx, e.HWAddr)
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

// Run consumes events in arrival order until ctx is done or the channel is
// closed. A failing event is logged and skipped.
func (t *Tracker) Run(ctx context.Context, events <-chan netevent.Event) error {
	t.log.Info().Msg("presence tracker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				t.log.Info().Msg("event channel closed")
				return nil
			}
			if err := t.HandleEvent(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				t.log.Error().Err(err).Str("mac", ev.MAC()).Str("event", fmt.Sprintf("%T", ev)).Msg("event processing failed")
			}
		}
	}
}

func (t *Tracker) audit(ctx context.Context, level sqlcgen.LogLevel, message string, details *string) {
	_, err := t.store.CreateLog(ctx, sqlcgen.CreateLogParams{
		Timestamp: t.now(),
		Level:     level,
		Category:  logCategory,
		Message:   message,
		Details:   details,
	})
	if err != nil {
		t.log.Warn().Err(err).Str("message", message).Msg("audit log write failed")
	}
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}
