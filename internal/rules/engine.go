// Package rules decides which stored rules fire for a presence transition and
// hands the matches to the notification dispatcher.
package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/P8labs/foxd/internal/notify"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

type Store interface {
	ListEnabledRules(ctx context.Context) ([]sqlcgen.Rule, error)
}

type Dispatcher interface {
	Send(ctx context.Context, ev notify.Event, channels []string) notify.Result
}

// Transition describes one presence change. IsNew is set only on first sight.
type Transition struct {
	IsNew     bool
	OldStatus sqlcgen.DeviceStatus
	NewStatus sqlcgen.DeviceStatus
}

// Matches reports whether a rule applies to the device and transition. The
// MAC filter is an exact, case-insensitive comparison.
func Matches(rule sqlcgen.Rule, mac string, tr Transition) bool {
	if !rule.Enabled {
		return false
	}
	if rule.MACFilter != nil && !strings.EqualFold(*rule.MACFilter, mac) {
		return false
	}

	switch rule.TriggerType {
	case sqlcgen.TriggerNewDevice:
		return tr.IsNew
	case sqlcgen.TriggerDeviceConnected:
		return tr.OldStatus != sqlcgen.DeviceStatusOnline && tr.NewStatus == sqlcgen.DeviceStatusOnline
	case sqlcgen.TriggerDeviceStatusChange:
		return tr.OldStatus != tr.NewStatus
	default:
		// device_disconnected only fires from the disconnection path.
		return false
	}
}

// matchesDisconnection is the disconnection-path counterpart of Matches.
func matchesDisconnection(rule sqlcgen.Rule, mac string) bool {
	if !rule.Enabled {
		return false
	}
	if rule.MACFilter != nil && !strings.EqualFold(*rule.MACFilter, mac) {
		return false
	}
	return rule.TriggerType == sqlcgen.TriggerDeviceDisconnected ||
		rule.TriggerType == sqlcgen.TriggerDeviceStatusChange
}

type Engine struct {
	log        zerolog.Logger
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
}

func NewEngine(log zerolog.Logger, store Store, dispatcher Dispatcher) *Engine {
	return &Engine{
		log:        log.With().Str("component", "rules").Logger(),
		store:      store,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source for notification events.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// EvaluateActivity fires every enabled rule matching an activity transition.
// It returns the number of rules that fired.
func (e *Engine) EvaluateActivity(ctx context.Context, device sqlcgen.Device, tr Transition) (int, error) {
	rules, err := e.store.ListEnabledRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled rules: %w", err)
	}

	fired := 0
	for _, r := range rules {
		if !Matches(r, device.MACAddress, tr) {
			continue
		}
		e.fire(ctx, r, device)
		fired++
	}
	return fired, nil
}

// EvaluateDisconnection fires device_disconnected and device_status_change
// rules. The device snapshot is reported as offline.
func (e *Engine) EvaluateDisconnection(ctx context.Context, device sqlcgen.Device) (int, error) {
	rules, err := e.store.ListEnabledRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled rules: %w", err)
	}

	device.Status = sqlcgen.DeviceStatusOffline
	fired := 0
	for _, r := range rules {
		if !matchesDisconnection(r, device.MACAddress) {
			continue
		}
		e.fire(ctx, r, device)
		fired++
	}
	return fired, nil
}

func (e *Engine) fire(ctx context.Context, r sqlcgen.Rule, device sqlcgen.Device) {
	ev := notify.NewEvent(r.Name, r.TriggerType, device, e.now())
	res := e.dispatcher.Send(ctx, ev, r.NotificationChannels)
	e.log.Debug().
		Int64("rule_id", r.ID).
		Str("rule", r.Name).
		Str("mac", device.MACAddress).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("missing", res.Missing).
		Msg("rule fired")
}
