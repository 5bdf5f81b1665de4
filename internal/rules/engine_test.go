package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P8labs/foxd/internal/notify"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

type fakeStore struct {
	listEnabledRules func(ctx context.Context) ([]sqlcgen.Rule, error)
}

func (f fakeStore) ListEnabledRules(ctx context.Context) ([]sqlcgen.Rule, error) {
	return f.listEnabledRules(ctx)
}

type sent struct {
	event    notify.Event
	channels []string
}

type recordingDispatcher struct {
	calls []sent
}

func (d *recordingDispatcher) Send(_ context.Context, ev notify.Event, channels []string) notify.Result {
	d.calls = append(d.calls, sent{event: ev, channels: channels})
	return notify.Result{Sent: len(channels)}
}

func rule(id int64, trigger sqlcgen.TriggerType, filter *string, channels ...string) sqlcgen.Rule {
	return sqlcgen.Rule{
		ID:                   id,
		Name:                 string(trigger),
		TriggerType:          trigger,
		MACFilter:            filter,
		Enabled:              true,
		NotificationChannels: channels,
	}
}

func strPtr(s string) *string { return &s }

var (
	online  = sqlcgen.DeviceStatusOnline
	offline = sqlcgen.DeviceStatusOffline
	unknown = sqlcgen.DeviceStatusUnknown
)

func TestMatches_TriggerTable(t *testing.T) {
	const mac = "aa:bb:cc:dd:ee:ff"
	cases := []struct {
		name    string
		trigger sqlcgen.TriggerType
		tr      Transition
		want    bool
	}{
		{"new device on first sight", sqlcgen.TriggerNewDevice, Transition{IsNew: true, OldStatus: unknown, NewStatus: online}, true},
		{"new device not on reconnect", sqlcgen.TriggerNewDevice, Transition{OldStatus: offline, NewStatus: online}, false},
		{"connected from offline", sqlcgen.TriggerDeviceConnected, Transition{OldStatus: offline, NewStatus: online}, true},
		{"connected from unknown", sqlcgen.TriggerDeviceConnected, Transition{IsNew: true, OldStatus: unknown, NewStatus: online}, true},
		{"connected while online", sqlcgen.TriggerDeviceConnected, Transition{OldStatus: online, NewStatus: online}, false},
		{"status change", sqlcgen.TriggerDeviceStatusChange, Transition{OldStatus: offline, NewStatus: online}, true},
		{"status unchanged", sqlcgen.TriggerDeviceStatusChange, Transition{OldStatus: online, NewStatus: online}, false},
		{"disconnected never on activity", sqlcgen.TriggerDeviceDisconnected, Transition{OldStatus: online, NewStatus: offline}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(rule(1, tc.trigger, nil), mac, tc.tr))
		})
	}
}

func TestMatches_MACFilterIsCaseInsensitiveExact(t *testing.T) {
	tr := Transition{IsNew: true, OldStatus: unknown, NewStatus: online}

	assert.True(t, Matches(rule(1, sqlcgen.TriggerNewDevice, strPtr("AA:BB:CC:DD:EE:FF")), "aa:bb:cc:dd:ee:ff", tr))
	assert.False(t, Matches(rule(1, sqlcgen.TriggerNewDevice, strPtr("aa:bb:cc:dd:ee:00")), "aa:bb:cc:dd:ee:ff", tr))
	assert.False(t, Matches(rule(1, sqlcgen.TriggerNewDevice, strPtr("aa:bb:cc")), "aa:bb:cc:dd:ee:ff", tr))
}

func TestMatches_DisabledRuleNeverFires(t *testing.T) {
	r := rule(1, sqlcgen.TriggerNewDevice, nil)
	r.Enabled = false
	assert.False(t, Matches(r, "aa", Transition{IsNew: true, NewStatus: online}))
}

func TestEvaluateActivity_ReconnectFiresConnectedAndStatusChange(t *testing.T) {
	store := fakeStore{listEnabledRules: func(context.Context) ([]sqlcgen.Rule, error) {
		return []sqlcgen.Rule{
			rule(1, sqlcgen.TriggerNewDevice, nil, "a"),
			rule(2, sqlcgen.TriggerDeviceConnected, nil, "b"),
			rule(3, sqlcgen.TriggerDeviceStatusChange, nil, "c"),
			rule(4, sqlcgen.TriggerDeviceDisconnected, nil, "d"),
		}, nil
	}}
	disp := &recordingDispatcher{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(zerolog.Nop(), store, disp).WithClock(func() time.Time { return now })

	dev := sqlcgen.Device{MACAddress: "aa:bb:cc:dd:ee:ff", Status: online}
	fired, err := e.EvaluateActivity(context.Background(), dev, Transition{OldStatus: offline, NewStatus: online})
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	require.Len(t, disp.calls, 2)
	assert.Equal(t, sqlcgen.TriggerDeviceConnected, disp.calls[0].event.EventType)
	assert.Equal(t, []string{"b"}, disp.calls[0].channels)
	assert.Equal(t, sqlcgen.TriggerDeviceStatusChange, disp.calls[1].event.EventType)
	assert.Equal(t, now, disp.calls[1].event.Timestamp)
	assert.Equal(t, "Rule 'device_status_change' triggered for device aa:bb:cc:dd:ee:ff", disp.calls[1].event.Message)
}

func TestEvaluateDisconnection_OnlyDisconnectAndStatusChange(t *testing.T) {
	store := fakeStore{listEnabledRules: func(context.Context) ([]sqlcgen.Rule, error) {
		return []sqlcgen.Rule{
			rule(1, sqlcgen.TriggerNewDevice, nil, "a"),
			rule(2, sqlcgen.TriggerDeviceConnected, nil, "b"),
			rule(3, sqlcgen.TriggerDeviceStatusChange, nil, "c"),
			rule(4, sqlcgen.TriggerDeviceDisconnected, nil, "d"),
			rule(5, sqlcgen.TriggerDeviceDisconnected, strPtr("11:22:33:44:55:66"), "e"),
		}, nil
	}}
	disp := &recordingDispatcher{}
	e := NewEngine(zerolog.Nop(), store, disp)

	dev := sqlcgen.Device{MACAddress: "aa:bb:cc:dd:ee:ff", Status: online}
	fired, err := e.EvaluateDisconnection(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	require.Len(t, disp.calls, 2)
	for _, c := range disp.calls {
		assert.Equal(t, offline, c.event.Device.Status)
	}
	assert.Equal(t, []string{"c"}, disp.calls[0].channels)
	assert.Equal(t, []string{"d"}, disp.calls[1].channels)
}

func TestEvaluate_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("malformed rule")
	store := fakeStore{listEnabledRules: func(context.Context) ([]sqlcgen.Rule, error) { return nil, boom }}
	disp := &recordingDispatcher{}
	e := NewEngine(zerolog.Nop(), store, disp)

	_, err := e.EvaluateActivity(context.Background(), sqlcgen.Device{MACAddress: "aa"}, Transition{IsNew: true})
	assert.ErrorIs(t, err, boom)
	_, err = e.EvaluateDisconnection(context.Background(), sqlcgen.Device{MACAddress: "aa"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, disp.calls)
}

func TestEvaluate_RuleWithoutChannelsStillCountsAsFired(t *testing.T) {
	store := fakeStore{listEnabledRules: func(context.Context) ([]sqlcgen.Rule, error) {
		return []sqlcgen.Rule{rule(1, sqlcgen.TriggerNewDevice, nil)}, nil
	}}
	disp := &recordingDispatcher{}
	e := NewEngine(zerolog.Nop(), store, disp)

	fired, err := e.EvaluateActivity(context.Background(), sqlcgen.Device{MACAddress: "aa"}, Transition{IsNew: true, NewStatus: online})
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}
