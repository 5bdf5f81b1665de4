package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P8labs/foxd/internal/metrics"
	"github.com/P8labs/foxd/internal/sqlcgen"
)

func strPtr(s string) *string { return &s }

func sampleEvent(trigger sqlcgen.TriggerType) Event {
	seen := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	dev := sqlcgen.Device{
		MACAddress: "aa:bb:cc:dd:ee:ff",
		IPAddress:  strPtr("192.168.1.20"),
		Status:     sqlcgen.DeviceStatusOnline,
		FirstSeen:  seen,
		LastSeen:   seen,
	}
	return NewEvent("door", trigger, dev, seen)
}

type capturedRequest struct {
	Path   string
	Header http.Header
	Body   []byte
}

func recordingServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedRequest{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewEvent_Message(t *testing.T) {
	ev := sampleEvent(sqlcgen.TriggerNewDevice)
	assert.Equal(t, "Rule 'door' triggered for device aa:bb:cc:dd:ee:ff", ev.Message)
}

func TestSend_OneFailingChannelDoesNotBlockOthers(t *testing.T) {
	failing, _ := recordingServer(t, http.StatusInternalServerError)
	ok, okReqs := recordingServer(t, http.StatusOK)

	m := metrics.New()
	d := NewDispatcher(zerolog.Nop(), Options{Metrics: m})
	a := Webhook{URL: failing.URL + "/hooks/a"}
	b := Webhook{URL: ok.URL + "/hooks/b"}
	d.Replace([]Channel{a, b})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerDeviceConnected), []string{a.Name(), b.Name()})

	assert.Equal(t, Result{Sent: 1, Failed: 1}, res)
	assert.Equal(t, uint64(1), m.NotificationsSent())
	assert.Equal(t, uint64(1), m.NotificationsFailed())
	require.Len(t, *okReqs, 1)
	assert.Equal(t, "/hooks/b", (*okReqs)[0].Path)
}

func TestSend_MissingChannelIsSkipped(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(zerolog.Nop(), Options{Metrics: m})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerNewDevice), []string{"telegram_nobody"})

	assert.Equal(t, Result{Missing: 1}, res)
	assert.Zero(t, m.NotificationsSent())
	assert.Zero(t, m.NotificationsFailed())
}

func TestSend_NoChannelsIsNoop(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), Options{})
	assert.Equal(t, Result{}, d.Send(context.Background(), sampleEvent(sqlcgen.TriggerNewDevice), nil))
}

func TestSend_TelegramWireFormat(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	d := NewDispatcher(zerolog.Nop(), Options{TelegramAPIBase: srv.URL})
	c := Telegram{BotToken: "123:abc", ChatID: "42"}
	d.Replace([]Channel{c})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerNewDevice), []string{"telegram_42"})
	require.Equal(t, 1, res.Sent)
	require.Len(t, *reqs, 1)

	r := (*reqs)[0]
	assert.Equal(t, "/bot123:abc/sendMessage", r.Path)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(r.Body, &payload))
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "HTML", payload["parse_mode"])
	assert.Equal(t,
		"🦊 <b>Fox Daemon Alert</b>\n\n"+
			"<b>Event:</b> New Device Discovered\n"+
			"<b>Device:</b> Unknown\n"+
			"<b>IP:</b> 192.168.1.20\n"+
			"<b>MAC:</b> aa:bb:cc:dd:ee:ff\n"+
			"<b>Status:</b> online\n"+
			"<b>Time:</b> 2026-03-04 05:06:07 UTC\n\n"+
			"Rule 'door' triggered for device aa:bb:cc:dd:ee:ff",
		payload["text"])
}

func TestSend_NtfyWireFormat(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusOK)
	d := NewDispatcher(zerolog.Nop(), Options{})
	c := Ntfy{ServerURL: srv.URL + "/", Topic: "lan", Token: strPtr("tok")}
	d.Replace([]Channel{c})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerDeviceDisconnected), []string{"ntfy_lan"})
	require.Equal(t, 1, res.Sent)
	require.Len(t, *reqs, 1)

	r := (*reqs)[0]
	assert.Equal(t, "/lan", r.Path)
	assert.Equal(t, "Device Disconnected", r.Header.Get("Title"))
	assert.Equal(t, "default", r.Header.Get("Priority"))
	assert.Equal(t, "fox,network", r.Header.Get("Tags"))
	assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	assert.Equal(t, "Unknown\nMAC: aa:bb:cc:dd:ee:ff\nIP: 192.168.1.20\nStatus: online", string(r.Body))
}

func TestSend_WebhookWireFormat(t *testing.T) {
	srv, reqs := recordingServer(t, http.StatusNoContent)
	d := NewDispatcher(zerolog.Nop(), Options{})
	c := Webhook{URL: srv.URL + "/hook", Headers: map[string]any{"X-Fox": "yes", "X-Num": 3.0}}
	d.Replace([]Channel{c})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerDeviceStatusChange), []string{"webhook_hook"})
	require.Equal(t, 1, res.Sent)
	require.Len(t, *reqs, 1)

	r := (*reqs)[0]
	assert.Equal(t, "yes", r.Header.Get("X-Fox"))
	assert.Empty(t, r.Header.Get("X-Num"))

	var payload struct {
		EventType string `json:"event_type"`
		Message   string `json:"message"`
		Device    struct {
			MACAddress string  `json:"mac_address"`
			IPAddress  *string `json:"ip_address"`
			Hostname   *string `json:"hostname"`
			Status     string  `json:"status"`
			LastSeen   string  `json:"last_seen"`
		} `json:"device"`
	}
	require.NoError(t, json.Unmarshal(r.Body, &payload))
	assert.Equal(t, "device_status_change", payload.EventType)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", payload.Device.MACAddress)
	assert.Equal(t, "192.168.1.20", *payload.Device.IPAddress)
	assert.Nil(t, payload.Device.Hostname)
	assert.Equal(t, "online", payload.Device.Status)
	assert.Equal(t, "2026-03-04T05:06:07Z", payload.Device.LastSeen)
}

type fakePublisher struct {
	publish func(ctx context.Context, c MQTT, payload []byte) error
}

func (f fakePublisher) Publish(ctx context.Context, c MQTT, payload []byte) error {
	return f.publish(ctx, c, payload)
}

func TestSend_MQTTUsesPublisher(t *testing.T) {
	var gotTopic string
	var gotPayload []byte
	m := metrics.New()
	d := NewDispatcher(zerolog.Nop(), Options{
		Metrics: m,
		MQTT: fakePublisher{publish: func(_ context.Context, c MQTT, payload []byte) error {
			gotTopic = c.Topic
			gotPayload = payload
			return nil
		}},
	})
	d.Replace([]Channel{MQTT{BrokerURL: "tcp://broker:1883", Topic: "foxd/events"}})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerNewDevice), []string{"mqtt_foxd/events"})
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, "foxd/events", gotTopic)
	assert.Contains(t, string(gotPayload), `"event_type":"new_device"`)
}

func TestSend_MQTTFailureCounts(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(zerolog.Nop(), Options{
		Metrics: m,
		MQTT: fakePublisher{publish: func(context.Context, MQTT, []byte) error {
			return errors.New("broker unreachable")
		}},
	})
	d.Replace([]Channel{MQTT{BrokerURL: "tcp://broker:1883", Topic: "t"}})

	res := d.Send(context.Background(), sampleEvent(sqlcgen.TriggerNewDevice), []string{"mqtt_t"})
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Equal(t, uint64(1), m.NotificationsFailed())
}

func TestReplace_SwapsWholeTable(t *testing.T) {
	d := NewDispatcher(zerolog.Nop(), Options{})
	d.Replace([]Channel{Telegram{BotToken: "t", ChatID: "1"}, Ntfy{ServerURL: "http://x", Topic: "a"}})
	assert.ElementsMatch(t, []string{"telegram_1", "ntfy_a"}, d.Names())

	d.Replace([]Channel{Webhook{URL: "http://x/y"}})
	assert.Equal(t, []string{"webhook_y"}, d.Names())
}

func TestDispatcher_ConcurrentSendAndReplace(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK)
	d := NewDispatcher(zerolog.Nop(), Options{})
	c := Webhook{URL: srv.URL + "/h"}
	d.Replace([]Channel{c})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Send(context.Background(), sampleEvent(sqlcgen.TriggerNewDevice), []string{"webhook_h"})
		}()
		go func() {
			defer wg.Done()
			d.Replace([]Channel{c})
		}()
	}
	wg.Wait()
}
