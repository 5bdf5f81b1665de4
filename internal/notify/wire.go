package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

const DefaultTelegramAPIBase = "https://api.telegram.org"

const telegramTimeLayout = "2006-01-02 15:04:05 UTC"

func telegramEventName(t sqlcgen.TriggerType) string {
	switch t {
	case sqlcgen.TriggerDeviceConnected:
		return "Device Connected"
	case sqlcgen.TriggerDeviceDisconnected:
		return "Device Disconnected"
	case sqlcgen.TriggerNewDevice:
		return "New Device Discovered"
	default:
		return "Device Status Changed"
	}
}

func ntfyTitle(t sqlcgen.TriggerType) string {
	switch t {
	case sqlcgen.TriggerDeviceConnected:
		return "Device Connected"
	case sqlcgen.TriggerDeviceDisconnected:
		return "Device Disconnected"
	case sqlcgen.TriggerNewDevice:
		return "New Device"
	default:
		return "Status Changed"
	}
}

func telegramText(ev Event) string {
	d := ev.Device
	return fmt.Sprintf(
		"🦊 <b>Fox Daemon Alert</b>\n\n<b>Event:</b> %s\n<b>Device:</b> %s\n<b>IP:</b> %s\n<b>MAC:</b> %s\n<b>Status:</b> %s\n<b>Time:</b> %s\n\n%s",
		telegramEventName(ev.EventType),
		orUnknown(d.Hostname),
		orUnknown(d.IPAddress),
		d.MACAddress,
		d.Status,
		ev.Timestamp.UTC().Format(telegramTimeLayout),
		ev.Message,
	)
}

func newTelegramRequest(ctx context.Context, apiBase string, c Telegram, ev Event) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{
		"chat_id":    c.ChatID,
		"text":       telegramText(ev),
		"parse_mode": "HTML",
	})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(apiBase, "/") + "/bot" + c.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func ntfyBody(d sqlcgen.Device) string {
	return fmt.Sprintf("%s\nMAC: %s\nIP: %s\nStatus: %s",
		orUnknown(d.Hostname), d.MACAddress, orUnknown(d.IPAddress), d.Status)
}

func newNtfyRequest(ctx context.Context, c Ntfy, ev Event) (*http.Request, error) {
	url := strings.TrimRight(c.ServerURL, "/") + "/" + c.Topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ntfyBody(ev.Device)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Title", ntfyTitle(ev.EventType))
	req.Header.Set("Priority", "default")
	req.Header.Set("Tags", "fox,network")
	if c.Token != nil && *c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+*c.Token)
	}
	return req, nil
}

type webhookDevice struct {
	MACAddress string    `json:"mac_address"`
	IPAddress  *string   `json:"ip_address"`
	Hostname   *string   `json:"hostname"`
	Status     string    `json:"status"`
	LastSeen   time.Time `json:"last_seen"`
}

type webhookPayload struct {
	Timestamp time.Time     `json:"timestamp"`
	EventType string        `json:"event_type"`
	Device    webhookDevice `json:"device"`
	Message   string        `json:"message"`
}

// webhookJSON is shared by the webhook and MQTT channels.
func webhookJSON(ev Event) ([]byte, error) {
	return json.Marshal(webhookPayload{
		Timestamp: ev.Timestamp.UTC(),
		EventType: string(ev.EventType),
		Device: webhookDevice{
			MACAddress: ev.Device.MACAddress,
			IPAddress:  ev.Device.IPAddress,
			Hostname:   ev.Device.Hostname,
			Status:     string(ev.Device.Status),
			LastSeen:   ev.Device.LastSeen.UTC(),
		},
		Message: ev.Message,
	})
}

func newWebhookRequest(ctx context.Context, c Webhook, ev Event) (*http.Request, error) {
	body, err := webhookJSON(ev)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.Headers {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}
	return req, nil
}
