package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownChannelType = errors.New("unknown notification channel type")

// Channel is a configured delivery target. The variant set is closed: adding a
// type means updating Name, Type, DecodeChannel, EncodeChannel and deliver.
type Channel interface {
	// Name is the lookup key rules use to reference the channel.
	Name() string
	// Type is the JSON "type" tag.
	Type() string
	isChannel()
}

type Telegram struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type Ntfy struct {
	ServerURL string  `json:"server_url"`
	Topic     string  `json:"topic"`
	Token     *string `json:"token"`
}

// Webhook headers are kept as raw JSON values; only string values become
// request headers.
type Webhook struct {
	URL     string         `json:"url"`
	Headers map[string]any `json:"headers"`
}

type MQTT struct {
	BrokerURL string  `json:"broker_url"`
	Topic     string  `json:"topic"`
	Username  *string `json:"username,omitempty"`
	Password  *string `json:"password,omitempty"`
}

func (c Telegram) Name() string { return "telegram_" + c.ChatID }
func (c Ntfy) Name() string     { return "ntfy_" + c.Topic }
func (c MQTT) Name() string     { return "mqtt_" + c.Topic }

func (c Webhook) Name() string {
	parts := strings.Split(c.URL, "/")
	return "webhook_" + parts[len(parts)-1]
}

func (Telegram) Type() string { return "telegram" }
func (Ntfy) Type() string     { return "ntfy" }
func (Webhook) Type() string  { return "webhook" }
func (MQTT) Type() string     { return "mqtt" }

func (Telegram) isChannel() {}
func (Ntfy) isChannel()     {}
func (Webhook) isChannel()  {}
func (MQTT) isChannel()     {}

// DecodeChannel parses the type-tagged JSON form, e.g.
// {"type":"ntfy","server_url":"https://ntfy.sh","topic":"lan"}.
func DecodeChannel(raw []byte) (Channel, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("decode channel: %w", err)
	}

	switch tag.Type {
	case "telegram":
		var c Telegram
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode telegram channel: %w", err)
		}
		return c, nil
	case "ntfy":
		var c Ntfy
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode ntfy channel: %w", err)
		}
		return c, nil
	case "webhook":
		var c Webhook
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode webhook channel: %w", err)
		}
		return c, nil
	case "mqtt":
		var c MQTT
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode mqtt channel: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannelType, tag.Type)
	}
}

// EncodeChannel produces the type-tagged JSON form accepted by DecodeChannel.
func EncodeChannel(c Channel) ([]byte, error) {
	var body any
	switch v := c.(type) {
	case Telegram:
		body = struct {
			Type string `json:"type"`
			Telegram
		}{v.Type(), v}
	case Ntfy:
		body = struct {
			Type string `json:"type"`
			Ntfy
		}{v.Type(), v}
	case Webhook:
		body = struct {
			Type string `json:"type"`
			Webhook
		}{v.Type(), v}
	case MQTT:
		body = struct {
			Type string `json:"type"`
			MQTT
		}{v.Type(), v}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownChannelType, c)
	}
	return json.Marshal(body)
}

// Validate checks the fields a delivery needs.
func Validate(c Channel) error {
	switch v := c.(type) {
	case Telegram:
		if strings.TrimSpace(v.BotToken) == "" || strings.TrimSpace(v.ChatID) == "" {
			return errors.New("telegram channel requires bot_token and chat_id")
		}
	case Ntfy:
		if strings.TrimSpace(v.ServerURL) == "" || strings.TrimSpace(v.Topic) == "" {
			return errors.New("ntfy channel requires server_url and topic")
		}
	case Webhook:
		if strings.TrimSpace(v.URL) == "" {
			return errors.New("webhook channel requires url")
		}
	case MQTT:
		if strings.TrimSpace(v.BrokerURL) == "" || strings.TrimSpace(v.Topic) == "" {
			return errors.New("mqtt channel requires broker_url and topic")
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownChannelType, c)
	}
	return nil
}
