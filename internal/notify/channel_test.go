package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	cases := []struct {
		ch   Channel
		want string
	}{
		{Telegram{BotToken: "x", ChatID: "-100"}, "telegram_-100"},
		{Ntfy{ServerURL: "https://ntfy.sh", Topic: "home"}, "ntfy_home"},
		{Webhook{URL: "https://hooks.example.com/services/abc"}, "webhook_abc"},
		{Webhook{URL: "https://hooks.example.com/"}, "webhook_"},
		{MQTT{BrokerURL: "tcp://b:1883", Topic: "fox"}, "mqtt_fox"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.ch.Name())
	}
}

func TestDecodeChannel_TypeTagged(t *testing.T) {
	c, err := DecodeChannel([]byte(`{"type":"ntfy","server_url":"https://ntfy.sh","topic":"lan","token":null}`))
	require.NoError(t, err)
	n, ok := c.(Ntfy)
	require.True(t, ok)
	assert.Equal(t, "lan", n.Topic)
	assert.Nil(t, n.Token)

	c, err = DecodeChannel([]byte(`{"type":"webhook","url":"http://h/x","headers":{"A":"b","N":1}}`))
	require.NoError(t, err)
	w := c.(Webhook)
	assert.Equal(t, "b", w.Headers["A"])
}

func TestDecodeChannel_UnknownType(t *testing.T) {
	_, err := DecodeChannel([]byte(`{"type":"pager"}`))
	assert.ErrorIs(t, err, ErrUnknownChannelType)
}

func TestEncodeChannel_RoundTripsThroughDecode(t *testing.T) {
	raw, err := EncodeChannel(Telegram{BotToken: "t", ChatID: "9"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"telegram","bot_token":"t","chat_id":"9"}`, string(raw))

	c, err := DecodeChannel(raw)
	require.NoError(t, err)
	assert.Equal(t, Telegram{BotToken: "t", ChatID: "9"}, c)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Ntfy{ServerURL: "http://x", Topic: "t"}))
	assert.Error(t, Validate(Ntfy{ServerURL: "http://x"}))
	assert.Error(t, Validate(Telegram{ChatID: "1"}))
	assert.Error(t, Validate(Webhook{}))
	assert.Error(t, Validate(MQTT{Topic: "t"}))
}
