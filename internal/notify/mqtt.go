package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends one payload to an MQTT broker.
type Publisher interface {
	Publish(ctx context.Context, c MQTT, payload []byte) error
}

// PahoPublisher opens a short-lived connection per publish.
type PahoPublisher struct {
	ConnectTimeout time.Duration
}

func (p PahoPublisher) Publish(ctx context.Context, c MQTT, payload []byte) error {
	timeout := p.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.BrokerURL)
	opts.SetClientID("foxd-" + strconv.FormatInt(time.Now().UnixNano(), 36))
	opts.SetConnectTimeout(timeout)
	opts.SetAutoReconnect(false)
	if c.Username != nil {
		opts.SetUsername(*c.Username)
	}
	if c.Password != nil {
		opts.SetPassword(*c.Password)
	}

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer client.Disconnect(250)

	if err := waitToken(ctx, client.Publish(c.Topic, 1, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func waitToken(ctx context.Context, t mqtt.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
