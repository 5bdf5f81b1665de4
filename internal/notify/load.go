package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

type ChannelLister interface {
	ListNotificationChannels(ctx context.Context) ([]sqlcgen.NotificationChannel, error)
}

// FromRow decodes a stored channel. The row's channel_type fills in the type
// tag when the config object does not carry one.
func FromRow(row sqlcgen.NotificationChannel) (Channel, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row.Config, &fields); err != nil {
		return nil, fmt.Errorf("channel %d config: %w", row.ID, err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	if _, ok := fields["type"]; !ok {
		tag, _ := json.Marshal(row.ChannelType)
		fields["type"] = tag
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	c, err := DecodeChannel(raw)
	if err != nil {
		return nil, fmt.Errorf("channel %d (%s): %w", row.ID, row.Name, err)
	}
	return c, nil
}

// Reload replaces the channel table with every decodable stored channel.
// Rows that fail to decode are skipped and logged.
func (d *Dispatcher) Reload(ctx context.Context, store ChannelLister) (int, error) {
	rows, err := store.ListNotificationChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notification channels: %w", err)
	}

	channels := make([]Channel, 0, len(rows))
	for _, row := range rows {
		c, err := FromRow(row)
		if err != nil {
			d.log.Warn().Err(err).Int64("channel_id", row.ID).Msg("skipping notification channel")
			continue
		}
		channels = append(channels, c)
	}
	d.Replace(channels)
	return len(channels), nil
}
