package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const channelColumns = `id, name, channel_type, config, created_at, updated_at`

func scanChannel(row pgx.Row) (NotificationChannel, error) {
	var i NotificationChannel
	err := row.Scan(&i.ID, &i.Name, &i.ChannelType, &i.Config, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listNotificationChannels = `-- name: ListNotificationChannels :many
SELECT ` + channelColumns + `
FROM notification_channels
ORDER BY created_at
`

func (q *Queries) ListNotificationChannels(ctx context.Context) ([]NotificationChannel, error) {
	rows, err := q.db.Query(ctx, listNotificationChannels)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []NotificationChannel
	for rows.Next() {
		i, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getNotificationChannel = `-- name: GetNotificationChannel :one
SELECT ` + channelColumns + `
FROM notification_channels
WHERE id = $1
`

func (q *Queries) GetNotificationChannel(ctx context.Context, id int64) (NotificationChannel, error) {
	return scanChannel(q.db.QueryRow(ctx, getNotificationChannel, id))
}

const createNotificationChannel = `-- name: CreateNotificationChannel :one
INSERT INTO notification_channels (name, channel_type, config, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, $4)
RETURNING ` + channelColumns + `
`

type NotificationChannelParams struct {
	Name        string
	ChannelType string
	Config      []byte
}

func (q *Queries) CreateNotificationChannel(ctx context.Context, arg NotificationChannelParams) (NotificationChannel, error) {
	return scanChannel(q.db.QueryRow(ctx, createNotificationChannel,
		arg.Name,
		arg.ChannelType,
		string(arg.Config),
		time.Now().UTC(),
	))
}

const updateNotificationChannel = `-- name: UpdateNotificationChannel :one
UPDATE notification_channels
SET name = $2,
    channel_type = $3,
    config = $4::jsonb,
    updated_at = $5
WHERE id = $1
RETURNING ` + channelColumns + `
`

func (q *Queries) UpdateNotificationChannel(ctx context.Context, id int64, arg NotificationChannelParams) (NotificationChannel, error) {
	return scanChannel(q.db.QueryRow(ctx, updateNotificationChannel,
		id,
		arg.Name,
		arg.ChannelType,
		string(arg.Config),
		time.Now().UTC(),
	))
}

const deleteNotificationChannel = `-- name: DeleteNotificationChannel :execrows
DELETE FROM notification_channels WHERE id = $1
`

func (q *Queries) DeleteNotificationChannel(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteNotificationChannel, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
