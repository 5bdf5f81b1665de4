package sqlcgen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, name, description, trigger_type, mac_filter, enabled, notification_channels, created_at, updated_at`

// scanRule fails on an unknown trigger type or an undecodable channel list.
func scanRule(row pgx.Row) (Rule, error) {
	var (
		i        Rule
		trigger  string
		channels []byte
	)
	if err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&trigger,
		&i.MACFilter,
		&i.Enabled,
		&channels,
		&i.CreatedAt,
		&i.UpdatedAt,
	); err != nil {
		return Rule{}, err
	}

	tt, err := ParseTriggerType(trigger)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %d: %w", i.ID, err)
	}
	i.TriggerType = tt

	if err := json.Unmarshal(channels, &i.NotificationChannels); err != nil {
		return Rule{}, fmt.Errorf("rule %d: decode notification_channels: %w", i.ID, err)
	}
	return i, nil
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	defer rows.Close()
	var items []Rule
	for rows.Next() {
		i, err := scanRule(rows)
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

func encodeChannelNames(names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

const listRules = `-- name: ListRules :many
SELECT ` + ruleColumns + `
FROM rules
ORDER BY created_at DESC
`

func (q *Queries) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := q.db.Query(ctx, listRules)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

const listEnabledRules = `-- name: ListEnabledRules :many
SELECT ` + ruleColumns + `
FROM rules
WHERE enabled
ORDER BY created_at DESC
`

// ListEnabledRules aborts on the first malformed row rather than skipping it.
func (q *Queries) ListEnabledRules(ctx context.Context) ([]Rule, error) {
	rows, err := q.db.Query(ctx, listEnabledRules)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

const getRule = `-- name: GetRule :one
SELECT ` + ruleColumns + `
FROM rules
WHERE id = $1
`

func (q *Queries) GetRule(ctx context.Context, id int64) (Rule, error) {
	return scanRule(q.db.QueryRow(ctx, getRule, id))
}

const createRule = `-- name: CreateRule :one
INSERT INTO rules (name, description, trigger_type, mac_filter, enabled, notification_channels, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $7)
RETURNING ` + ruleColumns + `
`

type RuleParams struct {
	Name                 string
	Description          *string
	TriggerType          TriggerType
	MACFilter            *string
	Enabled              bool
	NotificationChannels []string
}

func (q *Queries) CreateRule(ctx context.Context, arg RuleParams) (Rule, error) {
	channels, err := encodeChannelNames(arg.NotificationChannels)
	if err != nil {
		return Rule{}, err
	}
	return scanRule(q.db.QueryRow(ctx, createRule,
		arg.Name,
		arg.Description,
		string(arg.TriggerType),
		arg.MACFilter,
		arg.Enabled,
		string(channels),
		time.Now().UTC(),
	))
}

const updateRule = `-- name: UpdateRule :one
UPDATE rules
SET name = $2,
    description = $3,
    trigger_type = $4,
    mac_filter = $5,
    enabled = $6,
    notification_channels = $7::jsonb,
    updated_at = $8
WHERE id = $1
RETURNING ` + ruleColumns + `
`

func (q *Queries) UpdateRule(ctx context.Context, id int64, arg RuleParams) (Rule, error) {
	channels, err := encodeChannelNames(arg.NotificationChannels)
	if err != nil {
		return Rule{}, err
	}
	return scanRule(q.db.QueryRow(ctx, updateRule,
		id,
		arg.Name,
		arg.Description,
		string(arg.TriggerType),
		arg.MACFilter,
		arg.Enabled,
		string(channels),
		time.Now().UTC(),
	))
}

const deleteRule = `-- name: DeleteRule :execrows
DELETE FROM rules WHERE id = $1
`

func (q *Queries) DeleteRule(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRule, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countRules = `-- name: CountRules :one
SELECT COUNT(*) FROM rules
`

func (q *Queries) CountRules(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countRules).Scan(&n)
	return n, err
}

const countEnabledRules = `-- name: CountEnabledRules :one
SELECT COUNT(*) FROM rules WHERE enabled
`

func (q *Queries) CountEnabledRules(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countEnabledRules).Scan(&n)
	return n, err
}
