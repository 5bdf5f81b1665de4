package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const createLog = `-- name: CreateLog :one
INSERT INTO logs (timestamp, level, category, message, details)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`

type CreateLogParams struct {
	Timestamp time.Time
	Level     LogLevel
	Category  string
	Message   string
	Details   *string
}

func (q *Queries) CreateLog(ctx context.Context, arg CreateLogParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createLog,
		arg.Timestamp,
		string(arg.Level),
		arg.Category,
		arg.Message,
		arg.Details,
	).Scan(&id)
	return id, err
}

const listLogs = `-- name: ListLogs :many
SELECT id, timestamp, level, category, message, details
FROM logs
WHERE ($2::text IS NULL OR level = $2)
ORDER BY timestamp DESC
LIMIT $1
`

type ListLogsParams struct {
	Limit int64
	Level *LogLevel
}

func (q *Queries) ListLogs(ctx context.Context, arg ListLogsParams) ([]LogEntry, error) {
	var level *string
	if arg.Level != nil {
		s := string(*arg.Level)
		level = &s
	}
	limit := arg.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.db.Query(ctx, listLogs, limit, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LogEntry
	for rows.Next() {
		i, err := scanLog(rows)
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

func scanLog(row pgx.Row) (LogEntry, error) {
	var (
		i     LogEntry
		level string
	)
	err := row.Scan(&i.ID, &i.Timestamp, &level, &i.Category, &i.Message, &i.Details)
	i.Level = ParseLogLevel(level)
	return i, err
}

const deleteLogsOlderThan = `-- name: DeleteLogsOlderThan :execrows
DELETE FROM logs WHERE timestamp < $1
`

func (q *Queries) DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteLogsOlderThan, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
