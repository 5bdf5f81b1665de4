package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const deviceColumns = `id, mac_address, ip_address, hostname, nickname, vendor, first_seen, last_seen, status`

func scanDevice(row pgx.Row) (Device, error) {
	var (
		i      Device
		status string
	)
	err := row.Scan(
		&i.ID,
		&i.MACAddress,
		&i.IPAddress,
		&i.Hostname,
		&i.Nickname,
		&i.Vendor,
		&i.FirstSeen,
		&i.LastSeen,
		&status,
	)
	i.Status = ParseDeviceStatus(status)
	return i, err
}

func collectDevices(rows pgx.Rows) ([]Device, error) {
	defer rows.Close()
	var items []Device
	for rows.Next() {
		i, err := scanDevice(rows)
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

const getDeviceByMAC = `-- name: GetDeviceByMAC :one
SELECT ` + deviceColumns + `
FROM devices
WHERE lower(mac_address) = lower($1)
`

// GetDeviceByMAC returns pgx.ErrNoRows when the MAC has never been seen.
func (q *Queries) GetDeviceByMAC(ctx context.Context, mac string) (Device, error) {
	return scanDevice(q.db.QueryRow(ctx, getDeviceByMAC, mac))
}

const listDevices = `-- name: ListDevices :many
SELECT ` + deviceColumns + `
FROM devices
ORDER BY last_seen DESC
`

func (q *Queries) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := q.db.Query(ctx, listDevices)
	if err != nil {
		return nil, err
	}
	return collectDevices(rows)
}

const listDevicesByStatus = `-- name: ListDevicesByStatus :many
SELECT ` + deviceColumns + `
FROM devices
WHERE status = $1
ORDER BY last_seen DESC
`

func (q *Queries) ListDevicesByStatus(ctx context.Context, status DeviceStatus) ([]Device, error) {
	rows, err := q.db.Query(ctx, listDevicesByStatus, string(status))
	if err != nil {
		return nil, err
	}
	return collectDevices(rows)
}

const upsertDevice = `-- name: UpsertDevice :one
INSERT INTO devices (mac_address, ip_address, hostname, nickname, vendor, first_seen, last_seen, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (mac_address) DO UPDATE SET
  ip_address = COALESCE(EXCLUDED.ip_address, devices.ip_address),
  hostname   = COALESCE(EXCLUDED.hostname, devices.hostname),
  vendor     = COALESCE(EXCLUDED.vendor, devices.vendor),
  last_seen  = EXCLUDED.last_seen,
  status     = EXCLUDED.status
RETURNING id
`

// UpsertDeviceParams writes a device row. On conflict nil optional fields keep
// the stored value, first_seen and nickname are never overwritten.
type UpsertDeviceParams struct {
	MACAddress string
	IPAddress  *string
	Hostname   *string
	Nickname   *string
	Vendor     *string
	FirstSeen  time.Time
	LastSeen   time.Time
	Status     DeviceStatus
}

func (q *Queries) UpsertDevice(ctx context.Context, arg UpsertDeviceParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertDevice,
		arg.MACAddress,
		arg.IPAddress,
		arg.Hostname,
		arg.Nickname,
		arg.Vendor,
		arg.FirstSeen,
		arg.LastSeen,
		string(arg.Status),
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateDeviceStatus = `-- name: UpdateDeviceStatus :exec
UPDATE devices
SET status = $2
WHERE lower(mac_address) = lower($1)
`

type UpdateDeviceStatusParams struct {
	MACAddress string
	Status     DeviceStatus
}

func (q *Queries) UpdateDeviceStatus(ctx context.Context, arg UpdateDeviceStatusParams) error {
	_, err := q.db.Exec(ctx, updateDeviceStatus, arg.MACAddress, string(arg.Status))
	return err
}

const updateDeviceNickname = `-- name: UpdateDeviceNickname :one
UPDATE devices
SET nickname = $2
WHERE lower(mac_address) = lower($1)
RETURNING ` + deviceColumns + `
`

type UpdateDeviceNicknameParams struct {
	MACAddress string
	Nickname   *string
}

func (q *Queries) UpdateDeviceNickname(ctx context.Context, arg UpdateDeviceNicknameParams) (Device, error) {
	return scanDevice(q.db.QueryRow(ctx, updateDeviceNickname, arg.MACAddress, arg.Nickname))
}

const countDevices = `-- name: CountDevices :one
SELECT COUNT(*) FROM devices
`

func (q *Queries) CountDevices(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countDevices).Scan(&n)
	return n, err
}

const countDevicesByStatus = `-- name: CountDevicesByStatus :one
SELECT COUNT(*) FROM devices WHERE status = $1
`

func (q *Queries) CountDevicesByStatus(ctx context.Context, status DeviceStatus) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countDevicesByStatus, string(status)).Scan(&n)
	return n, err
}
