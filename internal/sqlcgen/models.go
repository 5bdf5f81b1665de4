package sqlcgen

import (
	"errors"
	"fmt"
	"time"
)

type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusUnknown DeviceStatus = "unknown"
)

// ParseDeviceStatus maps a stored status to its enum. Anything unrecognised is unknown.
func ParseDeviceStatus(s string) DeviceStatus {
	switch DeviceStatus(s) {
	case DeviceStatusOnline:
		return DeviceStatusOnline
	case DeviceStatusOffline:
		return DeviceStatusOffline
	default:
		return DeviceStatusUnknown
	}
}

type TriggerType string

const (
	TriggerNewDevice          TriggerType = "new_device"
	TriggerDeviceConnected    TriggerType = "device_connected"
	TriggerDeviceDisconnected TriggerType = "device_disconnected"
	TriggerDeviceStatusChange TriggerType = "device_status_change"
)

var ErrInvalidTriggerType = errors.New("invalid trigger type")

func ParseTriggerType(s string) (TriggerType, error) {
	switch TriggerType(s) {
	case TriggerNewDevice, TriggerDeviceConnected, TriggerDeviceDisconnected, TriggerDeviceStatusChange:
		return TriggerType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTriggerType, s)
	}
}

type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelDebug   LogLevel = "debug"
)

// ParseLogLevel falls back to info for unknown levels.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LogLevelWarning, LogLevelError, LogLevelDebug:
		return LogLevel(s)
	default:
		return LogLevelInfo
	}
}

type Device struct {
	ID         int64
	MACAddress string
	IPAddress  *string
	Hostname   *string
	Nickname   *string
	Vendor     *string
	FirstSeen  time.Time
	LastSeen   time.Time
	Status     DeviceStatus
}

type Rule struct {
	ID                   int64
	Name                 string
	Description          *string
	TriggerType          TriggerType
	MACFilter            *string
	Enabled              bool
	NotificationChannels []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Level     LogLevel
	Category  string
	Message   string
	Details   *string
}

// NotificationChannel is the stored form of a channel. Config holds the
// type-tagged JSON document; decoding lives in the notify package.
type NotificationChannel struct {
	ID          int64
	Name        string
	ChannelType string
	Config      []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
