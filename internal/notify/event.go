package notify

import (
	"fmt"
	"time"

	"github.com/P8labs/foxd/internal/sqlcgen"
)

// Event is what a matched rule hands to the dispatcher.
type Event struct {
	Timestamp time.Time
	EventType sqlcgen.TriggerType
	Device    sqlcgen.Device
	Message   string
}

func NewEvent(ruleName string, trigger sqlcgen.TriggerType, device sqlcgen.Device, now time.Time) Event {
	return Event{
		Timestamp: now,
		EventType: trigger,
		Device:    device,
		Message:   fmt.Sprintf("Rule '%s' triggered for device %s", ruleName, device.MACAddress),
	}
}

func orUnknown(s *string) string {
	if s == nil || *s == "" {
		return "Unknown"
	}
	return *s
}
