//go:build !pcap

package capture

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/P8labs/foxd/internal/netevent"
)

func TestSource_UnavailableWithoutPcap(t *testing.T) {
	src := NewSource(zerolog.Nop(), netevent.NewQueue(1, nil), Options{Interface: "wlan0"})
	assert.False(t, Available)
	assert.ErrorIs(t, src.Run(context.Background()), ErrCaptureUnavailable)
}
