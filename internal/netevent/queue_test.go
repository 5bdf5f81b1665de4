package netevent

import (
	"context"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P8labs/foxd/internal/metrics"
)

func reply(mac string) Event {
	return ARPReply{SourceMAC: mac, SourceIP: netip.MustParseAddr("192.168.1.10")}
}

func TestQueue_TrySendRejectsWhenFull(t *testing.T) {
	m := metrics.New()
	q := NewQueue(2, m)

	require.True(t, q.TrySend(reply("aa:aa:aa:aa:aa:01")))
	require.True(t, q.TrySend(reply("aa:aa:aa:aa:aa:02")))

	done := make(chan bool, 1)
	go func() { done <- q.TrySend(reply("aa:aa:aa:aa:aa:03")) }()

	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("TrySend blocked on a full queue")
	}
	assert.Equal(t, uint64(1), m.EventsDropped())
	assert.Equal(t, 2, q.Len())
}

func TestQueue_PreservesReceiptOrder(t *testing.T) {
	q := NewQueue(4, nil)
	for _, mac := range []string{"01", "02", "03"} {
		require.True(t, q.TrySend(reply(mac)))
	}
	for _, want := range []string{"01", "02", "03"} {
		got := <-q.Events()
		assert.Equal(t, want, got.MAC())
	}
}

func TestQueue_SendHonoursContext(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Send(context.Background(), reply("01")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Send(ctx, reply("02"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewQueue(0, nil).Cap())
}

// Producers outpace a slow consumer; TrySend never blocks and the consumer
// keeps draining until the producers stop.
func TestQueue_OverloadStaysLive(t *testing.T) {
	m := metrics.New()
	q := NewQueue(8, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumed int
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.Events():
				consumed++
				time.Sleep(time.Millisecond)
			}
		}
	}()

	const producers, perProducer = 4, 500
	var accepted, rejected sync.Map
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			ok, dropped := 0, 0
			for i := 0; i < perProducer; i++ {
				if q.TrySend(reply("aa:bb:cc:dd:ee:ff")) {
					ok++
				} else {
					dropped++
				}
			}
			accepted.Store(p, ok)
			rejected.Store(p, dropped)
		}(p)
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("producers blocked under overload")
	}

	var totalRejected int
	rejected.Range(func(_, v any) bool { totalRejected += v.(int); return true })
	assert.Greater(t, totalRejected, 0)
	assert.Equal(t, uint64(totalRejected), m.EventsDropped())

	cancel()
	<-consumerDone
	assert.Greater(t, consumed, 0)
}
