package netevent

import (
	"context"

	"github.com/P8labs/foxd/internal/metrics"
)

const DefaultCapacity = 100

// Queue is a bounded multi-producer, single-consumer channel of events.
//
// High-rate producers use TrySend and drop under load; low-rate producers use
// Send and wait for room. Only receipt order is preserved.
type Queue struct {
	ch      chan Event
	metrics *metrics.Metrics
}

func NewQueue(capacity int, m *metrics.Metrics) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan Event, capacity), metrics: m}
}

// TrySend enqueues without blocking. It reports false when the queue is full;
// the event is dropped and counted.
func (q *Queue) TrySend(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		q.metrics.IncEventsDropped()
		return false
	}
}

// Send blocks until the event is enqueued or ctx is done.
func (q *Queue) Send(ctx context.Context, ev Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the receive side for the single consumer.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }
