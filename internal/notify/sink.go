package notify

import (
	"sync/atomic"

	"github.com/nhle/taskboard/internal/model"
)

// Queue is a bounded Sink. Notifications that do not fit are dropped.
type Queue struct {
	ch      chan model.Notification
	dropped atomic.Int64
}

// NewQueue creates a queue holding up to size notifications.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan model.Notification, size)}
}

// Notify enqueues n without blocking.
func (q *Queue) Notify(n model.Notification) {
	select {
	case q.ch <- n:
	default:
		q.dropped.Add(1)
	}
}

// C returns the receive side of the queue.
func (q *Queue) C() <-chan model.Notification {
	return q.ch
}

// Dropped returns how many notifications were discarded.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Fanout delivers every notification to each of its sinks in turn.
type Fanout []Sink

// Notify forwards n to all sinks.
func (f Fanout) Notify(n model.Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(n)
		}
	}
}
