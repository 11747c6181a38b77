// Package feed carries updates produced on background goroutines (live
// query callbacks, notification sinks) into the Bubble Tea runtime.
//
// Keyed messages coalesce: when a message is published under a key that is
// still pending, it replaces the pending one in place. Live views publish
// full snapshots, so only the latest matters. Notifications are never
// coalesced.
package feed

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/model"
)

// NotificationMsg is delivered for every notification passed to Notify.
type NotificationMsg struct {
	Notification model.Notification
}

type entry struct {
	key string
	msg tea.Msg
}

// Feed is an ordered queue of pending messages.
type Feed struct {
	limit int

	mu      sync.Mutex
	pending []entry
	closed  bool
	dropped int
	ready   chan struct{}
}

// New creates a feed holding at most limit unkeyed messages. Keyed
// messages never count against the limit.
func New(limit int) *Feed {
	if limit < 1 {
		limit = 1
	}
	return &Feed{limit: limit, ready: make(chan struct{}, 1)}
}

// Publish queues msg under key, replacing a pending message with the same
// key. An empty key never coalesces.
func (f *Feed) Publish(key string, msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	if key != "" {
		for i := range f.pending {
			if f.pending[i].key == key {
				f.pending[i].msg = msg
				return
			}
		}
	} else if f.unkeyed() >= f.limit {
		f.dropped++
		return
	}
	f.pending = append(f.pending, entry{key: key, msg: msg})
	f.signal()
}

// Notify implements notify.Sink.
func (f *Feed) Notify(n model.Notification) {
	f.Publish("", NotificationMsg{Notification: n})
}

// Dropped returns how many unkeyed messages were discarded.
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close ends the feed. Pending messages are discarded and Wait returns nil.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.pending = nil
	close(f.ready)
}

// Wait returns a tea.Cmd that blocks until the next message is available.
// Call it again after handling each message to keep listening.
func (f *Feed) Wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if msg, ok := f.next(); ok {
				return msg
			}
			if _, open := <-f.ready; !open {
				return nil
			}
		}
	}
}

func (f *Feed) next() (tea.Msg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || len(f.pending) == 0 {
		return nil, false
	}
	e := f.pending[0]
	f.pending[0] = entry{}
	f.pending = f.pending[1:]
	if len(f.pending) > 0 {
		f.signal()
	}
	return e.msg, true
}

func (f *Feed) unkeyed() int {
	n := 0
	for _, e := range f.pending {
		if e.key == "" {
			n++
		}
	}
	return n
}

// signal wakes a waiter. Callers hold f.mu.
func (f *Feed) signal() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}
