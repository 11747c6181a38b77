package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/docstore"
)

// NewTestStore creates an in-memory document store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...docstore.Option) *docstore.SQLiteStore {
	t.Helper()

	s, err := docstore.NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Clock is a settable clock for store timestamps.
type Clock struct {
	ms atomic.Int64
}

// NewClock returns a clock reading ms milliseconds since the epoch.
func NewClock(ms int64) *Clock {
	c := &Clock{}
	c.ms.Store(ms)
	return c
}

// Set moves the clock to ms.
func (c *Clock) Set(ms int64) {
	c.ms.Store(ms)
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	return time.UnixMilli(c.ms.Load())
}

// Option returns the store option that installs the clock.
func (c *Clock) Option() docstore.Option {
	return docstore.WithClock(c.Now)
}
