package docstore

import (
	"sync"
)

// ChangeKind identifies the kind of a document change in a batch.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// Change is one incremental edit to a query result.
//
// Changes in a batch are applied in order. OldIndex is the position of the
// document before the change (-1 for additions) and NewIndex its position
// after the change (-1 for removals).
type Change struct {
	Kind     ChangeKind
	Doc      Document
	OldIndex int
	NewIndex int
}

// Batch is one delivery on a live query.
type Batch struct {
	Changes []Change
	// Docs is the ordered query result after applying Changes.
	Docs []Document
}

// Subscription is a live query handle. Batches are delivered in the order
// they were published on the channel returned by Changes, which is closed
// once the subscription ends.
//
// Store implementations (and test fakes) feed a subscription with Publish and
// end it with Fail; consumers end it with Close.
type Subscription struct {
	query Query

	mu      sync.Mutex
	pending []Batch
	err     error
	failed  bool

	wake       chan struct{}
	done       chan struct{}
	out        chan Batch
	closeOnce  sync.Once
	unregister sync.Once
	onClose    func()
}

// NewSubscription creates a subscription for q and starts its delivery
// goroutine. onClose, if non-nil, runs once when the subscription ends.
func NewSubscription(q Query, onClose func()) *Subscription {
	s := &Subscription{
		query:   q,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		out:     make(chan Batch),
		onClose: onClose,
	}
	go s.pump()
	return s
}

// Query returns the query the subscription was opened with.
func (s *Subscription) Query() Query {
	return s.query
}

// Changes returns the delivery channel.
func (s *Subscription) Changes() <-chan Batch {
	return s.out
}

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the subscription has been closed or has failed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close cancels the subscription. It is safe to call more than once.
// Batches still queued are discarded.
func (s *Subscription) Close() {
	s.finish()
}

func (s *Subscription) finish() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.release()
}

func (s *Subscription) release() {
	s.unregister.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Publish queues a batch for delivery. It never blocks and reports false if
// the subscription has already ended.
func (s *Subscription) Publish(b Batch) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return false
	}
	s.pending = append(s.pending, b)
	s.mu.Unlock()

	s.signal()
	return true
}

// Fail ends the subscription with err after the already queued batches have
// been delivered. Later calls are ignored.
func (s *Subscription) Fail(err error) {
	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.err = err
	s.mu.Unlock()

	// Unregister right away; the consumer still drains the queue.
	s.release()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next pops the next queued batch. ok is false when the queue is empty;
// finished reports whether the subscription failed and nothing is left.
func (s *Subscription) next() (b Batch, ok bool, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return Batch{}, false, s.failed
	}
	b = s.pending[0]
	s.pending[0] = Batch{}
	s.pending = s.pending[1:]
	return b, true, false
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			b, ok, finished := s.next()
			if finished {
				s.finish()
				return
			}
			if !ok {
				break
			}
			select {
			case s.out <- b:
			case <-s.done:
				return
			}
		}
	}
}
