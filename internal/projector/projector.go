// Package projector mirrors a live store query into a local ordered slice of
// decoded items.
package projector

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/taskboard/internal/docstore"
)

// Decoder converts a store document into an item.
type Decoder[T any] func(docstore.Document) (T, error)

// ItemChange is one applied change, with the decoded item.
type ItemChange[T any] struct {
	Kind docstore.ChangeKind
	ID   string
	Item T
}

// Update is passed to OnUpdate after each applied batch.
type Update[T any] struct {
	// Items is a copy of the local sequence after the batch.
	Items   []T
	Changes []ItemChange[T]
}

// Options carries the optional callbacks of a projection. Both are invoked
// from the projection goroutine, one call at a time and in store order.
type Options[T any] struct {
	OnUpdate func(Update[T])
	OnError  func(error)
}

// Projection is a live local copy of a query result.
type Projection[T any] struct {
	sub    *docstore.Subscription
	decode Decoder[T]
	opts   Options[T]

	mu    sync.RWMutex
	items []T
	err   error

	done chan struct{}
}

// Watch subscribes to q and starts applying its change batches. The
// projection stops when ctx is done, when Close is called, or when the
// subscription reports an error.
func Watch[T any](
	ctx context.Context,
	src docstore.Subscriber,
	q docstore.Query,
	decode Decoder[T],
	opts Options[T],
) (*Projection[T], error) {
	sub, err := src.Subscribe(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", q.String(), err)
	}

	p := &Projection[T]{
		sub:    sub,
		decode: decode,
		opts:   opts,
		done:   make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// Items returns a copy of the current local sequence.
func (p *Projection[T]) Items() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Err returns the error that stopped the projection, if any.
func (p *Projection[T]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Done is closed when the projection goroutine has exited.
func (p *Projection[T]) Done() <-chan struct{} {
	return p.done
}

// Close cancels the subscription and waits for the projection goroutine to
// exit, so no callback runs after Close returns. It is safe to call more
// than once but must not be called from OnUpdate or OnError.
func (p *Projection[T]) Close() {
	p.sub.Close()
	<-p.done
}

func (p *Projection[T]) run() {
	defer close(p.done)

	for b := range p.sub.Changes() {
		if err := p.apply(b); err != nil {
			p.sub.Close()
			p.fail(err)
			return
		}
	}

	if err := p.sub.Err(); err != nil {
		p.fail(err)
	}
}

func (p *Projection[T]) apply(b docstore.Batch) error {
	changes := make([]ItemChange[T], 0, len(b.Changes))

	p.mu.Lock()
	items := make([]T, len(p.items))
	copy(items, p.items)

	for _, ch := range b.Changes {
		ic := ItemChange[T]{Kind: ch.Kind, ID: ch.Doc.ID}
		switch ch.Kind {
		case docstore.ChangeRemoved:
			idx := ch.OldIndex
			if idx >= 0 && idx < len(items) {
				ic.Item = items[idx]
				items = append(items[:idx], items[idx+1:]...)
			}
		case docstore.ChangeAdded, docstore.ChangeModified:
			item, err := p.decode(ch.Doc)
			if err != nil {
				p.mu.Unlock()
				return fmt.Errorf("decoding %s: %w", ch.Doc.Path, err)
			}
			if ch.Kind == docstore.ChangeModified && ch.OldIndex >= 0 && ch.OldIndex < len(items) {
				items = append(items[:ch.OldIndex], items[ch.OldIndex+1:]...)
			}
			idx := min(max(ch.NewIndex, 0), len(items))
			items = append(items, item)
			copy(items[idx+1:], items[idx:])
			items[idx] = item
			ic.Item = item
		}
		changes = append(changes, ic)
	}

	p.items = items
	snapshot := make([]T, len(items))
	copy(snapshot, items)
	p.mu.Unlock()

	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(Update[T]{Items: snapshot, Changes: changes})
	}
	return nil
}

func (p *Projection[T]) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	if p.opts.OnError != nil {
		p.opts.OnError(err)
	}
}
