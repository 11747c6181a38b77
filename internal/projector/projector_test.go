package projector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/docstore"
)

type note struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func decodeNote(d docstore.Document) (note, error) {
	var n note
	err := d.DataTo(&n)
	return n, err
}

func titles(items []note) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.Title
	}
	return out
}

// fakeSubscriber hands out subscriptions that tests feed by hand.
type fakeSubscriber struct {
	mu   sync.Mutex
	subs []*docstore.Subscription
	err  error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, q docstore.Query) (*docstore.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub := docstore.NewSubscription(q, nil)
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeSubscriber) last() *docstore.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

func newStore(t *testing.T) *docstore.SQLiteStore {
	t.Helper()
	s, err := docstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectionMirrorsQuery(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	q := docstore.Query{Collection: "notes", OrderBy: "title"}

	updates := make(chan Update[note], 16)
	p, err := Watch(ctx, store, q, decodeNote, Options[note]{
		OnUpdate: func(u Update[note]) { updates <- u },
	})
	require.NoError(t, err)
	defer p.Close()

	next := func() Update[note] {
		select {
		case u := <-updates:
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("no update")
			return Update[note]{}
		}
	}

	first := next()
	assert.Empty(t, first.Items)

	for _, title := range []string{"m", "c", "x"} {
		_, err := store.Create(ctx, "notes", docstore.Fields{"title": title})
		require.NoError(t, err)
		next()
	}
	assert.Equal(t, []string{"c", "m", "x"}, titles(p.Items()))

	id := p.Items()[0].ID
	require.NoError(t, store.Update(ctx, docstore.Join("notes", id), docstore.Fields{"title": "z"}))
	u := next()
	assert.Equal(t, []string{"m", "x", "z"}, titles(u.Items))
	require.Len(t, u.Changes, 1)
	assert.Equal(t, docstore.ChangeModified, u.Changes[0].Kind)
	assert.Equal(t, id, u.Changes[0].ID)

	require.NoError(t, store.Delete(ctx, docstore.Join("notes", id)))
	u = next()
	assert.Equal(t, []string{"m", "x"}, titles(u.Items))
	assert.Equal(t, docstore.ChangeRemoved, u.Changes[0].Kind)
	assert.Equal(t, "z", u.Changes[0].Item.Title)
}

func TestProjectionsOfSameQueryAgree(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	q := docstore.Query{Collection: "notes", OrderBy: "title", Direction: docstore.Descending}

	a, err := Watch(ctx, store, q, decodeNote, Options[note]{})
	require.NoError(t, err)
	defer a.Close()

	for _, title := range []string{"b", "a", "c"} {
		_, err := store.Create(ctx, "notes", docstore.Fields{"title": title})
		require.NoError(t, err)
	}

	b, err := Watch(ctx, store, q, decodeNote, Options[note]{})
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool {
		return len(a.Items()) == 3 && len(b.Items()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, a.Items(), b.Items())
	assert.Equal(t, []string{"c", "b", "a"}, titles(a.Items()))
}

func TestProjectionStopsOnSubscriptionError(t *testing.T) {
	src := &fakeSubscriber{}
	errs := make(chan error, 1)
	p, err := Watch(context.Background(), src, docstore.Query{Collection: "notes"}, decodeNote, Options[note]{
		OnError: func(err error) { errs <- err },
	})
	require.NoError(t, err)

	denied := errors.New("permission denied")
	src.last().Fail(denied)

	select {
	case got := <-errs:
		assert.Equal(t, denied, got)
	case <-time.After(2 * time.Second):
		t.Fatal("error not surfaced")
	}
	<-p.Done()
	assert.Equal(t, denied, p.Err())
	p.Close()
}

func TestProjectionStopsOnDecodeError(t *testing.T) {
	src := &fakeSubscriber{}
	bad := errors.New("bad document")
	p, err := Watch(context.Background(), src, docstore.Query{Collection: "notes"},
		func(docstore.Document) (note, error) { return note{}, bad },
		Options[note]{})
	require.NoError(t, err)

	d := docstore.Document{ID: "n1", Path: "notes/n1"}
	src.last().Publish(docstore.Batch{
		Changes: []docstore.Change{{Kind: docstore.ChangeAdded, Doc: d, OldIndex: -1, NewIndex: 0}},
		Docs:    []docstore.Document{d},
	})

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("projection still running")
	}
	assert.ErrorIs(t, p.Err(), bad)
	assert.Empty(t, p.Items())

	select {
	case <-src.last().Done():
	default:
		t.Fatal("subscription left open")
	}
}

func TestWatchReportsSubscribeError(t *testing.T) {
	src := &fakeSubscriber{err: docstore.ErrClosed}
	_, err := Watch(context.Background(), src, docstore.Query{Collection: "notes"}, decodeNote, Options[note]{})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}

func TestCloseStopsCallbacks(t *testing.T) {
	src := &fakeSubscriber{}
	var mu sync.Mutex
	calls := 0
	p, err := Watch(context.Background(), src, docstore.Query{Collection: "notes"}, decodeNote, Options[note]{
		OnUpdate: func(Update[note]) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	sub := src.last()
	p.Close()
	p.Close()

	assert.False(t, sub.Publish(docstore.Batch{}))
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
	assert.NoError(t, p.Err())
}
