package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock returns a clock stuck at ms.
func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func recv(t *testing.T, sub *Subscription) Batch {
	t.Helper()
	select {
	case b, ok := <-sub.Changes():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return Batch{}
	}
}

func expectQuiet(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case b, ok := <-sub.Changes():
		if ok {
			t.Fatalf("unexpected batch with %d changes", len(b.Changes))
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithClock(fixedClock(1000)))

	id, err := s.Create(ctx, "projects", Fields{"name": "Alpha", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(ctx, Join("projects", id))
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "projects/"+id, doc.Path)
	assert.Equal(t, "projects", doc.Collection())
	assert.Equal(t, "Alpha", doc.Fields["name"])
	assert.Equal(t, json.Number("1000"), doc.Fields["createdAt"])
	assert.Equal(t, Timestamp(1000), doc.CreateTime)

	var out struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		CreatedAt int64  `json:"createdAt"`
	}
	require.NoError(t, doc.DataTo(&out))
	assert.Equal(t, id, out.ID)
	assert.Equal(t, "Alpha", out.Name)
	assert.Equal(t, int64(1000), out.CreatedAt)
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithClock(fixedClock(500)))

	var last Timestamp
	for i := 0; i < 5; i++ {
		id, err := s.Create(ctx, "c", Fields{"at": ServerTimestamp})
		require.NoError(t, err)
		doc, err := s.Get(ctx, Join("c", id))
		require.NoError(t, err)
		assert.Greater(t, doc.CreateTime, last)
		last = doc.CreateTime
	}
	assert.Equal(t, Timestamp(504), last)
}

func TestUpdateMergesTopLevelFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Create(ctx, "tasks", Fields{"title": "A", "status": "todo"})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, Join("tasks", id), Fields{"status": "done", "assignedTo": nil}))

	doc, err := s.Get(ctx, Join("tasks", id))
	require.NoError(t, err)
	assert.Equal(t, "A", doc.Fields["title"])
	assert.Equal(t, "done", doc.Fields["status"])
	assert.Contains(t, doc.Fields, "assignedTo")
	assert.Nil(t, doc.Fields["assignedTo"])
	assert.Greater(t, doc.UpdateTime, doc.CreateTime)
}

func TestMissingDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "tasks/nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Update(ctx, "tasks/nope", Fields{"a": 1})
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Delete(ctx, "tasks/nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, "projects/p1", Fields{})
	assert.True(t, errors.Is(err, ErrInvalidPath))

	_, err = s.Create(ctx, "", Fields{})
	assert.True(t, errors.Is(err, ErrInvalidPath))

	err = s.Delete(ctx, "projects")
	assert.True(t, errors.Is(err, ErrInvalidPath))

	_, err = s.Subscribe(ctx, Query{Collection: "c", OrderBy: "x') --"})
	assert.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestDeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	taskID, err := s.Create(ctx, "tasks", Fields{"title": "A"})
	require.NoError(t, err)
	comments := Join("tasks", taskID, "comments")
	_, err = s.Create(ctx, comments, Fields{"text": "hi"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, Join("tasks", taskID)))

	left, err := s.List(ctx, comments)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestListIsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var want []string
	for _, name := range []string{"a", "b", "c"} {
		id, err := s.Create(ctx, "things", Fields{"name": name})
		require.NoError(t, err)
		want = append(want, id)
	}

	docs, err := s.List(ctx, "things")
	require.NoError(t, err)
	assert.Equal(t, want, ids(docs))
}

func TestSubscribeInitialBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sub, err := s.Subscribe(ctx, Query{Collection: "projects", OrderBy: "createdAt", Direction: Descending})
	require.NoError(t, err)
	defer sub.Close()

	b := recv(t, sub)
	assert.Empty(t, b.Changes)
	assert.Empty(t, b.Docs)

	first, err := s.Create(ctx, "projects", Fields{"createdAt": ServerTimestamp})
	require.NoError(t, err)
	b = recv(t, sub)
	require.Len(t, b.Changes, 1)
	assert.Equal(t, ChangeAdded, b.Changes[0].Kind)
	assert.Equal(t, 0, b.Changes[0].NewIndex)

	second, err := s.Create(ctx, "projects", Fields{"createdAt": ServerTimestamp})
	require.NoError(t, err)
	b = recv(t, sub)
	assert.Equal(t, []string{second, first}, ids(b.Docs))

	late, err := s.Subscribe(ctx, Query{Collection: "projects", OrderBy: "createdAt", Direction: Descending})
	require.NoError(t, err)
	defer late.Close()
	b = recv(t, late)
	assert.Equal(t, []string{second, first}, ids(b.Docs))
	for _, ch := range b.Changes {
		assert.Equal(t, ChangeAdded, ch.Kind)
	}
}

func TestSubscribeLimitTracksLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	coll := "tasks/t1/comments"

	sub, err := s.Subscribe(ctx, Query{Collection: coll, OrderBy: "createdAt", Direction: Descending, Limit: 1})
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub)

	a, err := s.Create(ctx, coll, Fields{"text": "one", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	b := recv(t, sub)
	assert.Equal(t, []string{a}, ids(b.Docs))

	c, err := s.Create(ctx, coll, Fields{"text": "two", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	b = recv(t, sub)
	assert.Equal(t, []string{c}, ids(b.Docs))
	require.Len(t, b.Changes, 2)
	assert.Equal(t, ChangeRemoved, b.Changes[0].Kind)
	assert.Equal(t, a, b.Changes[0].Doc.ID)
	assert.Equal(t, ChangeAdded, b.Changes[1].Kind)

	require.NoError(t, s.Delete(ctx, Join(coll, c)))
	b = recv(t, sub)
	assert.Equal(t, []string{a}, ids(b.Docs))
}

func TestSubscribeIgnoresOtherCollections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sub, err := s.Subscribe(ctx, Query{Collection: "a"})
	require.NoError(t, err)
	defer sub.Close()
	recv(t, sub)

	_, err = s.Create(ctx, "b", Fields{})
	require.NoError(t, err)
	expectQuiet(t, sub)
}

func TestSubscribersSeeSameSequence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	q := Query{Collection: "tasks", OrderBy: "title"}

	one, err := s.Subscribe(ctx, q)
	require.NoError(t, err)
	defer one.Close()
	two, err := s.Subscribe(ctx, q)
	require.NoError(t, err)
	defer two.Close()

	var localOne, localTwo []Document
	localOne = Apply(localOne, recv(t, one).Changes)
	localTwo = Apply(localTwo, recv(t, two).Changes)

	for _, title := range []string{"m", "a", "z"} {
		_, err := s.Create(ctx, "tasks", Fields{"title": title})
		require.NoError(t, err)
		b1, b2 := recv(t, one), recv(t, two)
		localOne = Apply(localOne, b1.Changes)
		localTwo = Apply(localTwo, b2.Changes)
		assert.Equal(t, b1.Docs, localOne)
		assert.Equal(t, localOne, localTwo)
	}
	assert.Equal(t, []string{"a", "m", "z"}, titles(localOne))
}

func titles(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d.Fields["title"].(string)
	}
	return out
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestStore(t)

	sub, err := s.Subscribe(ctx, Query{Collection: "c"})
	require.NoError(t, err)
	recv(t, sub)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription still open after cancel")
	}
	assert.NoError(t, sub.Err())

	require.Eventually(t, func() bool {
		return len(s.snapshotSubs()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCloseFailsLiveQueries(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)

	sub, err := s.Subscribe(context.Background(), Query{Collection: "c"})
	require.NoError(t, err)
	recv(t, sub)

	require.NoError(t, s.Close())

	_, ok := <-sub.Changes()
	assert.False(t, ok)
	assert.True(t, errors.Is(sub.Err(), ErrClosed))

	_, err = s.Create(context.Background(), "c", Fields{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestClockSurvivesReopen(t *testing.T) {
	dbPath := t.TempDir() + "/store.db"

	s, err := NewSQLiteStore(dbPath, WithClock(fixedClock(5000)))
	require.NoError(t, err)
	_, err = s.Create(context.Background(), "c", Fields{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A clock running behind must not hand out older timestamps.
	s, err = NewSQLiteStore(dbPath, WithClock(fixedClock(10)))
	require.NoError(t, err)
	defer s.Close()
	id, err := s.Create(context.Background(), "c", Fields{})
	require.NoError(t, err)
	doc, err := s.Get(context.Background(), Join("c", id))
	require.NoError(t, err)
	assert.Equal(t, Timestamp(5001), doc.CreateTime)
}
