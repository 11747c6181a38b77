package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/tests/testutil"
)

var paths = model.Paths{AppID: "test"}

// fakeStore records deletes and fails the ones listed in failures.
type fakeStore struct {
	mu       sync.Mutex
	docs     map[string][]docstore.Document
	deleted  []string
	failures map[string]error
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     make(map[string][]docstore.Document),
		failures: make(map[string]error),
	}
}

func (f *fakeStore) add(collection string, n int) []string {
	var ids []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", collection[strings.LastIndex(collection, "/")+1:], i)
		f.docs[collection] = append(f.docs[collection], docstore.Document{
			ID:   id,
			Path: docstore.Join(collection, id),
		})
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeStore) List(_ context.Context, collection string) ([]docstore.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]docstore.Document(nil), f.docs[collection]...), nil
}

func (f *fakeStore) Delete(_ context.Context, docPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[docPath]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, docPath)
	return nil
}

func (f *fakeStore) deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func TestDeleteTaskRemovesCommentsFirst(t *testing.T) {
	store := newFakeStore()
	store.add(paths.Comments("p1", "t1"), 5)
	d := New(store, paths, 2, nil)

	require.NoError(t, d.DeleteTask(context.Background(), "p1", "t1"))

	deleted := store.deletes()
	require.Len(t, deleted, 6)
	assert.Equal(t, paths.Task("p1", "t1"), deleted[5])
	for _, p := range deleted[:5] {
		assert.True(t, strings.HasPrefix(p, paths.Comments("p1", "t1")+"/"))
	}
}

func TestDeleteTaskWithoutComments(t *testing.T) {
	store := newFakeStore()
	d := New(store, paths, 1, nil)

	require.NoError(t, d.DeleteTask(context.Background(), "p1", "t1"))
	assert.Equal(t, []string{paths.Task("p1", "t1")}, store.deletes())
}

func TestDeleteTaskStopsOnCommentFailure(t *testing.T) {
	store := newFakeStore()
	ids := store.add(paths.Comments("p1", "t1"), 4)
	boom := errors.New("permission denied")
	store.failures[paths.Comment("p1", "t1", ids[2])] = boom
	d := New(store, paths, 1, nil)

	err := d.DeleteTask(context.Background(), "p1", "t1")
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, store.deletes(), paths.Task("p1", "t1"))
}

func TestDeleteTaskListFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("unavailable")
	d := New(store, paths, 1, nil)

	err := d.DeleteTask(context.Background(), "p1", "t1")
	require.ErrorIs(t, err, store.listErr)
	assert.Empty(t, store.deletes())
}

func TestDeleteProjectCascades(t *testing.T) {
	store := newFakeStore()
	tasks := store.add(paths.Tasks("p1"), 3)
	for _, id := range tasks {
		store.add(paths.Comments("p1", id), 2)
	}
	d := New(store, paths, 2, nil)

	require.NoError(t, d.DeleteProject(context.Background(), "p1"))

	deleted := store.deletes()
	require.Len(t, deleted, 3*3+1)
	assert.Equal(t, paths.Project("p1"), deleted[len(deleted)-1])

	pos := make(map[string]int, len(deleted))
	for i, p := range deleted {
		pos[p] = i
	}
	for _, id := range tasks {
		for _, c := range store.docs[paths.Comments("p1", id)] {
			assert.Less(t, pos[c.Path], pos[paths.Task("p1", id)])
		}
	}
}

func TestDeleteProjectKeepsProjectOnFailure(t *testing.T) {
	store := newFakeStore()
	tasks := store.add(paths.Tasks("p1"), 3)
	boom := errors.New("write rejected")
	store.failures[paths.Task("p1", tasks[1])] = boom
	d := New(store, paths, 1, nil)

	err := d.DeleteProject(context.Background(), "p1")
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, store.deletes(), paths.Project("p1"))
}

func TestDeleteAgainstStore(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewTestStore(t)

	taskID, err := store.Create(ctx, paths.Tasks("p1"), docstore.Fields{"title": "T"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, paths.Comments("p1", taskID), docstore.Fields{"text": "c"})
		require.NoError(t, err)
	}
	d := New(store, paths, 2, nil)

	require.NoError(t, d.DeleteTask(ctx, "p1", taskID))

	left, err := store.List(ctx, paths.Comments("p1", taskID))
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = store.Get(ctx, paths.Task("p1", taskID))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
