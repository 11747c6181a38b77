package board

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/identity"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/projector"
	"github.com/nhle/taskboard/tests/testutil"
)

var (
	paths = model.Paths{AppID: "test"}
	ana   = identity.Identity{ID: "ana", DisplayName: "Ana"}
	guest = identity.Identity{ID: "guest", Anonymous: true}
)

func newService(t *testing.T, opts ...docstore.Option) (*Service, *docstore.SQLiteStore) {
	t.Helper()
	store := testutil.NewTestStore(t, opts...)
	return New(store, paths, 2, nil), store
}

// countingStore fails every call and counts them.
type countingStore struct {
	calls atomic.Int32
}

var errUnavailable = errors.New("store unavailable")

func (c *countingStore) Subscribe(context.Context, docstore.Query) (*docstore.Subscription, error) {
	c.calls.Add(1)
	return nil, errUnavailable
}

func (c *countingStore) Get(context.Context, string) (docstore.Document, error) {
	c.calls.Add(1)
	return docstore.Document{}, errUnavailable
}

func (c *countingStore) List(context.Context, string) ([]docstore.Document, error) {
	c.calls.Add(1)
	return nil, errUnavailable
}

func (c *countingStore) Create(context.Context, string, docstore.Fields) (string, error) {
	c.calls.Add(1)
	return "", errUnavailable
}

func (c *countingStore) Update(context.Context, string, docstore.Fields) error {
	c.calls.Add(1)
	return errUnavailable
}

func (c *countingStore) Delete(context.Context, string) error {
	c.calls.Add(1)
	return errUnavailable
}

func TestValidationRejectsBeforeStoreCalls(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	s := New(store, paths, 1, nil)

	_, err := s.CreateProject(ctx, ana, "   ", "desc")
	assert.ErrorIs(t, err, ErrEmptyProjectName)
	_, err = s.CreateTask(ctx, ana, "p1", "", "")
	assert.ErrorIs(t, err, ErrEmptyTaskTitle)
	err = s.UpdateTask(ctx, "p1", "t1", TaskUpdate{Title: " ", Status: model.StatusDone})
	assert.ErrorIs(t, err, ErrEmptyTaskTitle)
	err = s.UpdateTask(ctx, "p1", "t1", TaskUpdate{Title: "ok", Status: "blocked"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = s.PostComment(ctx, ana, "p1", "t1", "\n\t")
	assert.ErrorIs(t, err, ErrEmptyComment)

	assert.Zero(t, store.calls.Load())
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	s := New(&countingStore{}, paths, 1, nil)

	_, err := s.CreateProject(ctx, ana, "Alpha", "")
	assert.ErrorIs(t, err, errUnavailable)
	n, ok := Describe(OpCreateProject, err)
	require.True(t, ok)
	assert.Equal(t, model.Alert(model.SeverityError, "Error creating project."), n)
}

func TestCreateProjectAndTask(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(1000)
	s, store := newService(t, clock.Option())

	projectID, err := s.CreateProject(ctx, ana, "  Alpha ", " first ")
	require.NoError(t, err)

	d, err := store.Get(ctx, paths.Project(projectID))
	require.NoError(t, err)
	p, err := model.DecodeProject(d)
	require.NoError(t, err)
	assert.Equal(t, model.Project{
		ID:          projectID,
		Name:        "Alpha",
		Description: "first",
		CreatedAt:   1000,
		CreatedBy:   "ana",
		Members:     []string{"ana"},
	}, p)

	taskID, err := s.CreateTask(ctx, ana, projectID, "Design homepage", "")
	require.NoError(t, err)
	task, err := s.GetTask(ctx, projectID, taskID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.Equal(t, projectID, task.ProjectID)
	assert.Nil(t, task.AssignedTo)
	assert.Equal(t, "ana", task.CreatedBy)
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	taskID, err := s.CreateTask(ctx, ana, "p1", "Old", "")
	require.NoError(t, err)

	err = s.UpdateTask(ctx, "p1", taskID, TaskUpdate{
		Title:                 " New ",
		Description:           "details",
		Status:                model.StatusInProgress,
		AssignedTo:            "bob",
		AssignedToDisplayName: "Bob",
	})
	require.NoError(t, err)

	task, err := s.GetTask(ctx, "p1", taskID)
	require.NoError(t, err)
	assert.Equal(t, "New", task.Title)
	assert.Equal(t, model.StatusInProgress, task.Status)
	assert.Equal(t, "Bob", task.Assignee())

	require.NoError(t, s.UpdateTask(ctx, "p1", taskID, TaskUpdate{Title: "New", Status: model.StatusDone}))
	task, err = s.GetTask(ctx, "p1", taskID)
	require.NoError(t, err)
	assert.Nil(t, task.AssignedTo)
	assert.Nil(t, task.AssignedToDisplayName)

	err = s.UpdateTask(ctx, "p1", "missing", TaskUpdate{Title: "x", Status: model.StatusDone})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPostCommentUsesAuthorName(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.PostComment(ctx, ana, "p1", "t1", " Looks good ")
	require.NoError(t, err)
	_, err = s.PostComment(ctx, guest, "p1", "t1", "Me too")
	require.NoError(t, err)

	comments, err := s.ListComments(ctx, "p1", "t1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Looks good", comments[0].Text)
	assert.Equal(t, "Ana", comments[0].UserName)
	assert.Equal(t, "t1", comments[0].TaskID)
	assert.Equal(t, "Anonymous User", comments[1].UserName)
	assert.Less(t, comments[0].CreatedAt, comments[1].CreatedAt)
}

func TestDeleteProjectRemovesEverything(t *testing.T) {
	ctx := context.Background()
	s, store := newService(t)

	projectID, err := s.CreateProject(ctx, ana, "Alpha", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		taskID, err := s.CreateTask(ctx, ana, projectID, "task", "")
		require.NoError(t, err)
		_, err = s.PostComment(ctx, ana, projectID, taskID, "hi")
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteProject(ctx, projectID))

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	tasks, err := store.List(ctx, paths.Tasks(projectID))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListProjectsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	first, err := s.CreateProject(ctx, ana, "First", "")
	require.NoError(t, err)
	second, err := s.CreateProject(ctx, ana, "Second", "")
	require.NoError(t, err)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, second, projects[0].ID)
	assert.Equal(t, first, projects[1].ID)
}

func TestWatchProjectsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	p, err := s.WatchProjects(ctx, projector.Options[model.Project]{})
	require.NoError(t, err)
	defer p.Close()

	_, err = s.CreateProject(ctx, ana, "First", "")
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, ana, "Second", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items := p.Items()
		return len(items) == 2 && items[0].Name == "Second" && items[1].Name == "First"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDescribe(t *testing.T) {
	n, ok := Describe(OpCreateTask, nil)
	require.True(t, ok)
	assert.Equal(t, model.Alert(model.SeveritySuccess, "Task added successfully!"), n)

	_, ok = Describe(OpPostComment, nil)
	assert.False(t, ok)

	n, _ = Describe(OpCreateProject, ErrEmptyProjectName)
	assert.Equal(t, model.Alert(model.SeverityInfo, "Project name cannot be empty."), n)

	n, _ = Describe(OpUpdateTask, ErrEmptyTaskTitle)
	assert.Equal(t, model.Alert(model.SeverityInfo, "Task title cannot be empty."), n)

	n, _ = Describe(OpDeleteTask, errors.New("boom"))
	assert.Equal(t, model.Alert(model.SeverityError, "Error deleting task."), n)

	assert.True(t, IsValidation(ErrEmptyComment))
	assert.False(t, IsValidation(errUnavailable))
}
