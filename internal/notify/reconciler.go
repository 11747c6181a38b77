// Package notify turns live task and comment changes into "new comment"
// notifications.
//
// A Reconciler watches the task collection of one project. For every task it
// keeps a live query on the task's most recent comment and remembers, per
// task, the creation time of the last comment it announced. A comment is
// announced once, when it is newer than that watermark and was not written
// by the current user.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/projector"
)

// Sink receives notifications. Implementations must not block.
type Sink interface {
	Notify(model.Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(model.Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n model.Notification) { f(n) }

// Config wires a Reconciler to its collaborators.
type Config struct {
	Store     docstore.Subscriber
	Paths     model.Paths
	ProjectID string

	// UserID identifies the current user; their comments are never
	// announced.
	UserID string

	Sink   Sink
	Logger *slog.Logger
}

// Reconciler derives comment notifications for one project. All of its state
// is discarded by Stop.
type Reconciler struct {
	cfg Config
	log *slog.Logger

	mu         sync.Mutex
	watermarks map[string]model.Timestamp
	watches    map[string]*commentWatch
	stopped    bool
	detach     func() bool

	tasks *projector.Projection[model.Task]
}

// commentWatch is the live most-recent-comment query of one task.
type commentWatch struct {
	proj  *projector.Projection[model.Comment]
	title string
}

// Start begins watching the tasks of cfg.ProjectID. The reconciler runs
// until Stop is called or ctx is done.
func Start(ctx context.Context, cfg Config) (*Reconciler, error) {
	if cfg.Sink == nil {
		cfg.Sink = SinkFunc(func(model.Notification) {})
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Reconciler{
		cfg:        cfg,
		log:        log.With("project", cfg.ProjectID),
		watermarks: make(map[string]model.Timestamp),
		watches:    make(map[string]*commentWatch),
	}

	q := docstore.Query{
		Collection: cfg.Paths.Tasks(cfg.ProjectID),
		OrderBy:    "createdAt",
		Direction:  docstore.Ascending,
	}
	// Queries are ended by Stop, which also runs when ctx is done.
	watchCtx := context.WithoutCancel(ctx)
	tasks, err := projector.Watch(watchCtx, cfg.Store, q, model.DecodeTask, projector.Options[model.Task]{
		OnUpdate: func(u projector.Update[model.Task]) { r.onTasks(watchCtx, u) },
		OnError:  r.onTaskError,
	})
	if err != nil {
		return nil, fmt.Errorf("watching tasks of project %s: %w", cfg.ProjectID, err)
	}
	r.tasks = tasks

	detach := context.AfterFunc(ctx, r.Stop)
	r.mu.Lock()
	r.detach = detach
	r.mu.Unlock()

	r.log.Debug("reconciler started")
	return r, nil
}

// Stop releases the task query and every comment query and discards the
// watermarks. It waits until no callback is running and is safe to call more
// than once. Stop must not be called from a Sink.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.detach != nil {
		r.detach()
	}
	watches := r.watches
	r.watches = nil
	r.watermarks = nil
	r.mu.Unlock()

	// Callbacks may be waiting on r.mu, so projections are closed unlocked.
	r.tasks.Close()
	for _, w := range watches {
		w.proj.Close()
	}

	r.log.Debug("reconciler stopped", "comment_queries", len(watches))
}

// Watermark returns the creation time of the last comment announced for
// taskID.
func (r *Reconciler) Watermark(taskID string) (model.Timestamp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.watermarks[taskID]
	return ts, ok
}

// Watching returns the IDs of the tasks with an open comment query, sorted.
func (r *Reconciler) Watching() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.watches))
	for id := range r.watches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Reconciler) onTasks(ctx context.Context, u projector.Update[model.Task]) {
	var released []*commentWatch

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	for _, ch := range u.Changes {
		switch ch.Kind {
		case docstore.ChangeAdded, docstore.ChangeModified:
			if w, ok := r.watches[ch.ID]; ok {
				w.title = ch.Item.Title
				continue
			}
			w, err := r.watchComments(ctx, ch.Item)
			if err != nil {
				r.log.Error("watching comments", "task", ch.ID, "error", err)
				r.cfg.Sink.Notify(model.Alert(model.SeverityError,
					fmt.Sprintf("Error watching comments on task \"%s\".", ch.Item.Title)))
				continue
			}
			r.watches[ch.ID] = w
		case docstore.ChangeRemoved:
			if w, ok := r.watches[ch.ID]; ok {
				delete(r.watches, ch.ID)
				released = append(released, w)
			}
		}
	}
	r.mu.Unlock()

	for _, w := range released {
		w.proj.Close()
	}
}

// watchComments opens the most-recent-comment query of task. Callers hold
// r.mu; the projection callbacks run on their own goroutine and take r.mu
// themselves.
func (r *Reconciler) watchComments(ctx context.Context, task model.Task) (*commentWatch, error) {
	w := &commentWatch{title: task.Title}
	q := docstore.Query{
		Collection: r.cfg.Paths.Comments(r.cfg.ProjectID, task.ID),
		OrderBy:    "createdAt",
		Direction:  docstore.Descending,
		Limit:      1,
	}

	proj, err := projector.Watch(ctx, r.cfg.Store, q, model.DecodeComment, projector.Options[model.Comment]{
		OnUpdate: func(u projector.Update[model.Comment]) { r.onLatestComment(task.ID, w, u.Items) },
		OnError:  func(err error) { r.onCommentError(task.ID, w, err) },
	})
	if err != nil {
		return nil, err
	}
	w.proj = proj
	return w, nil
}

func (r *Reconciler) onLatestComment(taskID string, w *commentWatch, items []model.Comment) {
	if len(items) == 0 {
		return
	}
	latest := items[0]

	r.mu.Lock()
	// A released query may still deliver a batch it had queued.
	if r.stopped || r.watches[taskID] != w {
		r.mu.Unlock()
		return
	}
	// Own comments never notify and leave the watermark where it is.
	if latest.UserID == r.cfg.UserID {
		r.mu.Unlock()
		return
	}
	known := r.watermarks[taskID]
	if latest.CreatedAt <= known {
		r.mu.Unlock()
		return
	}
	r.watermarks[taskID] = latest.CreatedAt
	title := w.title
	r.mu.Unlock()

	r.log.Debug("new comment", "task", taskID, "comment", latest.ID, "created_at", int64(latest.CreatedAt))
	r.cfg.Sink.Notify(model.CommentNotification(taskID, title, latest.UserName, latest.CreatedAt))
}

func (r *Reconciler) onCommentError(taskID string, w *commentWatch, err error) {
	r.mu.Lock()
	if r.stopped || r.watches[taskID] != w {
		r.mu.Unlock()
		return
	}
	title := w.title
	r.mu.Unlock()

	r.log.Error("comment query failed", "task", taskID, "error", err)
	r.cfg.Sink.Notify(model.Alert(model.SeverityError,
		fmt.Sprintf("Error loading comments for task \"%s\".", title)))
}

func (r *Reconciler) onTaskError(err error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}

	r.log.Error("task query failed", "error", err)
	r.cfg.Sink.Notify(model.Alert(model.SeverityError, "Error loading tasks."))
}
