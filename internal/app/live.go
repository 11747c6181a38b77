package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/feed"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
	"github.com/nhle/taskboard/internal/projector"
)

// projectsMsg carries the live project list.
type projectsMsg struct {
	items []model.Project
}

// tasksMsg carries the live task list of a project.
type tasksMsg struct {
	projectID string
	items     []model.Task
}

// commentsMsg carries the live comment thread of a task.
type commentsMsg struct {
	taskID string
	items  []model.Comment
}

// live owns the open live queries and the notification session. It is
// shared by every copy of the root model.
type live struct {
	svc     *board.Service
	feed    *feed.Feed
	session *notify.Session
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	projects *projector.Projection[model.Project]
	tasks    *projector.Projection[model.Task]
	comments *projector.Projection[model.Comment]
	closed   bool
}

func (l *live) watchProjects() error {
	p, err := l.svc.WatchProjects(l.ctx, projector.Options[model.Project]{
		OnUpdate: func(u projector.Update[model.Project]) {
			l.feed.Publish("projects", projectsMsg{items: u.Items})
		},
		OnError: func(err error) {
			l.log.Error("project query failed", "error", err)
			l.feed.Notify(model.Alert(model.SeverityError, "Error loading projects."))
		},
	})
	if err != nil {
		return fmt.Errorf("watching projects: %w", err)
	}

	l.mu.Lock()
	l.projects = p
	l.mu.Unlock()
	return nil
}

// openProject replaces the task query and the notification reconciler
// with ones for projectID.
func (l *live) openProject(projectID string) error {
	l.closeProject()

	p, err := l.svc.WatchTasks(l.ctx, projectID, projector.Options[model.Task]{
		OnUpdate: func(u projector.Update[model.Task]) {
			l.feed.Publish("tasks", tasksMsg{projectID: projectID, items: u.Items})
		},
		OnError: func(err error) {
			l.log.Error("task query failed", "project", projectID, "error", err)
			l.feed.Notify(model.Alert(model.SeverityError, "Error loading tasks."))
		},
	})
	if err != nil {
		return fmt.Errorf("watching tasks: %w", err)
	}
	l.mu.Lock()
	l.tasks = p
	l.mu.Unlock()

	if err := l.session.Select(l.ctx, projectID); err != nil {
		return fmt.Errorf("watching comments: %w", err)
	}
	return nil
}

// closeProject ends every query of the open project.
func (l *live) closeProject() {
	l.closeTask()
	l.session.Clear()

	l.mu.Lock()
	p := l.tasks
	l.tasks = nil
	l.mu.Unlock()
	if p != nil {
		p.Close()
	}
}

func (l *live) openTask(projectID, taskID string) error {
	l.closeTask()

	p, err := l.svc.WatchComments(l.ctx, projectID, taskID, projector.Options[model.Comment]{
		OnUpdate: func(u projector.Update[model.Comment]) {
			l.feed.Publish("comments", commentsMsg{taskID: taskID, items: u.Items})
		},
		OnError: func(err error) {
			l.log.Error("comment query failed", "task", taskID, "error", err)
			l.feed.Notify(model.Alert(model.SeverityError, "Error loading comments."))
		},
	})
	if err != nil {
		return fmt.Errorf("watching comments: %w", err)
	}
	l.mu.Lock()
	l.comments = p
	l.mu.Unlock()
	return nil
}

func (l *live) closeTask() {
	l.mu.Lock()
	p := l.comments
	l.comments = nil
	l.mu.Unlock()
	if p != nil {
		p.Close()
	}
}

// close ends all queries and the feed. It is safe to call more than once.
func (l *live) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	projects := l.projects
	l.projects = nil
	l.mu.Unlock()

	l.closeProject()
	if projects != nil {
		projects.Close()
	}
	l.cancel()
	l.feed.Close()
}
