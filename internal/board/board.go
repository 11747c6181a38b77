// Package board is the command surface of the application: it validates
// user input, writes projects, tasks and comments to the document store and
// opens the live views the presentation layer renders.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/nhle/taskboard/internal/cascade"
	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/identity"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/projector"
)

// Validation errors. They are returned before anything is written.
var (
	ErrEmptyProjectName = errors.New("project name is empty")
	ErrEmptyTaskTitle   = errors.New("task title is empty")
	ErrEmptyComment     = errors.New("comment is empty")
	ErrInvalidStatus    = errors.New("invalid task status")
)

// Service runs board commands against a document store.
type Service struct {
	store   docstore.Store
	paths   model.Paths
	deleter *cascade.Deleter
	log     *slog.Logger
}

// New creates a Service. maxConcurrency bounds the task cascades of a
// project delete.
func New(store docstore.Store, paths model.Paths, maxConcurrency int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:   store,
		paths:   paths,
		deleter: cascade.New(store, paths, maxConcurrency, log),
		log:     log,
	}
}

// Paths returns the store layout the service writes to.
func (s *Service) Paths() model.Paths {
	return s.paths
}

// CreateProject creates a project owned by who, who is also its only member.
func (s *Service) CreateProject(ctx context.Context, who identity.Identity, name, description string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyProjectName
	}

	id, err := s.store.Create(ctx, s.paths.Projects(), docstore.Fields{
		"name":        name,
		"description": strings.TrimSpace(description),
		"createdAt":   docstore.ServerTimestamp,
		"createdBy":   who.ID,
		"members":     []string{who.ID},
	})
	if err != nil {
		s.log.Error("creating project", "error", err)
		return "", fmt.Errorf("creating project: %w", err)
	}

	s.log.Info("project created", "project", id, "user", who.ID)
	return id, nil
}

// CreateTask adds an unassigned task to the first column of a project.
func (s *Service) CreateTask(ctx context.Context, who identity.Identity, projectID, title, description string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTaskTitle
	}

	id, err := s.store.Create(ctx, s.paths.Tasks(projectID), docstore.Fields{
		"projectId":             projectID,
		"title":                 title,
		"description":           strings.TrimSpace(description),
		"status":                string(model.StatusTodo),
		"assignedTo":            nil,
		"assignedToDisplayName": nil,
		"createdAt":             docstore.ServerTimestamp,
		"createdBy":             who.ID,
	})
	if err != nil {
		s.log.Error("creating task", "project", projectID, "error", err)
		return "", fmt.Errorf("creating task: %w", err)
	}

	s.log.Info("task created", "project", projectID, "task", id)
	return id, nil
}

// TaskUpdate holds the editable fields of a task. Empty assignee fields
// clear the assignment.
type TaskUpdate struct {
	Title                 string       `json:"title"`
	Description           string       `json:"description"`
	Status                model.Status `json:"status"`
	AssignedTo            string       `json:"assignedTo"`
	AssignedToDisplayName string       `json:"assignedToDisplayName"`
}

// UpdateTask overwrites the editable fields of a task.
func (s *Service) UpdateTask(ctx context.Context, projectID, taskID string, u TaskUpdate) error {
	title := strings.TrimSpace(u.Title)
	if title == "" {
		return ErrEmptyTaskTitle
	}
	if !u.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
	}

	err := s.store.Update(ctx, s.paths.Task(projectID, taskID), docstore.Fields{
		"title":                 title,
		"description":           strings.TrimSpace(u.Description),
		"status":                string(u.Status),
		"assignedTo":            nullable(u.AssignedTo),
		"assignedToDisplayName": nullable(u.AssignedToDisplayName),
	})
	if err != nil {
		s.log.Error("updating task", "project", projectID, "task", taskID, "error", err)
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

// PostComment adds a comment by who to a task. The store assigns the
// comment time.
func (s *Service) PostComment(ctx context.Context, who identity.Identity, projectID, taskID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyComment
	}

	id, err := s.store.Create(ctx, s.paths.Comments(projectID, taskID), docstore.Fields{
		"text":      text,
		"createdAt": docstore.ServerTimestamp,
		"userId":    who.ID,
		"userName":  who.Name(),
	})
	if err != nil {
		s.log.Error("adding comment", "project", projectID, "task", taskID, "error", err)
		return "", fmt.Errorf("adding comment: %w", err)
	}
	return id, nil
}

// DeleteTask deletes a task and its comments.
func (s *Service) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if err := s.deleter.DeleteTask(ctx, projectID, taskID); err != nil {
		s.log.Error("deleting task", "project", projectID, "task", taskID, "error", err)
		return err
	}
	return nil
}

// DeleteProject deletes a project with all of its tasks and comments.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.deleter.DeleteProject(ctx, projectID); err != nil {
		s.log.Error("deleting project", "project", projectID, "error", err)
		return err
	}
	return nil
}

// GetTask reads one task.
func (s *Service) GetTask(ctx context.Context, projectID, taskID string) (model.Task, error) {
	d, err := s.store.Get(ctx, s.paths.Task(projectID, taskID))
	if err != nil {
		return model.Task{}, err
	}
	return model.DecodeTask(d)
}

// ListProjects returns all projects, newest first.
func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	projects, err := list(ctx, s.store, s.paths.Projects(), model.DecodeProject)
	if err != nil {
		return nil, err
	}
	slices.Reverse(projects)
	return projects, nil
}

// ListTasks returns the tasks of a project in creation order.
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	return list(ctx, s.store, s.paths.Tasks(projectID), model.DecodeTask)
}

// ListComments returns the comments of a task, oldest first.
func (s *Service) ListComments(ctx context.Context, projectID, taskID string) ([]model.Comment, error) {
	return list(ctx, s.store, s.paths.Comments(projectID, taskID), model.DecodeComment)
}

// WatchProjects opens the live project list, newest first.
func (s *Service) WatchProjects(ctx context.Context, opts projector.Options[model.Project]) (*projector.Projection[model.Project], error) {
	return projector.Watch(ctx, s.store, docstore.Query{
		Collection: s.paths.Projects(),
		OrderBy:    "createdAt",
		Direction:  docstore.Descending,
	}, model.DecodeProject, opts)
}

// WatchTasks opens the live task list of a project in creation order.
func (s *Service) WatchTasks(ctx context.Context, projectID string, opts projector.Options[model.Task]) (*projector.Projection[model.Task], error) {
	return projector.Watch(ctx, s.store, docstore.Query{
		Collection: s.paths.Tasks(projectID),
		OrderBy:    "createdAt",
		Direction:  docstore.Ascending,
	}, model.DecodeTask, opts)
}

// WatchComments opens the live comment thread of a task, oldest first.
func (s *Service) WatchComments(ctx context.Context, projectID, taskID string, opts projector.Options[model.Comment]) (*projector.Projection[model.Comment], error) {
	return projector.Watch(ctx, s.store, docstore.Query{
		Collection: s.paths.Comments(projectID, taskID),
		OrderBy:    "createdAt",
		Direction:  docstore.Ascending,
	}, model.DecodeComment, opts)
}

func list[T any](ctx context.Context, store docstore.Reader, collection string, decode projector.Decoder[T]) ([]T, error) {
	docs, err := store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func nullable(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
