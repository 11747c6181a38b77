// Package cascade deletes tasks and projects together with everything below
// them. The store has no cascading deletes, so children always go first:
// comments, then their task, then the project once every task is gone.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/model"
)

// Store is the part of the document store a Deleter needs.
type Store interface {
	List(ctx context.Context, collection string) ([]docstore.Document, error)
	Delete(ctx context.Context, docPath string) error
}

// Deleter runs cascade deletes.
type Deleter struct {
	store          Store
	paths          model.Paths
	maxConcurrency int
	log            *slog.Logger
}

// New creates a Deleter. maxConcurrency bounds how many task cascades a
// project delete runs at once.
func New(store Store, paths model.Paths, maxConcurrency int, log *slog.Logger) *Deleter {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Deleter{
		store:          store,
		paths:          paths,
		maxConcurrency: maxConcurrency,
		log:            log,
	}
}

// DeleteTask deletes every comment of the task, then the task. If any
// comment delete fails the task is left in place; comments already deleted
// stay deleted.
func (d *Deleter) DeleteTask(ctx context.Context, projectID, taskID string) error {
	comments, err := d.store.List(ctx, d.paths.Comments(projectID, taskID))
	if err != nil {
		return fmt.Errorf("listing comments of task %s: %w", taskID, err)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, c := range comments {
		p.Go(func(ctx context.Context) error {
			return d.deleteDoc(ctx, c.Path)
		})
	}
	if err := p.Wait(); err != nil {
		return fmt.Errorf("deleting comments of task %s: %w", taskID, err)
	}

	if err := d.store.Delete(ctx, d.paths.Task(projectID, taskID)); err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}

	d.log.Info("task deleted", "project", projectID, "task", taskID, "comments", len(comments))
	return nil
}

// DeleteProject runs the task cascade for every task of the project and
// deletes the project only when all of them succeeded.
func (d *Deleter) DeleteProject(ctx context.Context, projectID string) error {
	tasks, err := d.store.List(ctx, d.paths.Tasks(projectID))
	if err != nil {
		return fmt.Errorf("listing tasks of project %s: %w", projectID, err)
	}

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(d.maxConcurrency)
	for _, t := range tasks {
		p.Go(func(ctx context.Context) error {
			return d.DeleteTask(ctx, projectID, t.ID)
		})
	}
	if err := p.Wait(); err != nil {
		return fmt.Errorf("deleting tasks of project %s: %w", projectID, err)
	}

	if err := d.store.Delete(ctx, d.paths.Project(projectID)); err != nil {
		return fmt.Errorf("deleting project %s: %w", projectID, err)
	}

	d.log.Info("project deleted", "project", projectID, "tasks", len(tasks))
	return nil
}

// deleteDoc deletes one child document. A child that is already gone
// counts as deleted, so an interrupted cascade can be run again.
func (d *Deleter) deleteDoc(ctx context.Context, docPath string) error {
	err := d.store.Delete(ctx, docPath)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}
