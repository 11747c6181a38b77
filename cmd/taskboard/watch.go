package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
)

func watchCmd(configPath *string) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print comment notifications for a project",
		Long: `Print a line for every new comment posted by someone else on any task of
the project, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), *configPath, projectID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runWatch(ctx context.Context, configPath, projectID string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer e.close()

	if _, err := e.store.Get(ctx, e.board.Paths().Project(projectID)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("project %s not found", projectID)
		}
		return err
	}

	queue := notify.NewQueue(e.cfg.Notifications.QueueSize)
	var sink notify.Sink = queue
	if extra := e.mailboxSink(ctx); extra != nil {
		sink = notify.Fanout{queue, extra}
	}

	r, err := notify.Start(ctx, notify.Config{
		Store:     e.store,
		Paths:     e.board.Paths(),
		ProjectID: projectID,
		UserID:    e.who.ID,
		Sink:      sink,
		Logger:    e.log.With("component", "notify"),
	})
	if err != nil {
		return err
	}
	defer r.Stop()

	fmt.Fprintf(out, "Watching project %s as %s. Press Ctrl+C to stop.\n", projectID, e.who.Name())
	for {
		select {
		case <-ctx.Done():
			if dropped := queue.Dropped(); dropped > 0 {
				e.log.Warn("notifications dropped", "count", dropped)
			}
			return nil
		case n := <-queue.C():
			fmt.Fprintln(out, formatNotification(n))
		}
	}
}

func formatNotification(n model.Notification) string {
	if n.TaskID == "" {
		return fmt.Sprintf("[%s] %s", n.Severity, n.Message)
	}
	return fmt.Sprintf("[%s] %s", n.CreatedAt.Time().Format("15:04:05"), n.Message)
}
