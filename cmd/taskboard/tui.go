package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/app"
)

func runTUI(ctx context.Context, configPath string) error {
	e, err := openEnv(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := app.New(app.Config{
		Board:         e.board,
		Store:         e.store,
		Identity:      e.who,
		ToastDuration: e.cfg.Notifications.ToastDuration(),
		QueueSize:     e.cfg.Notifications.QueueSize,
		Extra:         e.mailboxSink(ctx),
		Logger:        e.log.With("component", "tui"),
	})
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	return nil
}
