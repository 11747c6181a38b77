package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/identity"
	"github.com/nhle/taskboard/internal/mailbox"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
)

// env is what every command runs against.
type env struct {
	cfg     *model.AppConfig
	log     *slog.Logger
	creds   *credential.Store
	store   *docstore.SQLiteStore
	board   *board.Service
	session *identity.Session
	who     identity.Identity

	closers []func()
}

// openEnv loads the config, opens the store and signs in. stderr selects
// where logs go when log.file is unset: the TUI passes false so the
// terminal stays clean.
func openEnv(ctx context.Context, configPath string, stderr bool) (*env, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	out, err := logOutput(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}
	if c, ok := out.(io.Closer); ok && out != os.Stderr {
		e.closers = append(e.closers, func() { c.Close() })
	}
	e.log = mustMakeLogger(cfg.Log, out)

	e.creds, err = credential.Open()
	if err != nil {
		e.close()
		return nil, err
	}

	e.store, err = docstore.NewSQLiteStore(cfg.Store.Path, docstore.WithLogger(e.log.With("component", "docstore")))
	if err != nil {
		e.close()
		return nil, fmt.Errorf("opening store %s: %w", cfg.Store.Path, err)
	}
	e.closers = append(e.closers, func() {
		if err := e.store.Close(); err != nil {
			e.log.Error("closing store", "error", err)
		}
	})

	e.board = board.New(e.store, model.Paths{AppID: cfg.Store.AppID}, cfg.Cascade.MaxConcurrency, e.log.With("component", "board"))

	e.session, err = identity.FromConfig(cfg.Identity, e.creds, e.log.With("component", "identity"))
	if err != nil {
		e.close()
		return nil, err
	}
	e.who, err = e.session.SignIn(ctx)
	if err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

// mailboxSink starts the IMAP archive when it is enabled. It returns nil
// otherwise, or when the mailbox cannot be configured.
func (e *env) mailboxSink(ctx context.Context) notify.Sink {
	mc := e.cfg.Notifications.Mailbox
	if !mc.Enabled {
		return nil
	}
	client, err := mailbox.ClientFromConfig(mc, e.creds)
	if err != nil {
		e.log.Warn("mailbox archive disabled", "error", err)
		return nil
	}
	s := mailbox.Start(ctx, mailbox.Config{
		Appender:  client,
		Mailbox:   mc.Mailbox,
		Address:   mailbox.FromAddress(mc),
		QueueSize: e.cfg.Notifications.QueueSize,
		Logger:    e.log,
	})
	e.closers = append(e.closers, s.Close)
	return s
}

// close runs the closers in reverse order.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func logOutput(cfg model.LogConfig, stderr bool) (io.Writer, error) {
	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	case stderr:
		return os.Stderr, nil
	default:
		return io.Discard, nil
	}
}

func mustMakeLogger(cfg model.LogConfig, out io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
