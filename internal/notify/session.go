package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/nhle/taskboard/internal/docstore"
	"github.com/nhle/taskboard/internal/model"
)

// SessionConfig holds what every reconciler of a Session shares.
type SessionConfig struct {
	Store  docstore.Subscriber
	Paths  model.Paths
	UserID string
	Sink   Sink
	Logger *slog.Logger
}

// Session owns the reconciler of the currently selected project. Selecting
// another project tears the previous reconciler down before the next one
// starts, so no state or query carries over.
type Session struct {
	cfg SessionConfig
	log *slog.Logger

	mu        sync.Mutex
	projectID string
	current   *Reconciler
}

// NewSession creates a session with no project selected.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{cfg: cfg, log: log}
}

// Select makes projectID the active project. Selecting the active project
// again keeps the running reconciler.
func (s *Session) Select(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.projectID == projectID {
		return nil
	}
	s.stopLocked()

	r, err := Start(ctx, Config{
		Store:     s.cfg.Store,
		Paths:     s.cfg.Paths,
		ProjectID: projectID,
		UserID:    s.cfg.UserID,
		Sink:      s.cfg.Sink,
		Logger:    s.log,
	})
	if err != nil {
		return err
	}
	s.projectID = projectID
	s.current = r
	return nil
}

// Clear stops the active reconciler, if any.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// ProjectID returns the active project, or "" when none is selected.
func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Current returns the active reconciler, or nil.
func (s *Session) Current() *Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) stopLocked() {
	if s.current == nil {
		return
	}
	s.current.Stop()
	s.log.Debug("project deselected", "project", s.projectID)
	s.current = nil
	s.projectID = ""
}
