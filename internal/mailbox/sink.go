package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
)

// appendTimeout bounds a single IMAP round trip.
const appendTimeout = 30 * time.Second

// Config configures a Sink.
type Config struct {
	Appender Appender
	Mailbox  string

	// Address is used for both the From and To headers.
	Address   string
	QueueSize int
	Logger    *slog.Logger

	// Now stamps the message date. Defaults to time.Now.
	Now func() time.Time
}

// Sink archives notifications in a mailbox. Notify never blocks; messages
// are appended by a background worker and dropped when the queue is full.
type Sink struct {
	cfg     Config
	log     *slog.Logger
	ch      chan model.Notification
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Start launches the worker. It exits when ctx is done or Close is called.
func Start(ctx context.Context, cfg Config) *Sink {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	s := &Sink{
		cfg:  cfg,
		log:  log.With("component", "mailbox", "mailbox", cfg.Mailbox),
		ch:   make(chan model.Notification, cfg.QueueSize),
		done: make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Notify queues n for archiving.
func (s *Sink) Notify(n model.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- n:
	default:
		s.dropped.Add(1)
		s.log.Warn("mailbox queue full, dropping notification", "task", n.TaskID)
	}
}

// Dropped returns how many notifications were discarded.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the worker after the queued notifications are appended.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.ch:
			if !ok {
				return
			}
			if err := s.archive(ctx, n); err != nil {
				s.log.Error("archiving notification", "task", n.TaskID, "error", err)
			}
		}
	}
}

func (s *Sink) archive(ctx context.Context, n model.Notification) error {
	at := s.cfg.Now()
	msg, err := Compose(n, s.cfg.Address, at)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	return s.cfg.Appender.Append(ctx, s.cfg.Mailbox, msg, at)
}

// ClientFromConfig builds an IMAP client for cfg. The password is read
// from the credential store.
func ClientFromConfig(cfg model.MailboxConfig, creds *credential.Store) (*IMAPClient, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, errors.New("mailbox host and username are required")
	}
	password, err := creds.Get(credential.KeyMailboxPassword)
	if err != nil {
		return nil, fmt.Errorf("reading mailbox password: %w", err)
	}
	return NewIMAPClient(cfg.Address(), cfg.Username, password, cfg.TLS), nil
}

// FromAddress returns the address messages are sent from.
func FromAddress(cfg model.MailboxConfig) string {
	if cfg.From != "" {
		return cfg.From
	}
	return cfg.Username
}
