// Package identity establishes who the current user is.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nhle/taskboard/internal/credential"
)

// ErrNoToken is returned by providers that need a stored sign-in token when
// none is available.
var ErrNoToken = errors.New("no stored sign-in token")

// Identity is the signed-in user.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Anonymous   bool   `json:"anonymous"`
}

// Name returns the name shown for the user's own actions.
func (i Identity) Name() string {
	switch {
	case i.DisplayName != "":
		return i.DisplayName
	case i.Email != "":
		return i.Email
	default:
		return "Anonymous User"
	}
}

// Credentials is the secret storage providers keep their state in.
type Credentials interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Provider signs a user in.
type Provider interface {
	SignIn(ctx context.Context) (Identity, error)
}

// Anonymous signs in without an account. The generated ID is kept in the
// credential store, so the user stays the same across restarts.
type Anonymous struct {
	Creds       Credentials
	DisplayName string
	Email       string
}

// SignIn returns the stored anonymous identity, creating it on first use.
func (a *Anonymous) SignIn(context.Context) (Identity, error) {
	id, err := a.Creds.Get(credential.KeyAnonymousID)
	if errors.Is(err, credential.ErrNotFound) {
		id = uuid.New().String()
		if err := a.Creds.Set(credential.KeyAnonymousID, id); err != nil {
			return Identity{}, fmt.Errorf("saving anonymous id: %w", err)
		}
	} else if err != nil {
		return Identity{}, fmt.Errorf("reading anonymous id: %w", err)
	}

	return Identity{
		ID:          id,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		Anonymous:   true,
	}, nil
}

// Forgetter is implemented by providers holding a token that SignOut
// should discard.
type Forgetter interface {
	Forget() error
}

// Session holds the current identity. Sign-in tries the primary provider and
// falls back to the secondary one when it fails.
type Session struct {
	primary  Provider
	fallback Provider
	log      *slog.Logger

	mu      sync.RWMutex
	current Identity
}

// NewSession creates a session. fallback may be nil.
func NewSession(primary, fallback Provider, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{primary: primary, fallback: fallback, log: log}
}

// SignIn establishes the current identity.
func (s *Session) SignIn(ctx context.Context) (Identity, error) {
	id, err := s.primary.SignIn(ctx)
	if err != nil && s.fallback != nil {
		s.log.Warn("sign-in failed, continuing anonymously", "error", err)
		id, err = s.fallback.SignIn(ctx)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("signing in: %w", err)
	}

	s.mu.Lock()
	s.current = id
	s.mu.Unlock()

	s.log.Info("signed in", "user", id.ID, "anonymous", id.Anonymous)
	return id, nil
}

// Current returns the signed-in identity, or the zero Identity before
// SignIn.
func (s *Session) Current() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SignOut clears the current identity and discards any cached token of the
// primary provider.
func (s *Session) SignOut() error {
	s.mu.Lock()
	s.current = Identity{}
	s.mu.Unlock()

	if f, ok := s.primary.(Forgetter); ok {
		if err := f.Forget(); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
	}
	return nil
}
