package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/nhle/taskboard/internal/credential"
)

// LoadGoogleConfig reads a Google OAuth client file and points its redirect
// at the local callback listener on port.
func LoadGoogleConfig(secretsFile string, port int) (*oauth2.Config, error) {
	b, err := os.ReadFile(secretsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secrets %s: %w", secretsFile, err)
	}

	config, err := google.ConfigFromJSON(b,
		oauth2api.UserinfoProfileScope,
		oauth2api.UserinfoEmailScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing client secrets %s: %w", secretsFile, err)
	}
	config.RedirectURL = fmt.Sprintf("http://localhost:%d/oauth2callback", port)
	return config, nil
}

// Google signs in with a Google account. The OAuth token obtained by Login
// is kept in the credential store and refreshed as needed.
type Google struct {
	config *oauth2.Config
	creds  Credentials
	opts   []option.ClientOption
}

// NewGoogle creates the provider. opts are passed to the userinfo client.
func NewGoogle(config *oauth2.Config, creds Credentials, opts ...option.ClientOption) *Google {
	return &Google{config: config, creds: creds, opts: opts}
}

// SignIn loads the stored token and fetches the account profile.
func (g *Google) SignIn(ctx context.Context) (Identity, error) {
	tok, err := g.loadToken()
	if err != nil {
		return Identity{}, err
	}

	ts := g.config.TokenSource(ctx, tok)
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("creating userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("fetching google profile: %w", err)
	}

	// Keep a refreshed token for the next start.
	if cur, err := ts.Token(); err == nil && cur.AccessToken != tok.AccessToken {
		if err := g.saveToken(cur); err != nil {
			return Identity{}, err
		}
	}

	return Identity{
		ID:          info.Id,
		DisplayName: info.Name,
		Email:       info.Email,
	}, nil
}

// Forget deletes the stored token.
func (g *Google) Forget() error {
	return g.creds.Delete(credential.KeyGoogleToken)
}

// Login runs the browser authorization code flow. It listens for the
// redirect on the configured localhost port, passes the consent URL to
// openURL and stores the exchanged token.
func (g *Google) Login(ctx context.Context, timeout time.Duration, openURL func(string)) error {
	redirect, err := url.Parse(g.config.RedirectURL)
	if err != nil {
		return fmt.Errorf("parsing redirect url: %w", err)
	}
	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", redirect.Host, err)
	}
	defer listener.Close()

	state := uuid.New().String()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != redirect.Path {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				sendErr(errCh, errors.New("oauth state mismatch"))
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "authorization code not found", http.StatusBadRequest)
				sendErr(errCh, errors.New("authorization code not found in redirect"))
				return
			}
			fmt.Fprintln(w, "Signed in. You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, fmt.Errorf("callback server: %w", err))
		}
	}()
	defer server.Shutdown(context.WithoutCancel(ctx))

	openURL(g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")))

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case code := <-codeCh:
		tok, err := g.config.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("exchanging authorization code: %w", err)
		}
		return g.saveToken(tok)
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

func (g *Google) loadToken() (*oauth2.Token, error) {
	raw, err := g.creds.Get(credential.KeyGoogleToken)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, fmt.Errorf("decoding stored token: %w", err)
	}
	return tok, nil
}

func (g *Google) saveToken(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return g.creds.Set(credential.KeyGoogleToken, string(raw))
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
