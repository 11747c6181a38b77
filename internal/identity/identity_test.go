package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/nhle/taskboard/internal/credential"
)

func newCreds() *credential.Store {
	return credential.New(keyring.NewArrayKeyring(nil))
}

func TestName(t *testing.T) {
	assert.Equal(t, "Ana", Identity{DisplayName: "Ana", Email: "ana@example.com"}.Name())
	assert.Equal(t, "ana@example.com", Identity{Email: "ana@example.com"}.Name())
	assert.Equal(t, "Anonymous User", Identity{ID: "x"}.Name())
}

func TestAnonymousIsStable(t *testing.T) {
	creds := newCreds()
	a := &Anonymous{Creds: creds}

	first, err := a.SignIn(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Anonymous)
	assert.NotEmpty(t, first.ID)

	second, err := (&Anonymous{Creds: creds, DisplayName: "Guest"}).SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Guest", second.Name())
}

type failingProvider struct{ err error }

func (f failingProvider) SignIn(context.Context) (Identity, error) { return Identity{}, f.err }

func TestSessionFallsBack(t *testing.T) {
	s := NewSession(failingProvider{ErrNoToken}, &Anonymous{Creds: newCreds()}, nil)

	id, err := s.SignIn(context.Background())
	require.NoError(t, err)
	assert.True(t, id.Anonymous)
	assert.Equal(t, id, s.Current())

	require.NoError(t, s.SignOut())
	assert.Equal(t, Identity{}, s.Current())
}

func TestSessionWithoutFallback(t *testing.T) {
	boom := errors.New("offline")
	s := NewSession(failingProvider{boom}, nil, nil)

	_, err := s.SignIn(context.Background())
	assert.ErrorIs(t, err, boom)
}

func userinfoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"g-42","name":"Ana Lima","email":"ana@example.com"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleSignIn(t *testing.T) {
	srv := userinfoServer(t)
	creds := newCreds()
	raw, err := json.Marshal(&oauth2.Token{AccessToken: "access-1", TokenType: "Bearer"})
	require.NoError(t, err)
	require.NoError(t, creds.Set(credential.KeyGoogleToken, string(raw)))

	g := NewGoogle(&oauth2.Config{}, creds, option.WithEndpoint(srv.URL+"/"))
	id, err := g.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "g-42", DisplayName: "Ana Lima", Email: "ana@example.com"}, id)

	require.NoError(t, g.Forget())
	_, err = g.SignIn(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestGoogleSessionFallsBackWithoutToken(t *testing.T) {
	creds := newCreds()
	s := NewSession(NewGoogle(&oauth2.Config{}, creds), &Anonymous{Creds: creds}, nil)

	id, err := s.SignIn(context.Background())
	require.NoError(t, err)
	assert.True(t, id.Anonymous)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestGoogleLogin(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "the-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-1","token_type":"Bearer","refresh_token":"refresh-1"}`)
	}))
	defer tokenSrv.Close()

	creds := newCreds()
	g := NewGoogle(&oauth2.Config{
		ClientID:    "client",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenSrv.URL},
		RedirectURL: fmt.Sprintf("http://127.0.0.1:%d/oauth2callback", freePort(t)),
	}, creds)

	openURL := func(authURL string) {
		u, err := url.Parse(authURL)
		if err != nil {
			t.Error(err)
			return
		}
		state := u.Query().Get("state")
		go func() {
			resp, err := http.Get(g.config.RedirectURL + "?code=the-code&state=" + url.QueryEscape(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	require.NoError(t, g.Login(context.Background(), 5*time.Second, openURL))

	tok, err := g.loadToken()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
}

func TestGoogleLoginRejectsBadState(t *testing.T) {
	g := NewGoogle(&oauth2.Config{
		Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: "http://127.0.0.1:1/token"},
		RedirectURL: fmt.Sprintf("http://127.0.0.1:%d/oauth2callback", freePort(t)),
	}, newCreds())

	openURL := func(string) {
		go func() {
			resp, err := http.Get(g.config.RedirectURL + "?code=x&state=forged")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	err := g.Login(context.Background(), 5*time.Second, openURL)
	assert.ErrorContains(t, err, "state mismatch")
}
