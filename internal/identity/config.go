package identity

import (
	"fmt"
	"log/slog"

	"github.com/nhle/taskboard/internal/model"
)

// FromConfig builds the session described by cfg. The anonymous provider is
// always the fallback.
func FromConfig(cfg model.IdentityConfig, creds Credentials, log *slog.Logger) (*Session, error) {
	anon := &Anonymous{Creds: creds, DisplayName: cfg.DisplayName, Email: cfg.Email}

	switch cfg.Provider {
	case "", "anonymous":
		return NewSession(anon, nil, log), nil
	case "google":
		g, err := GoogleFromConfig(cfg, creds)
		if err != nil {
			return nil, err
		}
		return NewSession(g, anon, log), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.Provider)
	}
}

// GoogleFromConfig builds the Google provider from cfg.
func GoogleFromConfig(cfg model.IdentityConfig, creds Credentials) (*Google, error) {
	if cfg.ClientSecretsFile == "" {
		return nil, fmt.Errorf("identity.client_secrets_file is required for the google provider")
	}
	oc, err := LoadGoogleConfig(cfg.ClientSecretsFile, cfg.RedirectPort)
	if err != nil {
		return nil, err
	}
	return NewGoogle(oc, creds), nil
}
