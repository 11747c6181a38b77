package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreConfig locates the document store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in RAM.
	Path string `mapstructure:"path" yaml:"path"`

	// AppID namespaces all board data inside the store.
	AppID string `mapstructure:"app_id" yaml:"app_id"`
}

// IdentityConfig selects how the current user is established.
type IdentityConfig struct {
	// Provider is "google" or "anonymous". Google falls back to anonymous
	// when no usable token is available.
	Provider string `mapstructure:"provider" yaml:"provider"`

	// DisplayName and Email override the profile of an anonymous identity.
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
	Email       string `mapstructure:"email" yaml:"email"`

	// ClientSecretsFile is the Google OAuth client JSON downloaded from the
	// cloud console.
	ClientSecretsFile string `mapstructure:"client_secrets_file" yaml:"client_secrets_file"`
	RedirectPort      int    `mapstructure:"redirect_port" yaml:"redirect_port"`
	AuthTimeoutSec    int    `mapstructure:"auth_timeout_sec" yaml:"auth_timeout_sec"`
}

// AuthTimeout returns the browser sign-in timeout.
func (c IdentityConfig) AuthTimeout() time.Duration {
	return time.Duration(c.AuthTimeoutSec) * time.Second
}

// MailboxConfig configures the IMAP notification archive.
type MailboxConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS     bool   `mapstructure:"tls" yaml:"tls"`
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`
	From    string `mapstructure:"from" yaml:"from"`
}

// Address returns host:port.
func (c MailboxConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NotificationConfig controls how alerts are delivered.
type NotificationConfig struct {
	ToastSeconds int           `mapstructure:"toast_seconds" yaml:"toast_seconds"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
	Mailbox      MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
}

// ToastDuration returns how long a toast stays on screen.
func (c NotificationConfig) ToastDuration() time.Duration {
	return time.Duration(c.ToastSeconds) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address        string   `mapstructure:"address" yaml:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// CascadeConfig bounds cascade deletes.
type CascadeConfig struct {
	// MaxConcurrency caps the number of task cascades run at once while
	// deleting a project.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`

	// File receives log output. Empty discards logs in the TUI and writes
	// to stderr for the other commands.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Store         StoreConfig        `mapstructure:"store" yaml:"store"`
	Identity      IdentityConfig     `mapstructure:"identity" yaml:"identity"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Cascade       CascadeConfig      `mapstructure:"cascade" yaml:"cascade"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
}

// EnvPrefix prefixes environment variables that override config keys,
// e.g. TASKBOARD_STORE_PATH.
const EnvPrefix = "TASKBOARD"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultStorePath returns the default database location next to the
// configuration file.
func DefaultStorePath() string {
	return filepath.Join(configDir(), "taskboard.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskboard")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Store: StoreConfig{
			Path:  DefaultStorePath(),
			AppID: "taskboard",
		},
		Identity: IdentityConfig{
			Provider:       "anonymous",
			RedirectPort:   8085,
			AuthTimeoutSec: 120,
		},
		Notifications: NotificationConfig{
			ToastSeconds: 5,
			QueueSize:    64,
			Mailbox: MailboxConfig{
				Port:    993,
				TLS:     true,
				Mailbox: "Taskboard",
			},
		},
		Server: ServerConfig{
			Address:        "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Cascade: CascadeConfig{
			MaxConcurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.app_id", d.Store.AppID)
	v.SetDefault("identity.provider", d.Identity.Provider)
	v.SetDefault("identity.display_name", "")
	v.SetDefault("identity.email", "")
	v.SetDefault("identity.client_secrets_file", "")
	v.SetDefault("identity.redirect_port", d.Identity.RedirectPort)
	v.SetDefault("identity.auth_timeout_sec", d.Identity.AuthTimeoutSec)
	v.SetDefault("notifications.toast_seconds", d.Notifications.ToastSeconds)
	v.SetDefault("notifications.queue_size", d.Notifications.QueueSize)
	v.SetDefault("notifications.mailbox.enabled", false)
	v.SetDefault("notifications.mailbox.host", "")
	v.SetDefault("notifications.mailbox.port", d.Notifications.Mailbox.Port)
	v.SetDefault("notifications.mailbox.username", "")
	v.SetDefault("notifications.mailbox.tls", d.Notifications.Mailbox.TLS)
	v.SetDefault("notifications.mailbox.mailbox", d.Notifications.Mailbox.Mailbox)
	v.SetDefault("notifications.mailbox.from", "")
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("cascade.max_concurrency", d.Cascade.MaxConcurrency)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Missing files yield the defaults. Environment variables with the
// TASKBOARD_ prefix override file values in both cases.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Notifications.ToastSeconds <= 0 {
		cfg.Notifications.ToastSeconds = 5
	}
	if cfg.Notifications.QueueSize <= 0 {
		cfg.Notifications.QueueSize = 64
	}
	if cfg.Cascade.MaxConcurrency <= 0 {
		cfg.Cascade.MaxConcurrency = 1
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("store", cfg.Store)
	v.Set("identity", cfg.Identity)
	v.Set("notifications", cfg.Notifications)
	v.Set("server", cfg.Server)
	v.Set("cascade", cfg.Cascade)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
