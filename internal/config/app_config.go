package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment
// variables. Per-user notification preferences live in the user records, not
// here; this is deployment-wide wiring only.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8720.
	Port int `envconfig:"PORT" default:"8720"`

	// DataDir is the root data directory. Defaults to ~/.visitwatch.
	DataDir string `envconfig:"VISITWATCH_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// TickIntervalMinutes is how often the digest scheduler wakes up.
	// A deployment parameter, independent of the delivery-window tolerance.
	TickIntervalMinutes int `envconfig:"VISITWATCH_TICK_INTERVAL" default:"2"`

	// WindowToleranceMinutes is the half-width of the delivery window: a
	// digest is due when now is within this many minutes of the user's
	// configured delivery time.
	WindowToleranceMinutes int `envconfig:"VISITWATCH_WINDOW_TOLERANCE" default:"5"`

	// SwapWindowDays bounds how far apart two dates may be for a removed and
	// added visit at the same store to collapse into one rebooking change.
	// Zero disables collapsing.
	SwapWindowDays int `envconfig:"VISITWATCH_SWAP_WINDOW_DAYS" default:"7"`

	// SMTP transport credentials, shared across users.
	SMTPHost       string `envconfig:"VISITWATCH_SMTP_HOST"`
	SMTPPort       int    `envconfig:"VISITWATCH_SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"VISITWATCH_SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"VISITWATCH_SMTP_PASSWORD"`
	SMTPFromAddr   string `envconfig:"VISITWATCH_SMTP_FROM"`
	SMTPEncryption string `envconfig:"VISITWATCH_SMTP_ENCRYPTION" default:"starttls"` // "none", "starttls", "ssl_tls"

	// PushoverToken is the application token for the push channel. Per-user
	// recipient keys live in the user records.
	PushoverToken string `envconfig:"VISITWATCH_PUSHOVER_TOKEN"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.visitwatch if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".visitwatch")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TickInterval returns the digest scheduler wake-up interval.
func (c *AppConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMinutes) * time.Minute
}

// WindowTolerance returns the delivery-window half-width.
func (c *AppConfig) WindowTolerance() time.Duration {
	return time.Duration(c.WindowToleranceMinutes) * time.Minute
}

// UsersDir returns the path to the user records directory.
func (c *AppConfig) UsersDir() string {
	return filepath.Join(c.DataDir, "users")
}

// SnapshotsDir returns the path to the per-user snapshot pairs.
func (c *AppConfig) SnapshotsDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// DigestsDir returns the path to the per-user digest queues.
func (c *AppConfig) DigestsDir() string {
	return filepath.Join(c.DataDir, "digests")
}

// RegistryDir returns the path to the completed-job registry maintained by
// the external closeout process.
func (c *AppConfig) RegistryDir() string {
	return filepath.Join(c.DataDir, "registry")
}

// LogDir returns the path to the log directory.
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite delivery-log database.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "visitwatch.db")
}
