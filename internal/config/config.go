// Package config resolves the data directory, remote credentials, and
// runtime settings.
//
// Settings come from three layers, later layers overriding earlier
// ones: built-in defaults, the credentials.toml file in the data
// directory, and TASKLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "taskly"

	// CredentialsFile holds the remote endpoint credentials.
	CredentialsFile = "credentials.toml"

	cacheFile     = "cache.db"
	signalFile    = "signals.jsonl"
	daemonLogFile = "daemon.log"
)

// Config holds resolved settings for one run.
type Config struct {
	// Dir is the data directory. Cache, signal journal, and daemon log
	// live under it.
	Dir string `toml:"-"`

	// SupabaseURL is the project base URL for the REST and auth
	// endpoints.
	SupabaseURL string `toml:"supabase_url"`

	// SupabaseKey is the project's anon API key.
	SupabaseKey string `toml:"supabase_key"`

	// Backend selects the remote store implementation: "rest" or
	// "libsql".
	Backend string `toml:"backend"`

	// LibSQLURL is the database URL when Backend is "libsql".
	LibSQLURL string `toml:"libsql_url"`

	// DashboardAddr is the listen address for the dashboard server.
	DashboardAddr string `toml:"dashboard_addr"`

	// SyncInterval is the daemon's periodic full-cycle interval.
	SyncInterval time.Duration `toml:"sync_interval"`

	// Debug enables verbose logging.
	Debug bool `toml:"debug"`
}

// DefaultDir returns the default data directory. Uses XDG_DATA_HOME if
// set, otherwise $HOME/.local/share.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// Load resolves the configuration for the data directory at dir. If dir
// is empty, DefaultDir is used. A missing credentials file is not an
// error; the result is a guest-only configuration.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir()
	}

	cfg := &Config{
		Dir:           dir,
		Backend:       "rest",
		DashboardAddr: "localhost:8571",
		SyncInterval:  5 * time.Minute,
	}

	credPath := filepath.Join(dir, CredentialsFile)
	if _, err := os.Stat(credPath); err == nil {
		if _, err := toml.DecodeFile(credPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", credPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", credPath, err)
	}

	applyEnv(cfg)

	if cfg.Backend != "rest" && cfg.Backend != "libsql" {
		return nil, fmt.Errorf("unknown backend %q (want rest or libsql)", cfg.Backend)
	}
	return cfg, nil
}

// applyEnv overlays TASKLY_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("TASKLY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bind := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	bind("supabase_url", &cfg.SupabaseURL)
	bind("supabase_key", &cfg.SupabaseKey)
	bind("backend", &cfg.Backend)
	bind("libsql_url", &cfg.LibSQLURL)
	bind("dashboard_addr", &cfg.DashboardAddr)

	if s := v.GetString("sync_interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			cfg.SyncInterval = d
		}
	}
	if s := v.GetString("debug"); s != "" {
		cfg.Debug = v.GetBool("debug")
	}
}

// EnsureDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// CachePath returns the location of the cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.Dir, cacheFile)
}

// SignalPath returns the location of the signal journal.
func (c *Config) SignalPath() string {
	return filepath.Join(c.Dir, signalFile)
}

// DaemonLogPath returns the location of the daemon log file.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Dir, daemonLogFile)
}

// CloudConfigured reports whether credentials exist for any remote
// backend.
func (c *Config) CloudConfigured() bool {
	if c.Backend == "libsql" {
		return c.LibSQLURL != ""
	}
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

// WriteCredentials persists the remote credential fields back to the
// credentials file with owner-only permissions.
func (c *Config) WriteCredentials() error {
	if err := c.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	path := filepath.Join(c.Dir, CredentialsFile)
	if err := os.WriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}
