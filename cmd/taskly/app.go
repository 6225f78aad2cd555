package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/tasklyapp/taskly/internal/auth"
	"github.com/tasklyapp/taskly/internal/cache"
	"github.com/tasklyapp/taskly/internal/config"
	"github.com/tasklyapp/taskly/internal/remote"
	"github.com/tasklyapp/taskly/internal/signal"
	"github.com/tasklyapp/taskly/internal/syncer"
)

// app bundles the pieces every command needs: resolved config, the open
// cache, and lazily-built remote plumbing.
type app struct {
	cfg    *config.Config
	cache  *cache.Cache
	logger *log.Logger

	libsql *remote.LibSQLStore // kept for Close
}

// openApp resolves config and opens the cache. Callers must Close.
func openApp() (*app, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	c, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	logWriter := os.Stderr
	logger := log.New(logWriter, "[taskly] ", log.LstdFlags)
	if !cfg.Debug {
		logger.SetOutput(discard{})
	}

	return &app{cfg: cfg, cache: c, logger: logger}, nil
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (a *app) Close() {
	if a.libsql != nil {
		_ = a.libsql.Close()
	}
	_ = a.cache.Close()
}

// bus returns the shared signal bus over the journal in the data dir.
func (a *app) bus() *signal.Bus {
	return signal.NewBus(a.cfg.SignalPath(), a.logger)
}

// authClient returns the auth client, or an error when no cloud
// credentials are configured.
func (a *app) authClient() (*auth.Client, error) {
	if a.cfg.SupabaseURL == "" || a.cfg.SupabaseKey == "" {
		return nil, errors.New("no cloud credentials configured; run 'taskly login --url <project-url> --key <anon-key>' first")
	}
	return auth.NewClient(a.cfg.SupabaseURL, a.cfg.SupabaseKey, a.cache), nil
}

// session returns the stored session, refreshing it when expired.
func (a *app) session(ctx context.Context) (auth.Session, error) {
	client, err := a.authClient()
	if err != nil {
		return auth.Session{}, err
	}
	sess, err := client.CurrentSession(ctx)
	if err != nil {
		return auth.Session{}, err
	}
	if sess.Expired() {
		sess, err = client.Refresh(ctx)
		if err != nil {
			return auth.Session{}, fmt.Errorf("session expired and refresh failed: %w", err)
		}
	}
	return sess, nil
}

// store builds the remote store for the configured backend, scoped to
// the given session.
func (a *app) store(sess auth.Session) (remote.Store, error) {
	switch a.cfg.Backend {
	case "libsql":
		s, err := remote.OpenLibSQL(a.cfg.LibSQLURL, remote.DefaultTable)
		if err != nil {
			return nil, fmt.Errorf("failed to open libsql backend: %w", err)
		}
		a.libsql = s
		return s, nil
	default:
		return remote.NewRESTStore(a.cfg.SupabaseURL, a.cfg.SupabaseKey, remote.DefaultTable,
			remote.WithBearerToken(sess.AccessToken)), nil
	}
}

// engine builds the sync engine for the current mode. In guest mode the
// engine has no remote store and works cache-only.
func (a *app) engine(ctx context.Context) (*syncer.Engine, error) {
	mode, err := a.cache.Mode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read mode: %w", err)
	}

	if mode != cache.ModeCloud || !a.cfg.CloudConfigured() {
		return syncer.New(a.cache, nil, "", a.logger, a.bus()), nil
	}

	sess, err := a.session(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			// Cloud mode without a session degrades to guest.
			return syncer.New(a.cache, nil, "", a.logger, a.bus()), nil
		}
		return nil, err
	}

	store, err := a.store(sess)
	if err != nil {
		return nil, err
	}
	return syncer.New(a.cache, store, sess.User.ID, a.logger, a.bus()), nil
}

// sessionBlob re-encodes the session for display.
func sessionBlob(sess auth.Session) string {
	b, _ := json.MarshalIndent(sess.User, "", "  ")
	return string(b)
}
