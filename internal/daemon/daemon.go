// Package daemon provides the background surface that keeps the local
// cache and remote store converged.
//
// The daemon:
// 1. Subscribes to the signal journal for refresh events
// 2. Debounces bursts and runs a sync cycle for today
// 3. Periodically runs a full cycle regardless of signals
// 4. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tasklyapp/taskly/internal/signal"
	"github.com/tasklyapp/taskly/internal/syncer"
	"github.com/tasklyapp/taskly/internal/task"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often to run a full cycle without being asked.
	SyncInterval time.Duration

	// DebounceInterval is how long to wait before acting on signals.
	// This batches rapid updates together.
	DebounceInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 250 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon listens for signals and drives sync cycles.
type Daemon struct {
	engine *syncer.Engine
	bus    *signal.Bus
	config *Config

	pending   map[signal.Kind]time.Time // kind -> last seen
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance. Use Start() to begin syncing.
func New(engine *syncer.Engine, bus *signal.Bus, config *Config) (*Daemon, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if bus == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:  engine,
		bus:     bus,
		config:  config,
		pending: make(map[signal.Kind]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon performs an initial full cycle, then reacts to journal
// signals and the periodic timer. This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.fullCycle(ctx); err != nil {
		d.config.Logger.Printf("Warning: initial cycle failed: %v", err)
	}

	events, err := d.bus.Subscribe(d.ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to signals: %w", err)
	}

	d.wg.Add(3)
	go d.watchSignals(events)
	go d.processPending()
	go d.periodicSync()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")
	d.cancel()
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchSignals queues journal events for debounced processing.
func (d *Daemon) watchSignals(events <-chan signal.Event) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.pendingMu.Lock()
			d.pending[ev.Kind] = time.Now()
			d.pendingMu.Unlock()
		}
	}
}

// processPending drains queued signals once they have been quiet for
// the debounce interval.
func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.drainPending()
		}
	}
}

func (d *Daemon) drainPending() {
	d.pendingMu.Lock()
	var force, refresh bool
	now := time.Now()
	for kind, seen := range d.pending {
		if now.Sub(seen) < d.config.DebounceInterval {
			continue
		}
		switch kind {
		case signal.KindForceRefresh:
			force = true
		case signal.KindRefresh:
			refresh = true
		}
		delete(d.pending, kind)
	}
	d.pendingMu.Unlock()

	if !force && !refresh {
		return
	}

	if force {
		if err := d.fullCycle(d.ctx); err != nil {
			d.config.Logger.Printf("Warning: forced cycle failed: %v", err)
		}
		return
	}

	// A plain refresh means the cache already holds the latest local
	// state; pushing the diff is enough.
	if _, err := d.engine.Push(d.ctx, task.Today()); err != nil {
		d.config.Logger.Printf("Warning: push failed: %v", err)
	}
}

// periodicSync runs a full cycle on the configured interval.
func (d *Daemon) periodicSync() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.fullCycle(d.ctx); err != nil {
				d.config.Logger.Printf("Warning: periodic cycle failed: %v", err)
			}
		}
	}
}

// fullCycle pushes today's local state, then reloads the merged result.
func (d *Daemon) fullCycle(ctx context.Context) error {
	today := task.Today()

	stats, err := d.engine.Push(ctx, today)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	if !stats.Zero() {
		d.config.Logger.Printf("Cycle pushed %d inserts, %d updates, %d deletes",
			stats.Inserted, stats.Updated, stats.Deleted)
	}

	if _, err := d.engine.Load(ctx, today); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	return nil
}
