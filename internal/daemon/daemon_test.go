package daemon

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tasklyapp/taskly/internal/cache"
	"github.com/tasklyapp/taskly/internal/signal"
	"github.com/tasklyapp/taskly/internal/syncer"
	"github.com/tasklyapp/taskly/internal/task"
	"github.com/tasklyapp/taskly/internal/testutil"
)

func setupDaemon(t *testing.T) (*Daemon, *cache.Cache, *testutil.FakeStore, *signal.Bus) {
	t.Helper()

	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	logger := log.New(os.Stderr, "[test] ", log.LstdFlags)
	store := testutil.NewFakeStore()
	bus := signal.NewBus(filepath.Join(dir, "signals.jsonl"), logger)
	engine := syncer.New(c, store, "user-1", logger, nil)

	d, err := New(engine, bus, &Config{
		SyncInterval:     time.Hour,
		DebounceInterval: 20 * time.Millisecond,
		Logger:           logger,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, c, store, bus
}

func TestNewValidatesArgs(t *testing.T) {
	if _, err := New(nil, signal.NewBus("x", nil), nil); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(&syncer.Engine{}, nil, nil); err == nil {
		t.Error("expected error for nil bus")
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestInitialCyclePushesLocalState(t *testing.T) {
	d, c, store, _ := setupDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	if err := c.SetCurrent(ctx, []task.Task{{ID: 1, Text: "local", DateCreated: now}}); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor(t, 5*time.Second, func() bool {
		return len(store.Records()) == 1
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	recs := store.Records()
	if recs[0].Text != "local" || recs[0].TaskDate != task.Today() {
		t.Errorf("unexpected pushed record: %+v", recs[0])
	}
}

func TestRefreshSignalTriggersPush(t *testing.T) {
	d, c, store, bus := setupDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// Let the initial cycle settle, then add a task and signal.
	waitFor(t, 5*time.Second, func() bool { return store.SelectCalls() >= 1 })

	now := time.Now()
	if err := c.SetCurrent(ctx, []task.Task{{ID: 2, Text: "added later", DateCreated: now}}); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if err := bus.Publish(signal.KindRefresh); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		recs := store.Records()
		return len(recs) == 1 && recs[0].Text == "added later"
	})

	cancel()
	<-done
}
