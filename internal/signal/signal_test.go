package signal

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals.jsonl")
	return NewBus(path, log.New(os.Stderr, "[test] ", log.LstdFlags))
}

func TestPublishAppendsLines(t *testing.T) {
	bus := newTestBus(t)

	if err := bus.Publish(KindRefresh); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := bus.Publish(KindForceRefresh); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	data, err := os.ReadFile(bus.Path())
	if err != nil {
		t.Fatalf("failed to read journal: %v", err)
	}
	lines := 0
	for _, c := range data {
		if c == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 journal lines, got %d", lines)
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(KindForceRefresh); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != KindForceRefresh {
			t.Errorf("expected %s, got %s", KindForceRefresh, ev.Kind)
		}
		if ev.TS.IsZero() {
			t.Error("expected a timestamp on the event")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeSkipsHistory(t *testing.T) {
	bus := newTestBus(t)

	// Events published before the subscription must not be replayed.
	if err := bus.Publish(KindRefresh); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(KindForceRefresh); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != KindForceRefresh {
			t.Errorf("expected only the post-subscribe event, got %s", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected channel to close without delivering events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
