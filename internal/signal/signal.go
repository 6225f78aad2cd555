// Package signal is the cross-surface refresh channel.
//
// Surfaces coordinate through an append-only journal of timestamped
// events. Publishing appends one JSON line; subscribers tail the journal
// via fsnotify and receive typed events. Delivery is fire-and-forget: a
// surface that isn't listening simply misses the signal, and the next
// sync cycle heals any staleness.
package signal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind identifies what a subscriber should do about an event.
type Kind string

const (
	// KindRefresh asks other surfaces to reload their view from the cache.
	KindRefresh Kind = "refresh"

	// KindForceRefresh asks other surfaces to reload from the remote store.
	KindForceRefresh Kind = "force_refresh"
)

// Event is one journal entry.
type Event struct {
	Kind Kind      `json:"kind"`
	TS   time.Time `json:"ts"`
}

// Bus publishes and subscribes to refresh events over a shared journal file.
type Bus struct {
	path   string
	logger *log.Logger
}

// NewBus creates a bus over the journal at path. If logger is nil, a
// default logger writing to stderr is used.
func NewBus(path string, logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(os.Stderr, "[signal] ", log.LstdFlags)
	}
	return &Bus{path: path, logger: logger}
}

// Path returns the journal file location.
func (b *Bus) Path() string {
	return b.path
}

// Publish appends an event with the current timestamp to the journal.
func (b *Bus) Publish(kind Kind) error {
	return b.publish(Event{Kind: kind, TS: time.Now()})
}

func (b *Bus) publish(ev Event) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("failed to create signal directory: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open signal journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append signal: %w", err)
	}
	return nil
}

// Subscribe tails the journal and delivers events appended after the
// subscription started. The channel is closed when ctx is cancelled.
// Slow consumers drop events rather than block the watcher.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create signal directory: %w", err)
	}

	// Ensure the journal exists so we can watch and seek it.
	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal journal: %w", err)
	}

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to seek signal journal: %w", err)
	}
	_ = f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch signal directory: %w", err)
	}

	events := make(chan Event, 16)
	go b.tail(ctx, watcher, offset, events)
	return events, nil
}

func (b *Bus) tail(ctx context.Context, watcher *fsnotify.Watcher, offset int64, out chan<- Event) {
	defer close(out)
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(b.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			offset = b.drain(ctx, offset, out)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.logger.Printf("Watcher error: %v", err)
		}
	}
}

// drain reads journal lines appended past offset and emits them.
func (b *Bus) drain(ctx context.Context, offset int64, out chan<- Event) int64 {
	f, err := os.Open(b.path)
	if err != nil {
		b.logger.Printf("Failed to open journal: %v", err)
		return offset
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		b.logger.Printf("Failed to seek journal: %v", err)
		return offset
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		offset += int64(len(line)) + 1

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			// Torn write; skip the line.
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return offset
		default:
			b.logger.Printf("Warning: subscriber full, dropping %s signal", ev.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		b.logger.Printf("Failed to scan journal: %v", err)
	}
	return offset
}
