// Package cache provides the durable local store for day-partitioned tasks.
//
// The cache is an embedded SQLite database holding a small key-value table.
// Keys mirror the layout the UI surfaces rely on:
//
//   - taskly:current            today's tasks (fast path)
//   - taskly:day:YYYY-MM-DD     one historical partition per date
//   - taskly:mode               guest/cloud flag
//   - taskly:session            authenticated session blob
//
// The current key and today's dated key are kept redundant by construction:
// SetCurrent writes both inside one transaction. Reads of a missing day
// return an empty slice, never an error.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tasklyapp/taskly/internal/task"
)

const (
	keyCurrent   = "taskly:current"
	keyMode      = "taskly:mode"
	keySession   = "taskly:session"
	dayKeyPrefix = "taskly:day:"
)

// Mode indicates whether the store operates locally or against the cloud.
type Mode string

const (
	// ModeGuest is fully local, unauthenticated operation.
	ModeGuest Mode = "guest"
	// ModeCloud reconciles with the remote store.
	ModeCloud Mode = "cloud"
)

// Cache wraps the embedded SQLite connection backing local persistence.
type Cache struct {
	conn *sql.DB
	path string
}

// Open creates a cache database at the specified path.
//
// The database is opened in WAL mode for concurrent access from multiple
// surfaces. The caller MUST call Close() when done.
func Open(path string) (*Cache, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	c := &Cache{conn: conn, path: path}

	if _, err := c.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := c.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := c.initSchema(); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes the database connection after checkpointing the WAL.
func (c *Cache) Close() error {
	if c.conn == nil {
		return nil
	}
	if _, err := c.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	c.conn = nil
	return nil
}

// Path returns the database file location.
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := c.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return nil
}

func dayKey(day string) string {
	return dayKeyPrefix + day
}

func (c *Cache) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

func (c *Cache) set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := c.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (c *Cache) remove(ctx context.Context, key string) error {
	if _, err := c.conn.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

// Day returns the tasks stored under the given day partition.
// A missing partition yields an empty slice.
func (c *Cache) Day(ctx context.Context, day string) ([]task.Task, error) {
	return c.tasksAt(ctx, dayKey(day))
}

// SetDay overwrites the given day partition.
// Duplicate IDs are stored as given; the cache does not deduplicate.
func (c *Cache) SetDay(ctx context.Context, day string, tasks []task.Task) error {
	data, err := marshalTasks(tasks)
	if err != nil {
		return err
	}
	return c.set(ctx, dayKey(day), data)
}

// Current returns today's tasks from the fixed current key.
func (c *Cache) Current(ctx context.Context) ([]task.Task, error) {
	return c.tasksAt(ctx, keyCurrent)
}

// SetCurrent overwrites today's tasks, mirroring the write to today's
// dated historical key in the same transaction.
func (c *Cache) SetCurrent(ctx context.Context, tasks []task.Task) error {
	data, err := marshalTasks(tasks)
	if err != nil {
		return err
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	for _, key := range []string{keyCurrent, dayKey(task.Today())} {
		if _, err := tx.ExecContext(ctx, query, key, data); err != nil {
			return fmt.Errorf("failed to write key %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit current write: %w", err)
	}
	return nil
}

// RemoveDay deletes a day partition.
func (c *Cache) RemoveDay(ctx context.Context, day string) error {
	return c.remove(ctx, dayKey(day))
}

// Days lists every historical day partition present, oldest first.
func (c *Cache) Days(ctx context.Context) ([]string, error) {
	rows, err := c.conn.QueryContext(ctx,
		"SELECT key FROM kv WHERE key LIKE ? ORDER BY key ASC", dayKeyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list day partitions: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan day key: %w", err)
		}
		days = append(days, strings.TrimPrefix(key, dayKeyPrefix))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating day keys: %w", err)
	}

	sort.Strings(days)
	return days, nil
}

// Mode returns the persisted mode flag. A missing flag defaults to guest.
func (c *Cache) Mode(ctx context.Context) (Mode, error) {
	value, ok, err := c.get(ctx, keyMode)
	if err != nil {
		return ModeGuest, err
	}
	if !ok || Mode(value) != ModeCloud {
		return ModeGuest, nil
	}
	return ModeCloud, nil
}

// SetMode persists the mode flag.
func (c *Cache) SetMode(ctx context.Context, m Mode) error {
	return c.set(ctx, keyMode, string(m))
}

// Session returns the stored session blob, or (nil, nil) when absent.
func (c *Cache) Session(ctx context.Context) (json.RawMessage, error) {
	value, ok, err := c.get(ctx, keySession)
	if err != nil || !ok {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// SetSession persists the session blob.
func (c *Cache) SetSession(ctx context.Context, blob json.RawMessage) error {
	return c.set(ctx, keySession, string(blob))
}

// ClearSession removes the stored session.
func (c *Cache) ClearSession(ctx context.Context) error {
	return c.remove(ctx, keySession)
}

func (c *Cache) tasksAt(ctx context.Context, key string) ([]task.Task, error) {
	value, ok, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []task.Task{}, nil
	}

	var tasks []task.Task
	if err := json.Unmarshal([]byte(value), &tasks); err != nil {
		return nil, fmt.Errorf("corrupt task list at %s: %w", key, err)
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

func marshalTasks(tasks []task.Task) (string, error) {
	if tasks == nil {
		tasks = []task.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tasks: %w", err)
	}
	return string(data), nil
}
