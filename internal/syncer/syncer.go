package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/tasklyapp/taskly/internal/cache"
	"github.com/tasklyapp/taskly/internal/remote"
	"github.com/tasklyapp/taskly/internal/signal"
	"github.com/tasklyapp/taskly/internal/task"
)

// Stats counts the remote writes one push cycle issued.
type Stats struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Zero reports whether the cycle issued no remote writes.
func (s Stats) Zero() bool {
	return s.Inserted == 0 && s.Updated == 0 && s.Deleted == 0
}

// Engine runs sync cycles between the local cache and a remote store.
type Engine struct {
	cache  *cache.Cache
	store  remote.Store
	userID string
	logger *log.Logger
	bus    *signal.Bus
}

// New creates an Engine for the given user session.
//
// The store may be nil for guest mode; Load then reads the cache only and
// Push is a no-op. If logger is nil, a default logger writing to stderr
// is used. The bus is optional; when present, completed saves broadcast
// a refresh signal to other surfaces.
func New(c *cache.Cache, store remote.Store, userID string, logger *log.Logger, bus *signal.Bus) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Engine{
		cache:  c,
		store:  store,
		userID: userID,
		logger: logger,
		bus:    bus,
	}
}

// CloudMode reports whether the engine has a remote store to reconcile with.
func (e *Engine) CloudMode() bool {
	return e.store != nil
}

// Load returns the day's tasks, preferring the remote copy.
//
// On a successful remote fetch the result fully replaces the local day
// partition and is written back to the cache. On remote failure the
// cached partition is returned unchanged (local-only fallback). In guest
// mode the cache is read directly.
func (e *Engine) Load(ctx context.Context, day string) ([]task.Task, error) {
	if !e.CloudMode() {
		return e.cache.Day(ctx, day)
	}

	recs, err := e.store.Select(ctx, remote.ByUserAndDay(e.userID, day))
	if err != nil {
		e.logger.Printf("Remote fetch failed for %s, falling back to cache: %v", day, err)
		return e.cache.Day(ctx, day)
	}

	tasks := tasksFromRecords(recs)
	if err := e.writeDay(ctx, day, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Save overwrites the local day partition and, in cloud mode, pushes the
// diff to the remote store. The local write always happens; a failed push
// degrades to local-only and the next cycle retries the full diff.
func (e *Engine) Save(ctx context.Context, day string, tasks []task.Task) error {
	if err := e.writeDay(ctx, day, tasks); err != nil {
		return err
	}

	if e.CloudMode() {
		if _, err := e.Push(ctx, day); err != nil {
			e.logger.Printf("Push failed for %s, continuing local-only: %v", day, err)
		}
	}

	if e.bus != nil {
		if err := e.bus.Publish(signal.KindRefresh); err != nil {
			e.logger.Printf("Failed to publish refresh signal: %v", err)
		}
	}
	return nil
}

// Push reconciles the remote table with the local day partition
// (local-wins). It aborts on the first remote failure; the remaining
// diff is picked up by the next cycle.
func (e *Engine) Push(ctx context.Context, day string) (Stats, error) {
	var stats Stats
	if !e.CloudMode() {
		return stats, nil
	}

	recs, err := e.store.Select(ctx, remote.ByUserAndDay(e.userID, day))
	if err != nil {
		return stats, fmt.Errorf("fetch remote for %s: %w", day, err)
	}

	local, err := e.cache.Day(ctx, day)
	if err != nil {
		return stats, fmt.Errorf("read local partition %s: %w", day, err)
	}

	byTaskID := make(map[int64]remote.Record, len(recs))
	for _, rec := range recs {
		byTaskID[rec.TaskID] = rec
	}

	consumed := make(map[int64]bool, len(local))
	for _, t := range local {
		rec, ok := byTaskID[t.ID]
		if !ok {
			if err := e.store.Insert(ctx, recordFromTask(e.userID, day, t)); err != nil {
				return stats, fmt.Errorf("insert task %d: %w", t.ID, err)
			}
			stats.Inserted++
			continue
		}

		consumed[t.ID] = true
		if rec.Text != t.Text || rec.Completed != t.Completed {
			patch := remote.Patch{Text: &t.Text, Completed: &t.Completed}
			if err := e.store.Update(ctx, patch, remote.ByUserDayAndTask(e.userID, day, t.ID)); err != nil {
				return stats, fmt.Errorf("update task %d: %w", t.ID, err)
			}
			stats.Updated++
		}
	}

	// Records never consumed exist remotely but not locally: they were
	// deleted on this side.
	for _, rec := range recs {
		if consumed[rec.TaskID] {
			continue
		}
		if err := e.store.Delete(ctx, remote.ByUserDayAndTask(e.userID, day, rec.TaskID)); err != nil {
			return stats, fmt.Errorf("delete task %d: %w", rec.TaskID, err)
		}
		stats.Deleted++
	}

	if !stats.Zero() {
		e.logger.Printf("Pushed %s: %d inserted, %d updated, %d deleted",
			day, stats.Inserted, stats.Updated, stats.Deleted)
	}
	return stats, nil
}

// writeDay stores the partition, routing today's writes through the
// current-key mirror.
func (e *Engine) writeDay(ctx context.Context, day string, tasks []task.Task) error {
	if day == task.Today() {
		return e.cache.SetCurrent(ctx, tasks)
	}
	return e.cache.SetDay(ctx, day, tasks)
}

func recordFromTask(userID, day string, t task.Task) remote.Record {
	return remote.Record{
		UserID:      userID,
		TaskID:      t.ID,
		Text:        t.Text,
		Completed:   t.Completed,
		DateCreated: t.DateCreated,
		TaskDate:    day,
	}
}

func tasksFromRecords(recs []remote.Record) []task.Task {
	tasks := make([]task.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, task.Task{
			ID:          rec.TaskID,
			Text:        rec.Text,
			Completed:   rec.Completed,
			DateCreated: rec.DateCreated,
		})
	}
	// Newest first for display.
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	return tasks
}
