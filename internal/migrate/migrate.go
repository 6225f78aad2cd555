// Package migrate moves task data between guest and cloud modes.
//
// Guest to cloud uploads every local partition to the remote store in
// batches, continuing past batch failures so one bad record cannot
// strand the rest. Cloud to guest is a full backup of the remote table
// into the local cache and fails fast when the remote is unreachable.
// Both directions overwrite their destination, so re-running a
// migration is safe.
package migrate

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/tasklyapp/taskly/internal/cache"
	"github.com/tasklyapp/taskly/internal/remote"
	"github.com/tasklyapp/taskly/internal/task"
)

// BatchSize is the number of records uploaded per batch during a
// guest-to-cloud migration. A batch is the failure unit: an error skips
// the rest of its batch and moves on.
const BatchSize = 50

// Result summarizes a migration run.
type Result struct {
	Migrated int      // records uploaded (guest→cloud)
	BackedUp int      // records written locally (cloud→guest)
	Errors   []string // batch failures, empty on full success
}

// Migrator moves data between the local cache and a remote store.
type Migrator struct {
	cache  *cache.Cache
	store  remote.Store
	logger *log.Logger
}

// New creates a Migrator. If logger is nil, a default logger writing to
// stderr is used.
func New(c *cache.Cache, store remote.Store, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	}
	return &Migrator{cache: c, store: store, logger: logger}
}

type recordKey struct {
	taskID int64
	day    string
}

// GuestToCloud uploads every local partition for userID and flips the
// cache to cloud mode. Duplicate (task, day) pairs collapse to the last
// occurrence seen, with the current partition read last so it wins.
func (m *Migrator) GuestToCloud(ctx context.Context, userID string) (Result, error) {
	var res Result

	unique := make(map[recordKey]remote.Record)

	days, err := m.cache.Days(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list partitions: %w", err)
	}
	for _, day := range days {
		tasks, err := m.cache.Day(ctx, day)
		if err != nil {
			return res, fmt.Errorf("failed to read partition %s: %w", day, err)
		}
		for _, t := range tasks {
			unique[recordKey{t.ID, day}] = recordFor(userID, day, t)
		}
	}

	// The current partition dates each task by its own creation day.
	current, err := m.cache.Current(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read current partition: %w", err)
	}
	for _, t := range current {
		day := t.Day()
		unique[recordKey{t.ID, day}] = recordFor(userID, day, t)
	}

	records := make([]remote.Record, 0, len(unique))
	for _, rec := range unique {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].TaskDate != records[j].TaskDate {
			return records[i].TaskDate < records[j].TaskDate
		}
		return records[i].TaskID < records[j].TaskID
	})

	m.logger.Printf("Migrating %d unique tasks to cloud", len(records))

	for start := 0; start < len(records); start += BatchSize {
		end := start + BatchSize
		if end > len(records) {
			end = len(records)
		}

		if err := m.uploadBatch(ctx, records[start:end]); err != nil {
			m.logger.Printf("Batch %d failed: %v", start/BatchSize+1, err)
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %v", start/BatchSize+1, err))
			continue
		}
		res.Migrated += end - start
	}

	if err := m.cache.SetMode(ctx, cache.ModeCloud); err != nil {
		return res, fmt.Errorf("failed to set cloud mode: %w", err)
	}

	m.logger.Printf("Migration complete: %d migrated, %d batch errors", res.Migrated, len(res.Errors))
	return res, nil
}

func (m *Migrator) uploadBatch(ctx context.Context, batch []remote.Record) error {
	for _, rec := range batch {
		if err := m.store.Insert(ctx, rec); err != nil {
			return fmt.Errorf("insert task %d: %w", rec.TaskID, err)
		}
	}
	return nil
}

// CloudToGuest backs up every remote record for userID into the local
// cache and flips the mode flag to guest. It fails fast on any remote
// error; a partial backup never replaces the mode.
func (m *Migrator) CloudToGuest(ctx context.Context, userID string) (Result, error) {
	var res Result

	recs, err := m.store.Select(ctx, remote.ByUser(userID))
	if err != nil {
		return res, fmt.Errorf("failed to fetch cloud tasks: %w", err)
	}

	byDay := make(map[string][]task.Task)
	for _, rec := range recs {
		byDay[rec.TaskDate] = append(byDay[rec.TaskDate], task.Task{
			ID:          rec.TaskID,
			Text:        rec.Text,
			Completed:   rec.Completed,
			DateCreated: rec.DateCreated,
		})
	}

	today := task.Today()
	for day, tasks := range byDay {
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })

		if day == today {
			if err := m.cache.SetCurrent(ctx, tasks); err != nil {
				return res, fmt.Errorf("failed to write current partition: %w", err)
			}
		} else {
			if err := m.cache.SetDay(ctx, day, tasks); err != nil {
				return res, fmt.Errorf("failed to write partition %s: %w", day, err)
			}
		}
		res.BackedUp += len(tasks)
	}

	if err := m.cache.SetMode(ctx, cache.ModeGuest); err != nil {
		return res, fmt.Errorf("failed to set guest mode: %w", err)
	}

	m.logger.Printf("Backed up %d tasks across %d days", res.BackedUp, len(byDay))
	return res, nil
}

func recordFor(userID, day string, t task.Task) remote.Record {
	return remote.Record{
		UserID:      userID,
		TaskID:      t.ID,
		Text:        t.Text,
		Completed:   t.Completed,
		DateCreated: t.DateCreated,
		TaskDate:    day,
	}
}
