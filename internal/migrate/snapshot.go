package migrate

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tasklyapp/taskly/internal/cache"
	"github.com/tasklyapp/taskly/internal/task"
)

// snapshot is the on-disk form of a full cache export.
type snapshot struct {
	ExportedAt time.Time                 `yaml:"exported_at"`
	Days       map[string][]snapshotTask `yaml:"days"`
}

type snapshotTask struct {
	ID          int64     `yaml:"id"`
	Text        string    `yaml:"text"`
	Completed   bool      `yaml:"completed"`
	DateCreated time.Time `yaml:"date_created"`
}

// ExportSnapshot writes every partition in the cache to a YAML file at
// path, for out-of-band backups.
func ExportSnapshot(ctx context.Context, c *cache.Cache, path string) (int, error) {
	days, err := c.Days(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list partitions: %w", err)
	}

	snap := snapshot{
		ExportedAt: time.Now().UTC(),
		Days:       make(map[string][]snapshotTask, len(days)),
	}

	total := 0
	for _, day := range days {
		tasks, err := c.Day(ctx, day)
		if err != nil {
			return 0, fmt.Errorf("failed to read partition %s: %w", day, err)
		}
		out := make([]snapshotTask, 0, len(tasks))
		for _, t := range tasks {
			out = append(out, snapshotTask{
				ID:          t.ID,
				Text:        t.Text,
				Completed:   t.Completed,
				DateCreated: t.DateCreated,
			})
		}
		snap.Days[day] = out
		total += len(out)
	}

	data, err := yaml.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return total, nil
}

// ImportSnapshot loads a YAML snapshot from path and overwrites the
// matching cache partitions. Days absent from the snapshot are left
// untouched.
func ImportSnapshot(ctx context.Context, c *cache.Cache, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	days := make([]string, 0, len(snap.Days))
	for day := range snap.Days {
		days = append(days, day)
	}
	sort.Strings(days)

	today := task.Today()
	total := 0
	for _, day := range days {
		if _, err := task.ParseDay(day); err != nil {
			return total, fmt.Errorf("invalid day %q in snapshot: %w", day, err)
		}

		tasks := make([]task.Task, 0, len(snap.Days[day]))
		for _, st := range snap.Days[day] {
			tasks = append(tasks, task.Task{
				ID:          st.ID,
				Text:        st.Text,
				Completed:   st.Completed,
				DateCreated: st.DateCreated,
			})
		}

		if day == today {
			err = c.SetCurrent(ctx, tasks)
		} else {
			err = c.SetDay(ctx, day, tasks)
		}
		if err != nil {
			return total, fmt.Errorf("failed to write partition %s: %w", day, err)
		}
		total += len(tasks)
	}
	return total, nil
}
