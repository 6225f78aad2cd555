// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/tasklyapp/taskly/internal/remote"
)

// FakeStore is an in-memory implementation of remote.Store for testing.
// It records per-operation call counts so tests can assert on the exact
// write traffic a sync cycle generates.
type FakeStore struct {
	mu      sync.RWMutex
	records []remote.Record

	// Call counters
	Inserts int
	Selects int
	Updates int
	Deletes int

	// Error injection for testing
	InsertErr error
	SelectErr error
	UpdateErr error
	DeleteErr error
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Seed adds records without touching the call counters.
func (f *FakeStore) Seed(recs ...remote.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recs...)
}

// Records returns a copy of the stored records, ordered by task ID.
func (f *FakeStore) Records() []remote.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]remote.Record, len(f.records))
	copy(out, f.records)
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// ResetCounters zeroes the call counters between test phases.
func (f *FakeStore) ResetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inserts, f.Selects, f.Updates, f.Deletes = 0, 0, 0, 0
}

// SelectCalls returns the number of Select calls observed.
func (f *FakeStore) SelectCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Selects
}

// WriteCalls returns the total number of mutating calls observed.
func (f *FakeStore) WriteCalls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Inserts + f.Updates + f.Deletes
}

// Insert implements remote.Store.
func (f *FakeStore) Insert(ctx context.Context, rec remote.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.Inserts++
	f.records = append(f.records, rec)
	return nil
}

// Select implements remote.Store.
func (f *FakeStore) Select(ctx context.Context, q remote.Query) ([]remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SelectErr != nil {
		return nil, f.SelectErr
	}
	f.Selects++

	var out []remote.Record
	for _, rec := range f.records {
		if matches(rec, q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Update implements remote.Store.
func (f *FakeStore) Update(ctx context.Context, p remote.Patch, q remote.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.Updates++

	for i := range f.records {
		if !matches(f.records[i], q) {
			continue
		}
		if p.Text != nil {
			f.records[i].Text = *p.Text
		}
		if p.Completed != nil {
			f.records[i].Completed = *p.Completed
		}
	}
	return nil
}

// Delete implements remote.Store.
func (f *FakeStore) Delete(ctx context.Context, q remote.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Deletes++

	kept := f.records[:0]
	for _, rec := range f.records {
		if !matches(rec, q) {
			kept = append(kept, rec)
		}
	}
	f.records = kept
	return nil
}

func matches(rec remote.Record, q remote.Query) bool {
	for col, want := range q.Eq {
		switch col {
		case "user_id":
			if rec.UserID != want {
				return false
			}
		case "task_id":
			if strconv.FormatInt(rec.TaskID, 10) != want {
				return false
			}
		case "task_date":
			if rec.TaskDate != want {
				return false
			}
		case "completed":
			if strconv.FormatBool(rec.Completed) != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}
