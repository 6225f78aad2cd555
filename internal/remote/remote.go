// Package remote provides the adapter to the cloud record store.
//
// The store is a single logical table of task records addressed by CRUD
// operations with equality filters. Concrete backends (PostgREST-style
// HTTP, Turso/libSQL) implement the Store interface; the sync engine and
// migrator depend only on the interface.
//
// Failure contract: any transport or server error wraps ErrUnavailable.
// The adapter never retries; reconciliation is the caller's job and every
// remote write is idempotent, so re-running a cycle converges.
package remote

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrUnavailable marks a remote store that cannot be reached or answered
// with a server error. Callers fall back to local-only operation.
var ErrUnavailable = errors.New("remote store unavailable")

// DefaultTable is the remote table holding task records.
const DefaultTable = "taskly_tasks"

// Record is one task row in the remote table. TaskID joins against the
// local task ID; the backend's own row identity is never exposed.
type Record struct {
	UserID      string    `json:"user_id"`
	TaskID      int64     `json:"task_id"`
	Text        string    `json:"text"`
	Completed   bool      `json:"completed"`
	DateCreated time.Time `json:"date_created"`
	TaskDate    string    `json:"task_date"`
}

// Query is a tagged filter/order value object: a conjunction of equality
// predicates plus an optional ordering column.
type Query struct {
	// Eq maps column names to required values. All predicates must hold.
	Eq map[string]string

	// OrderBy is the column to sort on; empty means backend order.
	OrderBy string

	// Descending reverses the sort direction.
	Descending bool
}

// Patch holds the mutable fields of an update. Nil fields are untouched.
type Patch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Store is the generic CRUD contract over the remote task table.
type Store interface {
	// Insert adds a record. Inserting an existing (user, task, day)
	// record again is the backend's concern; callers treat it as upsert.
	Insert(ctx context.Context, rec Record) error

	// Select returns all records matching the query.
	Select(ctx context.Context, q Query) ([]Record, error)

	// Update applies the patch to every record matching the query.
	Update(ctx context.Context, p Patch, q Query) error

	// Delete removes every record matching the query.
	Delete(ctx context.Context, q Query) error
}

// ByUserAndDay is the filter used by every sync cycle.
func ByUserAndDay(userID, day string) Query {
	return Query{Eq: map[string]string{"user_id": userID, "task_date": day}}
}

// ByUserDayAndTask narrows to a single logical record.
func ByUserDayAndTask(userID, day string, taskID int64) Query {
	q := ByUserAndDay(userID, day)
	q.Eq["task_id"] = formatTaskID(taskID)
	return q
}

// ByUser selects everything the user owns (used by migration).
func ByUser(userID string) Query {
	return Query{Eq: map[string]string{"user_id": userID}}
}

func formatTaskID(id int64) string {
	return strconv.FormatInt(id, 10)
}
