// Package task provides the data structures for day-partitioned tasks.
package task

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// DayLayout is the canonical form of a day partition key (local time zone).
const DayLayout = "2006-01-02"

// MaxTextLen bounds the length of a task's text in runes.
const MaxTextLen = 500

// Task is a single to-do item. The ID is assigned once at creation time
// (a millisecond timestamp, unique within its day partition) and never
// changes. Text and Completed are the only mutable fields; DateCreated
// pins the task to its day partition for life.
type Task struct {
	ID          int64     `json:"id"`
	Text        string    `json:"text"`
	Completed   bool      `json:"completed"`
	DateCreated time.Time `json:"dateCreated"`
}

// New creates a task with the current timestamp as its ID.
func New(text string) Task {
	now := time.Now()
	return Task{
		ID:          now.UnixMilli(),
		Text:        text,
		DateCreated: now,
	}
}

// Validate checks if the Task has valid field values.
func (t Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("id is required")
	}
	if t.Text == "" {
		return fmt.Errorf("text is required")
	}
	if n := utf8.RuneCountInString(t.Text); n > MaxTextLen {
		return fmt.Errorf("text must be %d characters or less (got %d)", MaxTextLen, n)
	}
	if t.DateCreated.IsZero() {
		return fmt.Errorf("dateCreated is required")
	}
	return nil
}

// Day returns the day partition key this task belongs to.
func (t Task) Day() string {
	return t.DateCreated.Local().Format(DayLayout)
}

// Today returns the current day partition key.
func Today() string {
	return time.Now().Format(DayLayout)
}

// DayOf returns the day partition key for an arbitrary time.
func DayOf(ts time.Time) string {
	return ts.Local().Format(DayLayout)
}

// ParseDay validates a day partition key in canonical YYYY-MM-DD form.
func ParseDay(s string) (string, error) {
	ts, err := time.ParseInLocation(DayLayout, s, time.Local)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return ts.Format(DayLayout), nil
}

// Insert prepends a task so newer tasks display first.
func Insert(tasks []Task, t Task) []Task {
	return append([]Task{t}, tasks...)
}

// Toggle flips the completed flag of the task with the given ID.
// Returns false if no task matches.
func Toggle(tasks []Task, id int64) bool {
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Completed = !tasks[i].Completed
			return true
		}
	}
	return false
}

// SetText replaces the text of the task with the given ID.
// Returns false if no task matches.
func SetText(tasks []Task, id int64, text string) bool {
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Text = text
			return true
		}
	}
	return false
}

// Delete removes the task with the given ID, preserving order.
func Delete(tasks []Task, id int64) []Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// ClearCompleted removes every completed task, preserving order.
func ClearCompleted(tasks []Task) []Task {
	out := tasks[:0]
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the task with the given ID, or nil.
func Find(tasks []Task, id int64) *Task {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
	}
	return nil
}

// Pending counts tasks that are not completed.
func Pending(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}
