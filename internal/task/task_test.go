package task

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Task{
		ID:          1709280000000,
		Text:        "write report",
		DateCreated: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid task failed validation: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Task)
	}{
		{"missing id", func(tk *Task) { tk.ID = 0 }},
		{"missing text", func(tk *Task) { tk.Text = "" }},
		{"text too long", func(tk *Task) { tk.Text = strings.Repeat("x", MaxTextLen+1) }},
		{"missing dateCreated", func(tk *Task) { tk.DateCreated = time.Time{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := valid
			tc.mutate(&tk)
			if err := tk.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestNewAssignsID(t *testing.T) {
	before := time.Now().UnixMilli()
	tk := New("buy milk")
	after := time.Now().UnixMilli()

	if tk.ID < before || tk.ID > after {
		t.Errorf("ID %d not in creation window [%d, %d]", tk.ID, before, after)
	}
	if tk.Completed {
		t.Error("new task should not be completed")
	}
	if tk.Day() != Today() {
		t.Errorf("new task day %s, want %s", tk.Day(), Today())
	}
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2024-03-01")
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	if day != "2024-03-01" {
		t.Errorf("got %s, want 2024-03-01", day)
	}

	for _, bad := range []string{"03/01/2024", "2024-13-01", "yesterday", ""} {
		if _, err := ParseDay(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestInsertNewestFirst(t *testing.T) {
	var tasks []Task
	tasks = Insert(tasks, Task{ID: 1, Text: "first"})
	tasks = Insert(tasks, Task{ID: 2, Text: "second"})

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != 2 {
		t.Errorf("newest task should be first, got ID %d", tasks[0].ID)
	}
}

func TestToggle(t *testing.T) {
	tasks := []Task{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}

	if !Toggle(tasks, 2) {
		t.Fatal("Toggle reported no match for existing ID")
	}
	if !tasks[1].Completed {
		t.Error("task 2 should be completed after toggle")
	}

	if Toggle(tasks, 99) {
		t.Error("Toggle reported a match for missing ID")
	}
}

func TestDelete(t *testing.T) {
	tasks := []Task{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}, {ID: 3, Text: "c"}}
	tasks = Delete(tasks, 2)

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after delete, got %d", len(tasks))
	}
	if tasks[0].ID != 1 || tasks[1].ID != 3 {
		t.Errorf("delete did not preserve order: %+v", tasks)
	}
}

func TestClearCompleted(t *testing.T) {
	tasks := []Task{
		{ID: 1, Text: "a", Completed: true},
		{ID: 2, Text: "b"},
		{ID: 3, Text: "c", Completed: true},
	}
	tasks = ClearCompleted(tasks)

	if len(tasks) != 1 || tasks[0].ID != 2 {
		t.Errorf("expected only task 2 to remain, got %+v", tasks)
	}
}

func TestPending(t *testing.T) {
	tasks := []Task{
		{ID: 1, Completed: true},
		{ID: 2},
		{ID: 3},
	}
	if got := Pending(tasks); got != 2 {
		t.Errorf("Pending = %d, want 2", got)
	}
}
