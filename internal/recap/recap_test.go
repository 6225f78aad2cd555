package recap

import (
	"strings"
	"testing"

	"github.com/tasklyapp/taskly/internal/task"
)

func TestBuildPromptEmpty(t *testing.T) {
	if got := BuildPrompt(nil); got != "" {
		t.Errorf("expected empty prompt, got %q", got)
	}
	if got := BuildPrompt(map[string][]task.Task{"2024-03-01": {}}); got != "" {
		t.Errorf("empty days should be skipped, got %q", got)
	}
}

func TestBuildPromptOrdersAndMarks(t *testing.T) {
	days := map[string][]task.Task{
		"2024-03-02": {{ID: 3, Text: "later day"}},
		"2024-03-01": {
			{ID: 1, Text: "finished", Completed: true},
			{ID: 2, Text: "pending"},
		},
	}

	prompt := BuildPrompt(days)

	first := strings.Index(prompt, "2024-03-01")
	second := strings.Index(prompt, "2024-03-02")
	if first < 0 || second < 0 || first > second {
		t.Errorf("days not ordered oldest first:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- [x] finished") {
		t.Errorf("completed task not marked:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- [ ] pending") {
		t.Errorf("pending task not marked:\n%s", prompt)
	}
}
