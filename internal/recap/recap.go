// Package recap generates a short natural-language summary of recent
// task activity using the Anthropic API.
package recap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tasklyapp/taskly/internal/task"
)

const (
	model     = anthropic.Model("claude-sonnet-4-20250514")
	maxTokens = 1024

	systemPrompt = "You summarize a user's task history. Be brief and " +
		"concrete: what got done, what keeps slipping, and one " +
		"suggestion for tomorrow. Plain text, no headings."
)

// Summarizer turns day partitions into a recap.
type Summarizer struct {
	client anthropic.Client
}

// New creates a Summarizer using the given API key.
func New(apiKey string) *Summarizer {
	return &Summarizer{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Summarize sends the task history to the model and returns its recap.
func (s *Summarizer) Summarize(ctx context.Context, days map[string][]task.Task) (string, error) {
	prompt := BuildPrompt(days)
	if prompt == "" {
		return "", fmt.Errorf("no tasks to summarize")
	}

	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("recap request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("empty recap response")
	}
	return out, nil
}

// BuildPrompt renders the task history as a compact plain-text digest.
// Days are listed oldest first; completed tasks are marked [x]. Empty
// days are skipped; an empty history yields "".
func BuildPrompt(days map[string][]task.Task) string {
	dates := make([]string, 0, len(days))
	for day, tasks := range days {
		if len(tasks) > 0 {
			dates = append(dates, day)
		}
	}
	if len(dates) == 0 {
		return ""
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("Task history:\n")
	for _, day := range dates {
		fmt.Fprintf(&sb, "\n%s\n", day)
		for _, t := range days[day] {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			fmt.Fprintf(&sb, "- [%s] %s\n", mark, t.Text)
		}
	}
	return sb.String()
}
