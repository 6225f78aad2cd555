package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tasklyapp/taskly/internal/task"
	"github.com/tasklyapp/taskly/internal/ui"
)

var dayParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// resolveDay turns the --on flag into a YYYY-MM-DD day. Accepts the
// literal format or natural language ("yesterday", "last friday").
func resolveDay(s string) (string, error) {
	if s == "" {
		return task.Today(), nil
	}
	if day, err := task.ParseDay(s); err == nil {
		return day, nil
	}

	r, err := dayParser.Parse(s, time.Now())
	if err != nil || r == nil {
		return "", fmt.Errorf("cannot parse day %q (want YYYY-MM-DD or e.g. \"yesterday\")", s)
	}
	return task.DayOf(r.Time), nil
}

// resolveTask finds a task by full ID or by 1-based list position.
func resolveTask(tasks []task.Task, arg string) (*task.Task, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid task reference %q", arg)
	}

	if t := task.Find(tasks, n); t != nil {
		return t, nil
	}
	if n >= 1 && int(n) <= len(tasks) {
		return &tasks[n-1], nil
	}
	return nil, fmt.Errorf("no task %s on this day", arg)
}

func printTasks(day string, tasks []task.Task) {
	if len(tasks) == 0 {
		fmt.Printf("%s %s\n", ui.RenderHeader(day), ui.RenderMuted("(no tasks)"))
		return
	}

	fmt.Printf("%s %s\n", ui.RenderHeader(day),
		ui.RenderMuted(fmt.Sprintf("(%d open)", task.Pending(tasks))))
	for i, t := range tasks {
		mark := ui.RenderMuted("[ ]")
		text := t.Text
		if t.Completed {
			mark = ui.RenderPass("[x]")
			text = ui.RenderDone(text)
		}
		fmt.Printf("  %2d %s %s %s\n", i+1, mark, text,
			ui.RenderMuted(fmt.Sprintf("#%d", t.ID)))
	}
}

var addCmd = &cobra.Command{
	Use:     "add <text>",
	GroupID: "tasks",
	Short:   "Add a task",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		t := task.New(strings.Join(args, " "))
		if err := t.Validate(); err != nil {
			return err
		}

		eng, err := a.engine(ctx)
		if err != nil {
			return err
		}

		day := t.Day()
		tasks, err := eng.Load(ctx, day)
		if err != nil {
			return err
		}
		tasks = task.Insert(tasks, t)

		if err := eng.Save(ctx, day, tasks); err != nil {
			return err
		}
		fmt.Printf("%s Added %s\n", ui.RenderPass("✓"), ui.RenderAccent(t.Text))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "tasks",
	Short:   "List tasks for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		if all, _ := cmd.Flags().GetBool("all"); all {
			days, err := a.cache.Days(ctx)
			if err != nil {
				return err
			}
			for i, day := range days {
				if i > 0 {
					fmt.Println()
				}
				tasks, err := a.cache.Day(ctx, day)
				if err != nil {
					return err
				}
				printTasks(day, tasks)
			}
			return nil
		}

		on, _ := cmd.Flags().GetString("on")
		day, err := resolveDay(on)
		if err != nil {
			return err
		}

		eng, err := a.engine(ctx)
		if err != nil {
			return err
		}
		tasks, err := eng.Load(ctx, day)
		if err != nil {
			return err
		}
		printTasks(day, tasks)
		return nil
	},
}

// mutateDay loads a day, applies fn, and saves the result.
func mutateDay(cmd *cobra.Command, fn func(tasks []task.Task) ([]task.Task, string, error)) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	on, _ := cmd.Flags().GetString("on")
	day, err := resolveDay(on)
	if err != nil {
		return err
	}

	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}
	tasks, err := eng.Load(ctx, day)
	if err != nil {
		return err
	}

	tasks, msg, err := fn(tasks)
	if err != nil {
		return err
	}
	if err := eng.Save(ctx, day, tasks); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", ui.RenderPass("✓"), msg)
	return nil
}

func setCompleted(completed bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return mutateDay(cmd, func(tasks []task.Task) ([]task.Task, string, error) {
			t, err := resolveTask(tasks, args[0])
			if err != nil {
				return nil, "", err
			}
			t.Completed = completed
			verb := "Completed"
			if !completed {
				verb = "Reopened"
			}
			return tasks, fmt.Sprintf("%s %s", verb, ui.RenderAccent(t.Text)), nil
		})
	}
}

var doneCmd = &cobra.Command{
	Use:     "done <id>",
	GroupID: "tasks",
	Short:   "Mark a task completed",
	Args:    cobra.ExactArgs(1),
	RunE:    setCompleted(true),
}

var undoneCmd = &cobra.Command{
	Use:     "undone <id>",
	GroupID: "tasks",
	Short:   "Reopen a completed task",
	Args:    cobra.ExactArgs(1),
	RunE:    setCompleted(false),
}

var editCmd = &cobra.Command{
	Use:     "edit <id> <text>",
	GroupID: "tasks",
	Short:   "Rewrite a task's text",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateDay(cmd, func(tasks []task.Task) ([]task.Task, string, error) {
			t, err := resolveTask(tasks, args[0])
			if err != nil {
				return nil, "", err
			}
			text := strings.Join(args[1:], " ")
			probe := *t
			probe.Text = text
			if err := probe.Validate(); err != nil {
				return nil, "", err
			}
			t.Text = text
			return tasks, fmt.Sprintf("Updated %s", ui.RenderAccent(text)), nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "tasks",
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateDay(cmd, func(tasks []task.Task) ([]task.Task, string, error) {
			t, err := resolveTask(tasks, args[0])
			if err != nil {
				return nil, "", err
			}
			text := t.Text
			return task.Delete(tasks, t.ID), fmt.Sprintf("Deleted %s", ui.RenderAccent(text)), nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	GroupID: "tasks",
	Short:   "Remove all completed tasks for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateDay(cmd, func(tasks []task.Task) ([]task.Task, string, error) {
			kept := task.ClearCompleted(tasks)
			n := len(tasks) - len(kept)
			return kept, fmt.Sprintf("Cleared %d completed task(s)", n), nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{listCmd, doneCmd, undoneCmd, editCmd, rmCmd, clearCmd} {
		cmd.Flags().String("on", "", "Day to operate on (YYYY-MM-DD or natural language)")
	}
	listCmd.Flags().Bool("all", false, "List every stored day")

	rootCmd.AddCommand(addCmd, listCmd, doneCmd, undoneCmd, editCmd, rmCmd, clearCmd)
}
