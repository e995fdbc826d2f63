package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openmanus/manus/internal/config"
	"github.com/openmanus/manus/pkg/models"
)

var askTimeout time.Duration

var askCmd = &cobra.Command{
	Use:   "ask <task description>",
	Short: "Submit a task and wait for the result",
	Long: `Submit a natural-language task, wait for the agents to finish, and
print the result.

Examples:
  manus ask "Research the history of index funds"
  manus ask "Write a python function that merges two sorted lists"
  manus ask "Screen for stocks under \$50"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, _, err := buildLogger(cfg)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer log.Sync()

		eng, err := buildEngine(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng.scheduler.Start(ctx)
		defer eng.scheduler.Stop()

		description := strings.Join(args, " ")
		id, err := eng.scheduler.Submit(ctx, description)
		if err != nil {
			return fmt.Errorf("submit task: %w", err)
		}
		fmt.Printf("Task %s submitted.\n", id)

		task, err := waitForTask(ctx, eng, id)
		if err != nil {
			return err
		}
		printTask(eng, task)
		if task.Status != models.TaskStatusCompleted {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 10*time.Minute, "How long to wait before giving up")
}

// waitForTask polls until the task is terminal, cancelling it if the user
// interrupts or the timeout passes.
func waitForTask(ctx context.Context, eng *engine, id string) (models.Task, error) {
	deadline := time.After(askTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	lastStatus := models.TaskStatus("")
	for {
		select {
		case <-ctx.Done():
			_ = eng.scheduler.Cancel(id)
			return models.Task{}, fmt.Errorf("interrupted; cancellation requested for %s", id)
		case <-deadline:
			_ = eng.scheduler.Cancel(id)
			return models.Task{}, fmt.Errorf("timed out after %s; cancellation requested for %s", askTimeout, id)
		case <-ticker.C:
		}

		task, err := eng.scheduler.Status(id)
		if err != nil {
			return models.Task{}, err
		}
		if task.Status != lastStatus {
			lastStatus = task.Status
			if !task.Status.Terminal() {
				fmt.Printf("  %s\n", statusColor(task.Status).Sprint(task.Status))
			}
		}
		if task.Status.Terminal() {
			return task, nil
		}
	}
}

func printTask(eng *engine, task models.Task) {
	fmt.Println()
	fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Status:"), statusColor(task.Status).Sprint(task.Status))
	if task.AssignedAgentID != "" {
		fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Agent:"), task.AssignedAgentID)
	}

	switch task.Status {
	case models.TaskStatusCompleted:
		printPayload(task.Result)
	case models.TaskStatusFailed:
		fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Error:"), color.RedString(task.Error))
	}

	subs := eng.scheduler.SubTasks(task.ID)
	if len(subs) > 0 {
		fmt.Printf("\n%s\n", color.New(color.Bold).Sprint("Sub-tasks:"))
		for _, sub := range subs {
			fmt.Printf("  %s %s  %s\n", statusColor(sub.Status).Sprintf("[%s]", sub.Status), sub.ID, sub.Description)
		}
	}
}

// printPayload renders a result map with stable key order.
func printPayload(payload map[string]any) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s %v\n", color.New(color.Bold).Sprintf("%s:", k), payload[k])
	}
}

func statusColor(status models.TaskStatus) *color.Color {
	switch status {
	case models.TaskStatusCompleted:
		return color.New(color.FgGreen)
	case models.TaskStatusFailed:
		return color.New(color.FgRed)
	case models.TaskStatusCancelled, models.TaskStatusCancelling:
		return color.New(color.FgYellow)
	case models.TaskStatusCollaborating:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgBlue)
	}
}
