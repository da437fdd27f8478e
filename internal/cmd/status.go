package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/store"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <mission-id>",
		Short: "Show the state of a mission",
		Long: `Display the current state of a mission: its lifecycle status,
classification, task plan with per-task progress, recorded errors and,
once converged, the execution metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: statusCommand,
	}

	return cmd
}

// statusCommand implements the status command logic
func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	m, err := st.GetMission(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(out, "%s %s\n", bold("Mission"), m.ID)
	fmt.Fprintf(out, "  Request:  %s\n", m.Request)
	fmt.Fprintf(out, "  Status:   %s\n", colourStatus(m.Status))
	fmt.Fprintf(out, "  Created:  %s\n", time.UnixMilli(m.CreatedAt).Format(time.RFC3339))
	if m.Classification != nil {
		fmt.Fprintf(out, "  Category: %s (complexity %d, %s)\n",
			m.Classification.Category, m.Classification.Complexity, m.Strategy)
	}

	if m.Status == models.StatusClarifying {
		fmt.Fprintf(out, "\n%s\n", bold("Open questions"))
		for i, q := range m.Questions {
			fmt.Fprintf(out, "  %d. %s\n", i+1, q)
		}
	}

	if len(m.Tasks) > 0 {
		fmt.Fprintf(out, "\n%s (wave %d)\n", bold("Tasks"), m.Wave)
		for _, task := range m.Tasks {
			iteration := ""
			if task.Iteration > 0 {
				iteration = fmt.Sprintf(" (attempt %d)", task.Iteration+1)
			}
			fmt.Fprintf(out, "  %s  %-10s %-10s%s  %s\n",
				task.ID, task.Role, colourTaskStatus(task.Status), iteration, task.Description)
		}
	}

	if len(m.Errors) > 0 {
		fmt.Fprintf(out, "\n%s\n", bold("Errors"))
		for _, e := range m.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}

	if m.Metrics != nil {
		fmt.Fprintf(out, "\n%s\n", bold("Metrics"))
		fmt.Fprintf(out, "  Tasks completed: %d\n", m.Metrics.TasksCompleted)
		fmt.Fprintf(out, "  Tasks failed:    %d\n", m.Metrics.TasksFailed)
		fmt.Fprintf(out, "  Waves executed:  %d\n", m.Metrics.WavesExecuted)
		fmt.Fprintf(out, "  Iterations:      %d\n", m.Metrics.TotalIterations)
		fmt.Fprintf(out, "  Files:           %d created, %d modified\n", m.Metrics.FilesCreated, m.Metrics.FilesModified)
		fmt.Fprintf(out, "  Tests:           %d passed / %d run\n", m.Metrics.TestsPassed, m.Metrics.TestsRun)
		fmt.Fprintf(out, "  Worker time:     %s\n", (time.Duration(m.Metrics.AggregateTaskMS) * time.Millisecond).Round(time.Second))
	}

	return nil
}

func colourStatus(s models.MissionStatus) string {
	switch s {
	case models.StatusCompleted:
		return color.GreenString(string(s))
	case models.StatusFailed:
		return color.RedString(string(s))
	case models.StatusClarifying, models.StatusAwaitingApproval:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}

func colourTaskStatus(s models.TaskStatus) string {
	switch s {
	case models.TaskPassed:
		return color.GreenString(string(s))
	case models.TaskFailed:
		return color.RedString(string(s))
	case models.TaskSkipped:
		return color.YellowString(string(s))
	case models.TaskExecuting, models.TaskVerifying:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}
