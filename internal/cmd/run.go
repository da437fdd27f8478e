package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/models"
	"github.com/calder/worldmind/internal/store"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <request>",
		Short: "Start a mission from a natural-language request",
		Long: `Start a mission: classify the request, ask clarifying questions if
needed, generate a product spec, plan tasks and execute them in parallel
waves of containerised workers.

The run stops when the mission needs user input (clarifying answers or
plan approval) and prints the command that resumes it. With --approve the
plan is approved automatically and execution continues in the same run.

Configuration is loaded from .worldmind/config.yaml if present.

Examples:
  worldmind run "add a GET /health endpoint returning build info"
  worldmind run --project ./api --remote git@github.com:acme/api.git "fix the login redirect loop"
  worldmind run --approve "rename the billing module to invoicing"
  worldmind run --reasoning high "migrate the session store to Redis"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("project", "", "Path to the project working copy")
	cmd.Flags().String("remote", "", "Git remote workers exchange branches through")
	cmd.Flags().String("runtime", "", "Runtime tag selecting the worker toolchain image variant")
	cmd.Flags().String("reasoning", "", "Worker reasoning level (low, medium, high)")
	cmd.Flags().Bool("approve", false, "Approve the generated plan without stopping")
	cmd.Flags().Bool("verbose", false, "Show detailed execution information")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	request := strings.TrimSpace(strings.Join(args, " "))
	project, _ := cmd.Flags().GetString("project")
	remote, _ := cmd.Flags().GetString("remote")

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	m := models.NewMission(request, project, remote)
	m.RuntimeTag, _ = cmd.Flags().GetString("runtime")
	m.ReasoningLevel, _ = cmd.Flags().GetString("reasoning")

	rt, err := newMissionRuntime(cfg, st, m)
	if err != nil {
		return err
	}
	defer rt.close()

	// SIGINT/SIGTERM cancel the run; the driver marks the mission failed at
	// the next stage boundary and persists it before we exit.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Mission %s\n", m.ID)
	if err := rt.driver.Run(ctx, m); err != nil {
		return err
	}

	if autoApprove, _ := cmd.Flags().GetBool("approve"); autoApprove && m.Status == models.StatusAwaitingApproval {
		if err := rt.driver.Approve(ctx, m); err != nil {
			return err
		}
		if err := rt.driver.Run(ctx, m); err != nil {
			return err
		}
	}

	reportStop(cmd, m)
	return nil
}
