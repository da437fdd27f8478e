package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/store"
)

// NewApproveCommand creates the approve command
func NewApproveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <mission-id>",
		Short: "Approve a mission's task plan and start execution",
		Long: `Approve the task plan of a mission in the awaiting_approval state and
run it: tasks execute in parallel waves, each coder result goes through a
test-and-review quality gate, and passing branches merge into main wave by
wave.`,
		Args: cobra.ExactArgs(1),
		RunE: approveCommand,
	}

	return cmd
}

// approveCommand implements the approve command logic
func approveCommand(cmd *cobra.Command, args []string) error {
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

	rt, err := newMissionRuntime(cfg, st, m)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.driver.Approve(ctx, m); err != nil {
		return err
	}
	if err := rt.driver.Run(ctx, m); err != nil {
		return err
	}

	reportStop(cmd, m)
	return nil
}
