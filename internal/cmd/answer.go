package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/store"
)

// NewAnswerCommand creates the answer command
func NewAnswerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "answer <mission-id> <answer>...",
		Short: "Answer a mission's clarifying questions and resume it",
		Long: `Record answers to the clarifying questions of a mission and resume the
pipeline. Answers are matched to questions by position; pass one argument
per question, in order. Questions left unanswered are dropped from the
spec context.

Example:
  worldmind answer 3f6c... "port 8080" "no authentication"`,
		Args: cobra.MinimumNArgs(2),
		RunE: answerCommand,
	}

	return cmd
}

// answerCommand implements the answer command logic
func answerCommand(cmd *cobra.Command, args []string) error {
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

	if err := rt.driver.Answer(ctx, m, args[1:]); err != nil {
		return err
	}
	if err := rt.driver.Run(ctx, m); err != nil {
		return err
	}

	reportStop(cmd, m)
	return nil
}
