package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// DefaultConfigPath is consulted when --config is not given.
const DefaultConfigPath = ".worldmind/config.yaml"

// NewRootCommand creates and returns the root cobra command for worldmind
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worldmind",
		Short: "Natural-language mission orchestrator for containerised coding agents",
		Long: `Worldmind turns a natural-language engineering request into reviewed,
merged code. A mission moves through classification, clarification,
specification and planning, then executes its task plan in parallel waves
of containerised agent workers whose output passes a test-and-review
quality gate before being merged branch by branch.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .worldmind/config.yaml)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewAnswerCommand())
	cmd.AddCommand(NewApproveCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewEventsCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
