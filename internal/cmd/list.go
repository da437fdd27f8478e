package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/store"
)

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE:  listCommand,
	}

	return cmd
}

// listCommand implements the list command logic
func listCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	missions, err := st.ListMissions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(missions) == 0 {
		fmt.Fprintln(out, "No missions recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-17s  %-16s  %s\n", "ID", "STATUS", "UPDATED", "REQUEST")
	for _, m := range missions {
		fmt.Fprintf(out, "%-36s  %-17s  %-16s  %s\n",
			m.ID, m.Status,
			time.UnixMilli(m.UpdatedAt).Format("2006-01-02 15:04"),
			truncate(m.Request, 60))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
