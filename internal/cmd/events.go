package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calder/worldmind/internal/store"
)

// NewEventsCommand creates the events command
func NewEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <mission-id>",
		Short: "Print the event stream of a mission",
		Long: `Print a mission's recorded events in append order: task lifecycle,
phase changes, container starts, quality-gate verdicts, wave merges and
the final convergence.`,
		Args: cobra.ExactArgs(1),
		RunE: eventsCommand,
	}

	return cmd
}

// eventsCommand implements the events command logic
func eventsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	evts, err := st.EventsFor(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(evts) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return nil
	}

	for _, evt := range evts {
		line := fmt.Sprintf("[%s] %-21s %s",
			time.UnixMilli(evt.Timestamp).Format("15:04:05"), evt.Type, evt.TaskID)
		if payload := formatPayload(evt.Payload); payload != "" {
			line += "  " + payload
		}
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	return nil
}

// formatPayload renders a payload as sorted key=value pairs.
func formatPayload(payload map[string]string) string {
	if len(payload) == 0 {
		return ""
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+payload[k])
	}
	return strings.Join(parts, " ")
}
