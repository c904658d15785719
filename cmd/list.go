package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-toggler/internal/model"
)

var flagFilter string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List native panes and their pane ids",
	Long: `List all terminal multiplexer panes.

Panes opened by pane-toggler show the pane_id they were opened under in the
PANE ID column. Optionally filter by session name using a regex pattern.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := getMultiplexer(cfg, nil)
		if err != nil {
			return err
		}

		panes, err := m.ListPanes(cmd.Context(), flagFilter)
		if err != nil {
			return fmt.Errorf("failed to list panes: %w", err)
		}
		return printPanes(cmd.OutOrStdout(), panes)
	},
}

func init() {
	listCmd.Flags().StringVar(&flagFilter, "filter", "", "regex pattern to filter by session name")
	rootCmd.AddCommand(listCmd)
}

func printPanes(out io.Writer, panes []model.Pane) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tTARGET\tPID\tCOMMAND\tPANE ID")
	for _, p := range panes {
		tag := p.Tag
		if tag == "" {
			tag = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", p.Handle, p.Target, p.PID, p.Command, tag)
	}
	return w.Flush()
}
