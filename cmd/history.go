package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-toggler/internal/events"
)

var (
	flagHistoryLimit int
	flagHistoryPane  string
	flagHistorySince time.Duration
	flagHistoryJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded pane transitions",
	Long: `Show pane lifecycle transitions recorded in the history journal,
newest first.

The journal is written by "pane-toggler serve" when history_db is set in the
config file or PANE_TOGGLER_HISTORY_DB.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.HistoryDB == "" {
			return fmt.Errorf("history journal is disabled (set history_db or PANE_TOGGLER_HISTORY_DB)")
		}

		journal, err := events.OpenJournal(cmd.Context(), cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer journal.Close()

		q := events.Query{PaneID: flagHistoryPane, Limit: flagHistoryLimit}
		if flagHistorySince > 0 {
			q.Since = time.Now().Add(-flagHistorySince)
		}
		evs, err := journal.Recent(cmd.Context(), q)
		if err != nil {
			return err
		}

		if flagHistoryJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if evs == nil {
				evs = []events.Event{}
			}
			return enc.Encode(evs)
		}
		return printHistory(cmd.OutOrStdout(), evs)
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "maximum number of events")
	historyCmd.Flags().StringVar(&flagHistoryPane, "pane", "", "only show events for this pane_id")
	historyCmd.Flags().DurationVar(&flagHistorySince, "since", 0, "only show events newer than this, e.g. 1h")
	historyCmd.Flags().BoolVar(&flagHistoryJSON, "json", false, "print events as JSON")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(out io.Writer, evs []events.Event) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPANE ID\tEVENT\tSTATE\tHANDLE\tDETAIL")
	for _, e := range evs {
		detail := e.Detail
		if detail == "" {
			detail = e.Command
		}
		handle := e.Handle
		if handle == "" {
			handle = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s → %s\t%s\t%s\n",
			e.TS.Local().Format(time.DateTime), e.PaneID, e.Kind, e.From, e.To, handle, detail)
	}
	return w.Flush()
}
