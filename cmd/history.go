package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bessopt/core/runlog"
)

var (
	historyStatus string
	historyLimit  int
	historySince  time.Duration
	historyJSON   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded optimization runs",
	RunE:  history,
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "only runs with this solver status")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "most recent runs to show, 0 for all")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only runs newer than this age, e.g. 24h")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func history(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RunLog.Backend == "" {
		return fmt.Errorf("run_log.backend not configured")
	}
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := runlog.Query{Status: historyStatus, Limit: historyLimit}
	if historySince > 0 {
		q.Start = time.Now().Add(-historySince)
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	return printRecords(cmd, recs)
}

func printRecords(cmd *cobra.Command, recs []runlog.Record) error {
	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tSTATUS\tSTEPS\tCOST\tSOLVE\tERROR")
	for _, r := range recs {
		cost := "N/A"
		if r.CostAvailable {
			cost = fmt.Sprintf("%.2f", r.TotalCost)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.RunID, r.Status, r.Steps, cost,
			r.SolveDuration.Round(time.Millisecond), r.Error)
	}
	return tw.Flush()
}
