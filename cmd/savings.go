package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JamesWheadon/Carbon-Intensity/core/decisionlog"
	"github.com/JamesWheadon/Carbon-Intensity/infra/kpi"
	jobs "github.com/JamesWheadon/Carbon-Intensity/jobs/savings"
)

var backfillOpts struct {
	since string
}

var savingsCmd = &cobra.Command{
	Use:   "savings",
	Short: "Savings KPI commands",
}

var savingsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay the decision log into the daily savings store",
	RunE:  runBackfill,
}

func init() {
	savingsBackfillCmd.Flags().StringVar(&backfillOpts.since, "since", "", "only replay decisions from this date (2006-01-02)")
	savingsCmd.AddCommand(savingsBackfillCmd)
	rootCmd.AddCommand(savingsCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Savings.Backend != "sqlite" {
		return fmt.Errorf("backfill needs the sqlite savings backend")
	}
	if cfg.DecisionLog.Backend == "memory" {
		return fmt.Errorf("backfill needs a persistent decision log")
	}
	var q decisionlog.Query
	if backfillOpts.since != "" {
		if q.Start, err = time.Parse("2006-01-02", backfillOpts.since); err != nil {
			return fmt.Errorf("since: %w", err)
		}
	}
	dlog, err := decisionlog.Open(decisionlog.Options{Backend: cfg.DecisionLog.Backend, Path: cfg.DecisionLog.Path})
	if err != nil {
		return fmt.Errorf("decision log: %w", err)
	}
	defer func() { _ = dlog.Close() }()
	store, err := kpi.NewSQLiteStore(cfg.Savings.Path)
	if err != nil {
		return fmt.Errorf("savings store: %w", err)
	}
	defer func() { _ = store.Close() }()

	n, err := jobs.Backfill(cmd.Context(), store, dlog, q)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "replayed %d decisions\n", n)
	return err
}
