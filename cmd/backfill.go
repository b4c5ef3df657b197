package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trafficgrid/core/ticklog"
	"github.com/kilianp07/trafficgrid/infra/kpi"
	"github.com/kilianp07/trafficgrid/jobs/ecokpi"
)

var backfillDB string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Rebuild station KPIs in SQLite from the tick log",
	RunE:  backfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillDB, "db", "kpi.db", "SQLite KPI database")
	rootCmd.AddCommand(backfillCmd)
}

func backfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	logs, err := ticklog.Open(ctx, cfg.TickLog)
	if err != nil {
		return err
	}
	if logs == nil {
		return fmt.Errorf("tick log is disabled in the configuration")
	}
	defer func() { _ = logs.Close() }()
	recs, err := logs.Query(ctx, ticklog.Query{})
	if err != nil {
		return err
	}

	store, err := kpi.NewSQLiteStore(backfillDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	n, err := ecokpi.Backfill(store, recs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d sessions from %d ticks into %s\n", n, len(recs), backfillDB)
	return nil
}
