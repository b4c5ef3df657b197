package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trafficgrid/app"
	"github.com/kilianp07/trafficgrid/core/coupling"
)

var simulateTicks int

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the engine offline and print one status line per tick",
	RunE:  simulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simulateTicks, "ticks", "n", 60, "number of ticks to run")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, err := app.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	errs, err := eng.Orchestrator.Initialize(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range errs {
		fmt.Fprintf(cmd.ErrOrStderr(), "init: %v\n", e)
	}
	return eng.Orchestrator.Run(ctx, 0, simulateTicks, func(rep coupling.TickReport) {
		fmt.Fprintln(out, statusLine(rep.Status))
	})
}

func statusLine(s coupling.Status) string {
	return fmt.Sprintf("%5d %s load=%7.2fMW gen=%7.2fMW bal=%+7.2fMW ev=%5.2fMW ren=%5.1f%% maxline=%5.1f%% vehicles=%d charging=%d violations=%d",
		s.Tick, s.Time.UTC().Format("15:04:05"),
		s.LoadMW, s.GenerationMW, s.BalanceMW, s.Breakdown.EVChargingMW,
		s.RenewablePercent, s.MaxLineUtilization,
		s.Vehicles.Total, s.Vehicles.Charging, s.Violations.Critical)
}
