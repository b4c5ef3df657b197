package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trafficgrid/core/ticklog"
	"github.com/kilianp07/trafficgrid/pkg/export"
)

var reportOpts struct {
	format string
	output string
	runID  string
	start  string
	end    string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the tick log as CSV, JSON or an HTML chart",
	RunE:  report,
}

func init() {
	f := reportCmd.Flags()
	f.StringVarP(&reportOpts.format, "format", "f", "csv", "csv, sessions, json or html")
	f.StringVarP(&reportOpts.output, "output", "o", "-", "output file, - for stdout")
	f.StringVar(&reportOpts.runID, "run", "", "only this run id")
	f.StringVar(&reportOpts.start, "start", "", "RFC 3339 lower bound")
	f.StringVar(&reportOpts.end, "end", "", "RFC 3339 upper bound")
	rootCmd.AddCommand(reportCmd)
}

func report(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	q := ticklog.Query{RunID: reportOpts.runID}
	if q.Start, err = parseTime(reportOpts.start); err != nil {
		return err
	}
	if q.End, err = parseTime(reportOpts.end); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	store, err := ticklog.Open(ctx, cfg.TickLog)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("tick log is disabled in the configuration")
	}
	defer func() { _ = store.Close() }()
	recs, err := store.Query(ctx, q)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if reportOpts.output != "-" {
		f, err := os.Create(reportOpts.output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	switch reportOpts.format {
	case "csv":
		return export.WriteCSV(w, recs)
	case "sessions":
		return export.WriteSessionsCSV(w, recs)
	case "json":
		return export.WriteJSON(w, recs)
	case "html":
		title := "Grid load"
		if q.RunID != "" {
			title += " " + q.RunID
		}
		return export.WriteLoadChart(w, title, recs)
	default:
		return fmt.Errorf("unknown format %q", reportOpts.format)
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return t, nil
}
