package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/trafficgrid/core/ticklog"
)

// WriteLoadChart renders an HTML line chart of load, generation and EV
// charging demand over the ticks in recs.
func WriteLoadChart(w io.Writer, title string, recs []ticklog.Record) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "MW"}),
	)

	x := make([]string, 0, len(recs))
	load := make([]opts.LineData, 0, len(recs))
	gen := make([]opts.LineData, 0, len(recs))
	ev := make([]opts.LineData, 0, len(recs))
	for _, r := range recs {
		x = append(x, r.Timestamp.UTC().Format("2006-01-02 15:04:05"))
		load = append(load, opts.LineData{Value: r.Status.LoadMW})
		gen = append(gen, opts.LineData{Value: r.Status.GenerationMW})
		ev = append(ev, opts.LineData{Value: r.Status.Breakdown.EVChargingMW})
	}
	line.SetXAxis(x).
		AddSeries("Load", load).
		AddSeries("Generation", gen).
		AddSeries("EV charging", ev)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
