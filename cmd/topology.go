package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kilianp07/trafficgrid/core/grid"
)

var topologyJSON bool

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Build the configured grid and print a summary",
	RunE:  topology,
}

func init() {
	topologyCmd.Flags().BoolVar(&topologyJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(topologyCmd)
}

func topology(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	desc, err := cfg.Grid.Load()
	if err != nil {
		return err
	}
	topo, err := grid.Build(desc)
	if err != nil {
		return err
	}
	s := topo.Summarize()
	out := cmd.OutOrStdout()
	if topologyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(out, "network %s\n", s.Name)
	for _, k := range sortedKeys(s.Buses) {
		fmt.Fprintf(out, "  buses %-16s %d\n", k, s.Buses[k])
	}
	fmt.Fprintf(out, "  lines %d, transformers %d\n", s.Lines, s.Transformers)
	fmt.Fprintf(out, "  generators %d (%.1f MW)\n", s.Generators, s.CapacityMW)
	for _, k := range sortedKeys(s.Loads) {
		fmt.Fprintf(out, "  loads %-16s %d (%.2f MW base)\n", k, s.Loads[k], s.BaseLoadMW[k])
	}
	fmt.Fprintf(out, "  stations %d, chargers %d (%.2f MW)\n", s.Stations, s.Chargers, s.EVCapacityMW)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
