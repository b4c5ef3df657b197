package config

import "github.com/kilianp07/trafficgrid/core/grid"

// GridConfig points at the network description.
type GridConfig struct {
	// Description is a YAML file. Empty uses the embedded Manhattan network.
	Description string `json:"description"`
}

// Load reads the configured description.
func (c GridConfig) Load() (*grid.Description, error) {
	if c.Description == "" {
		return grid.DefaultDescription(), nil
	}
	return grid.LoadDescription(c.Description)
}
