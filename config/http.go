package config

// HTTPConfig configures the status API.
type HTTPConfig struct {
	// Addr is the listen address. "-" disables the API.
	Addr string `json:"addr"`
	// Token protects the tick history endpoint when set.
	Token string `json:"token"`
}

// SetDefaults applies default values.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Enabled reports whether the API should be served.
func (c HTTPConfig) Enabled() bool { return c.Addr != "-" }
