package dispatch

import "fmt"

// Dispatch modes.
const (
	ModeMerit = "merit"
	ModeLP    = "lp"
)

// Flow models.
const (
	FlowProxy = "proxy"
	FlowDC    = "dc"
)

// Config defines dispatch, flow and violation settings.
type Config struct {
	Mode string `json:"mode"`
	Flow string `json:"flow"`
	// DTHours is the interval used to integrate battery state of charge.
	DTHours            float64 `json:"dt_hours"`
	SurplusThresholdMW float64 `json:"surplus_threshold_mw"`
	DischargeFloor     float64 `json:"discharge_floor"`
	ChargeCeiling      float64 `json:"charge_ceiling"`
	WarningPercent     float64 `json:"warning_percent"`
	CriticalPercent    float64 `json:"critical_percent"`
	MinVoltagePU       float64 `json:"min_voltage_pu"`
	// DropAtRatedPU is the voltage drop across a line loaded at 100 %.
	DropAtRatedPU float64 `json:"drop_at_rated_pu"`
	SlackBus      string  `json:"slack_bus"`
	BaseMVA       float64 `json:"base_mva"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeMerit
	}
	if c.Flow == "" {
		c.Flow = FlowProxy
	}
	if c.DTHours <= 0 {
		c.DTHours = 0.25
	}
	if c.SurplusThresholdMW == 0 {
		c.SurplusThresholdMW = 50
	}
	if c.DischargeFloor == 0 {
		c.DischargeFloor = 0.2
	}
	if c.ChargeCeiling == 0 {
		c.ChargeCeiling = 0.9
	}
	if c.WarningPercent == 0 {
		c.WarningPercent = 90
	}
	if c.CriticalPercent == 0 {
		c.CriticalPercent = 100
	}
	if c.MinVoltagePU == 0 {
		c.MinVoltagePU = 0.95
	}
	if c.DropAtRatedPU == 0 {
		c.DropAtRatedPU = 0.02
	}
	if c.BaseMVA == 0 {
		c.BaseMVA = 100
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeMerit, ModeLP:
	default:
		return fmt.Errorf("dispatch: unknown mode %q", c.Mode)
	}
	switch c.Flow {
	case FlowProxy, FlowDC:
	default:
		return fmt.Errorf("dispatch: unknown flow model %q", c.Flow)
	}
	if c.WarningPercent >= c.CriticalPercent {
		return fmt.Errorf("dispatch: warning_percent %.0f must be below critical_percent %.0f", c.WarningPercent, c.CriticalPercent)
	}
	if c.DischargeFloor < 0 || c.ChargeCeiling > 1 || c.DischargeFloor >= c.ChargeCeiling {
		return fmt.Errorf("dispatch: invalid SOC window [%.2f, %.2f]", c.DischargeFloor, c.ChargeCeiling)
	}
	return nil
}
