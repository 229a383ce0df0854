package config

// Loop guardrail defaults. The escalation threshold trails the budget so the
// planner gets a few free exploration steps before urgency kicks in.
const (
	DefaultMaxSteps        = 7
	DefaultEscalateAfter   = 4
	DefaultRepeatThreshold = 2
	DefaultTolerancePct    = 2.0
	DefaultCycleDeadline   = 300
	DefaultMaxHistory      = 4000
)

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8086"
	}
	if c.Loop.MaxSteps <= 0 {
		c.Loop.MaxSteps = DefaultMaxSteps
	}
	if c.Loop.EscalateAfter <= 0 || c.Loop.EscalateAfter >= c.Loop.MaxSteps {
		c.Loop.EscalateAfter = DefaultEscalateAfter
		if c.Loop.EscalateAfter >= c.Loop.MaxSteps {
			c.Loop.EscalateAfter = c.Loop.MaxSteps - 1
		}
	}
	if c.Loop.RepeatThreshold <= 0 {
		c.Loop.RepeatThreshold = DefaultRepeatThreshold
	}
	if c.Evidence.TolerancePct <= 0 {
		c.Evidence.TolerancePct = DefaultTolerancePct
	}
	if c.Cycle.DeadlineSeconds <= 0 {
		c.Cycle.DeadlineSeconds = DefaultCycleDeadline
	}
	if c.Planner.MaxHistory <= 0 {
		c.Planner.MaxHistory = DefaultMaxHistory
	}
	if c.Intel.MaxResults <= 0 {
		c.Intel.MaxResults = 3
	}
	if c.Oracle.RatePerSecond <= 0 {
		c.Oracle.RatePerSecond = 2
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/folio.db"
	}
	if c.CycleLog.Path == "" {
		c.CycleLog.Path = "data/cyclelog.db"
	}
	if c.Trading.MaxBuysPerCycle <= 0 {
		c.Trading.MaxBuysPerCycle = 3
	}
	if c.Seed.Path == "" {
		c.Seed.Path = "configs/seed.yaml"
	}
}
