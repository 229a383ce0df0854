package config

import "time"

// Config is the top-level configuration carrier.
type Config struct {
	App       AppConfig       `toml:"app"`
	Loop      LoopConfig      `toml:"loop"`
	Evidence  EvidenceConfig  `toml:"evidence"`
	Cycle     CycleConfig     `toml:"cycle"`
	Planner   PlannerConfig   `toml:"planner"`
	Oracle    OracleConfig    `toml:"oracle"`
	Intel     IntelConfig     `toml:"intel"`
	Store     StoreConfig     `toml:"store"`
	CycleLog  CycleLogConfig  `toml:"cyclelog"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Trading   TradingConfig   `toml:"trading"`
	Seed      SeedConfig      `toml:"seed"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// LoopConfig holds the reasoning-loop guardrail knobs. These are the hot
// reloadable subset.
type LoopConfig struct {
	MaxSteps        int `toml:"max_steps"`
	EscalateAfter   int `toml:"escalate_after"`
	RepeatThreshold int `toml:"repeat_threshold"`
}

type EvidenceConfig struct {
	TolerancePct float64 `toml:"tolerance_pct"`
}

type CycleConfig struct {
	DeadlineSeconds int `toml:"deadline_seconds"`
}

type PlannerConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
	MaxHistory     int    `toml:"max_history_chars"`
}

func (p PlannerConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type OracleConfig struct {
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RatePerSecond  float64 `toml:"rate_per_second"`
}

type IntelConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	MaxResults     int    `toml:"max_results"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type CycleLogConfig struct {
	Path string `toml:"path"`
}

type SchedulerConfig struct {
	Enabled        bool `toml:"enabled"`
	IntervalSec    int  `toml:"interval_seconds"`
	OffsetSec      int  `toml:"offset_seconds"`
	RunImmediately bool `toml:"run_immediately"`
}

func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalSec <= 0 {
		return time.Hour
	}
	return time.Duration(s.IntervalSec) * time.Second
}

func (s SchedulerConfig) Offset() time.Duration {
	if s.OffsetSec < 0 {
		return 0
	}
	return time.Duration(s.OffsetSec) * time.Second
}

type TradingConfig struct {
	Candidates      []string `toml:"candidates"`
	MaxBuysPerCycle int      `toml:"max_buys_per_cycle"`
}

type SeedConfig struct {
	Path string `toml:"path"`
}
