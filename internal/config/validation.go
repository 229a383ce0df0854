package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	if cfg.Loop.MaxSteps < 2 {
		return fmt.Errorf("loop.max_steps must be at least 2, got %d", cfg.Loop.MaxSteps)
	}
	if cfg.Loop.EscalateAfter >= cfg.Loop.MaxSteps {
		return fmt.Errorf("loop.escalate_after (%d) must be below loop.max_steps (%d)",
			cfg.Loop.EscalateAfter, cfg.Loop.MaxSteps)
	}
	if cfg.Evidence.TolerancePct <= 0 || cfg.Evidence.TolerancePct > 50 {
		return fmt.Errorf("evidence.tolerance_pct out of range (0, 50]: %v", cfg.Evidence.TolerancePct)
	}
	if cfg.Planner.BaseURL != "" && !strings.HasPrefix(cfg.Planner.BaseURL, "http") {
		return fmt.Errorf("planner.base_url must be an http(s) URL: %s", cfg.Planner.BaseURL)
	}
	for _, t := range cfg.Trading.Candidates {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("trading.candidates contains an empty ticker")
		}
	}
	return nil
}
