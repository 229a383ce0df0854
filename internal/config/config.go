package config

import (
	"fmt"
	"sync"

	"folio/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watcher re-reads the loop guardrail knobs when the config file changes on
// disk, so step budget and tolerance can be tuned without a restart.
type Watcher struct {
	mu   sync.RWMutex
	loop LoopConfig
	tol  float64
}

func NewWatcher(path string, initial *Config) (*Watcher, error) {
	w := &Watcher{loop: initial.Loop, tol: initial.Evidence.TolerancePct}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Warnf("Config reload failed (%s): %v", e.Name, err)
			return
		}
		w.mu.Lock()
		w.loop = cfg.Loop
		w.tol = cfg.Evidence.TolerancePct
		w.mu.Unlock()
		logger.Infof("Config reloaded: max_steps=%d escalate_after=%d repeat_threshold=%d tolerance=%.2f%%",
			cfg.Loop.MaxSteps, cfg.Loop.EscalateAfter, cfg.Loop.RepeatThreshold, cfg.Evidence.TolerancePct)
	})
	v.WatchConfig()
	return w, nil
}

func (w *Watcher) Loop() LoopConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loop
}

func (w *Watcher) TolerancePct() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tol
}
