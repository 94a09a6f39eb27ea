package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GlobalConfig is the runtime-wide tuning surface: history depth, default
// priority, breathing limits, and TimeKeeper tick granularity. Maps to the
// `cyre:` root key in YAML.
type GlobalConfig struct {
	History   HistoryConfig   `mapstructure:"history"`
	Priority  PriorityConfig  `mapstructure:"priority"`
	Breathing BreathingConfig `mapstructure:"breathing"`
	TimeKeep  TimeKeeperConfig `mapstructure:"timekeeper"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// HistoryConfig bounds the payload-state ring buffer.
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// PriorityConfig sets the channel default when none is declared.
type PriorityConfig struct {
	Default string `mapstructure:"default"`
}

// BreathingConfig sets the stress-estimator limits and recuperation
// hysteresis used by the breathing controller.
type BreathingConfig struct {
	CPUMax        float64       `mapstructure:"cpu_max"`
	MemMax        float64       `mapstructure:"mem_max"`
	LoopLagMaxMS  float64       `mapstructure:"loop_lag_max_ms"`
	CallRateMax   float64       `mapstructure:"call_rate_max"`
	BaseRateMS    int           `mapstructure:"base_rate_ms"`
	MaxRateMS     int           `mapstructure:"max_rate_ms"`
	RecoveryRateMS int          `mapstructure:"recovery_rate_ms"`
	RecuperationEnterStress float64 `mapstructure:"recuperation_enter_stress"`
	RecuperationExitStress  float64 `mapstructure:"recuperation_exit_stress"`
	MinRecovery   time.Duration `mapstructure:"min_recovery"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
}

// TimeKeeperConfig sets the scheduler's cooperative tick granularity.
type TimeKeeperConfig struct {
	TickResolution time.Duration `mapstructure:"tick_resolution"`
}

// LogConfig mirrors the teacher's logging knobs, generalized to cyrelog.
type LogConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LogFileConfig    `mapstructure:"file"`
	Loki   LogLokiConfig    `mapstructure:"loki"`
}

// LogFileConfig configures lumberjack-backed file rotation.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// LogLokiConfig configures the Loki HTTP batch sink.
type LogLokiConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// MetricsConfig toggles whether the call engine and TimeKeeper record into
// the Prometheus collectors; the collectors themselves are registered when
// the metrics package is initialised, whatever this is set to.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type configRoot struct {
	Cyre GlobalConfig `mapstructure:"cyre"`
}

// Load reads global configuration from a YAML file. The file uses `cyre:`
// as its root key; environment variables use a CYRE_ prefix (e.g.
// CYRE_LOG_LEVEL overrides cyre.log.level).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// Every key already lives under the cyre. root, so the replacer alone
	// yields CYRE_-prefixed names; an extra env prefix would double it.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg := root.Cyre
	cfg.applyZeroDefaults()
	return &cfg, nil
}

// Default returns the configuration a runtime starts with when no file is
// supplied.
func Default() *GlobalConfig {
	v := viper.New()
	setDefaults(v)

	var root configRoot
	_ = v.Unmarshal(&root)
	cfg := root.Cyre
	cfg.applyZeroDefaults()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cyre.history.max_entries", 50)
	v.SetDefault("cyre.priority.default", "medium")

	v.SetDefault("cyre.breathing.cpu_max", 0.9)
	v.SetDefault("cyre.breathing.mem_max", 0.9)
	v.SetDefault("cyre.breathing.loop_lag_max_ms", 100.0)
	v.SetDefault("cyre.breathing.call_rate_max", 1000.0)
	v.SetDefault("cyre.breathing.base_rate_ms", 50)
	v.SetDefault("cyre.breathing.max_rate_ms", 2000)
	v.SetDefault("cyre.breathing.recovery_rate_ms", 500)
	v.SetDefault("cyre.breathing.recuperation_enter_stress", 0.8)
	v.SetDefault("cyre.breathing.recuperation_exit_stress", 0.7)
	v.SetDefault("cyre.breathing.min_recovery", "1s")
	v.SetDefault("cyre.breathing.sample_interval", "250ms")

	v.SetDefault("cyre.timekeeper.tick_resolution", "10ms")

	v.SetDefault("cyre.log.level", "info")
	v.SetDefault("cyre.log.format", "json")
	v.SetDefault("cyre.log.file.enabled", false)
	v.SetDefault("cyre.log.file.max_size_mb", 100)
	v.SetDefault("cyre.log.file.max_age_days", 30)
	v.SetDefault("cyre.log.file.max_backups", 5)
	v.SetDefault("cyre.log.file.compress", true)
	v.SetDefault("cyre.log.loki.enabled", false)
	v.SetDefault("cyre.log.loki.batch_size", 100)
	v.SetDefault("cyre.log.loki.flush_interval", "2s")

	v.SetDefault("cyre.metrics.enabled", true)
}

// applyZeroDefaults fills fields that are still at their zero value after
// Load/Default unmarshal (for example a file that sets them to 0). It runs
// only inside Load and Default; a GlobalConfig built by hand is used as is.
func (c *GlobalConfig) applyZeroDefaults() {
	if c.History.MaxEntries == 0 {
		c.History.MaxEntries = 50
	}
	if c.Priority.Default == "" {
		c.Priority.Default = "medium"
	}
	if c.TimeKeep.TickResolution == 0 {
		c.TimeKeep.TickResolution = 10 * time.Millisecond
	}
	if c.Breathing.MinRecovery == 0 {
		c.Breathing.MinRecovery = time.Second
	}
	if c.Breathing.SampleInterval == 0 {
		c.Breathing.SampleInterval = 250 * time.Millisecond
	}
}
