package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"go-image-moderation/internal/analyzer"
	"go-image-moderation/internal/moderation"
	"go-image-moderation/internal/scheduler"
	"go-image-moderation/pkg/category"
)

// RuntimeConfig is the hot-reloadable moderation configuration. It is read
// from YAML and then overridden from the environment.
type RuntimeConfig struct {
	Scheduler     SchedulerSettings   `yaml:"scheduler"`
	Terms         category.TermSets   `yaml:"terms"`
	Thresholds    category.Thresholds `yaml:"thresholds"`
	NSFWThreshold float64             `yaml:"nsfw_threshold"`
	Analyzer      AnalyzerSettings    `yaml:"analyzer"`
}

type SchedulerSettings struct {
	MaxWorkers            int           `yaml:"max_workers"`
	MaxBatchSize          int           `yaml:"max_batch_size"`
	QueueSoftLimit        int           `yaml:"queue_soft_limit"`
	QueueHardLimit        int           `yaml:"queue_hard_limit"`
	Backoff               time.Duration `yaml:"backoff"`
	PressureCooldown      time.Duration `yaml:"pressure_cooldown"`
	PressureHeuristicOnly bool          `yaml:"pressure_heuristic_only"`
	MaxRetries            int           `yaml:"max_retries"`
}

type AnalyzerSettings struct {
	Thresholds    analyzer.Thresholds `yaml:",inline"`
	BlockedHashes []string            `yaml:"blocked_hashes"`
}

// DefaultRuntimeConfig mirrors the package defaults of the scheduler,
// the moderation engine and the analyzer.
func DefaultRuntimeConfig() *RuntimeConfig {
	sc := scheduler.DefaultConfig()
	mc := moderation.DefaultConfig()
	return &RuntimeConfig{
		Scheduler: SchedulerSettings{
			MaxWorkers:            sc.MaxWorkers,
			MaxBatchSize:          sc.MaxBatchSize,
			QueueSoftLimit:        sc.QueueSoftLimit,
			QueueHardLimit:        sc.QueueHardLimit,
			Backoff:               sc.Backoff,
			PressureCooldown:      sc.PressureCooldown,
			PressureHeuristicOnly: sc.PressureHeuristicOnly,
			MaxRetries:            sc.MaxRetries,
		},
		Terms:         mc.Terms,
		Thresholds:    mc.Thresholds,
		NSFWThreshold: mc.NSFWThreshold,
		Analyzer: AnalyzerSettings{
			Thresholds: analyzer.DefaultThresholds(),
		},
	}
}

// LoadRuntime reads the YAML file at path on top of the defaults. A missing
// file is not an error.
func LoadRuntime(path string) (*RuntimeConfig, error) {
	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		data = raw
	}
	return ParseRuntime(data)
}

// ParseRuntime decodes data over the defaults, applies environment
// overrides and validates the result.
func ParseRuntime(data []byte) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RuntimeConfig) applyEnv() error {
	var errs []error
	s := &c.Scheduler
	errs = append(errs,
		envOverrideInt(&s.MaxWorkers, "SCHEDULER_MAX_WORKERS"),
		envOverrideInt(&s.MaxBatchSize, "SCHEDULER_MAX_BATCH_SIZE"),
		envOverrideInt(&s.QueueSoftLimit, "SCHEDULER_QUEUE_SOFT_LIMIT"),
		envOverrideInt(&s.QueueHardLimit, "SCHEDULER_QUEUE_HARD_LIMIT"),
		envOverrideDuration(&s.Backoff, "SCHEDULER_BACKOFF"),
		envOverrideDuration(&s.PressureCooldown, "SCHEDULER_PRESSURE_COOLDOWN"),
		envOverrideInt(&s.MaxRetries, "SCHEDULER_MAX_RETRIES"),
		envOverrideFloat(&c.NSFWThreshold, "MODERATION_NSFW_THRESHOLD"),
	)
	envOverrideBool(&s.PressureHeuristicOnly, "SCHEDULER_PRESSURE_HEURISTIC_ONLY")
	return errors.Join(errs...)
}

// Validate rejects values the components would silently clamp
func (c *RuntimeConfig) Validate() error {
	s := c.Scheduler
	switch {
	case s.MaxWorkers < 1:
		return fmt.Errorf("scheduler.max_workers must be >= 1 (got %d)", s.MaxWorkers)
	case s.MaxBatchSize < 1:
		return fmt.Errorf("scheduler.max_batch_size must be >= 1 (got %d)", s.MaxBatchSize)
	case s.QueueSoftLimit < 1:
		return fmt.Errorf("scheduler.queue_soft_limit must be >= 1 (got %d)", s.QueueSoftLimit)
	case s.QueueHardLimit < s.QueueSoftLimit:
		return fmt.Errorf("scheduler.queue_hard_limit (%d) must be >= queue_soft_limit (%d)", s.QueueHardLimit, s.QueueSoftLimit)
	case s.Backoff < 0 || s.PressureCooldown < 0:
		return fmt.Errorf("scheduler durations must not be negative")
	case s.MaxRetries < 0:
		return fmt.Errorf("scheduler.max_retries must be >= 0 (got %d)", s.MaxRetries)
	}
	if c.Thresholds.Adult < 0 || c.Thresholds.Minor < 0 || c.Thresholds.Beast < 0 {
		return fmt.Errorf("thresholds must not be negative")
	}
	if c.NSFWThreshold < 0 || c.NSFWThreshold > 1 {
		return fmt.Errorf("nsfw_threshold must be within [0,1] (got %v)", c.NSFWThreshold)
	}
	t := c.Analyzer.Thresholds
	if t.SkinRatio < 0 || t.SkinRatio > 1 || t.NSFW < 0 || t.NSFW > 1 {
		return fmt.Errorf("analyzer thresholds must be within [0,1]")
	}
	if t.HashDistance < 0 {
		return fmt.Errorf("analyzer.hash_distance must be >= 0 (got %d)", t.HashDistance)
	}
	return nil
}

func (c *RuntimeConfig) SchedulerConfig() scheduler.Config {
	s := c.Scheduler
	return scheduler.Config{
		MaxWorkers:            s.MaxWorkers,
		MaxBatchSize:          s.MaxBatchSize,
		QueueSoftLimit:        s.QueueSoftLimit,
		QueueHardLimit:        s.QueueHardLimit,
		Backoff:               s.Backoff,
		PressureCooldown:      s.PressureCooldown,
		PressureHeuristicOnly: s.PressureHeuristicOnly,
		MaxRetries:            s.MaxRetries,
	}
}

func (c *RuntimeConfig) ModerationConfig() moderation.Config {
	return moderation.Config{
		Terms:         c.Terms,
		Thresholds:    c.Thresholds,
		NSFWThreshold: c.NSFWThreshold,
	}
}

func (c *RuntimeConfig) AnalyzerSettings() analyzer.Settings {
	return analyzer.Settings{
		Thresholds:    c.Analyzer.Thresholds,
		BlockedHashes: c.Analyzer.BlockedHashes,
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}
