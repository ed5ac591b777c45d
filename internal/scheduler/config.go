package scheduler

import "time"

// Config holds the scheduler knobs. It is passed by value and may be
// replaced at runtime with Scheduler.UpdateConfig.
type Config struct {
	MaxWorkers            int
	MaxBatchSize          int
	QueueSoftLimit        int
	QueueHardLimit        int
	Backoff               time.Duration
	PressureCooldown      time.Duration
	PressureHeuristicOnly bool
	MaxRetries            int
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		MaxWorkers:            2,
		MaxBatchSize:          2,
		QueueSoftLimit:        8,
		QueueHardLimit:        32,
		Backoff:               250 * time.Millisecond,
		PressureCooldown:      5 * time.Second,
		PressureHeuristicOnly: true,
		MaxRetries:            2,
	}
}

// withDefaults fills non-positive limits from DefaultConfig. Backoff,
// PressureCooldown and MaxRetries legitimately accept zero.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = d.MaxBatchSize
	}
	if c.QueueSoftLimit <= 0 {
		c.QueueSoftLimit = d.QueueSoftLimit
	}
	if c.QueueHardLimit <= 0 {
		c.QueueHardLimit = d.QueueHardLimit
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	if c.PressureCooldown < 0 {
		c.PressureCooldown = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}
