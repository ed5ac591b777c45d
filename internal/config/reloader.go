package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"go-image-moderation/internal/logger"
)

// ApplyFunc receives every successfully parsed runtime config
type ApplyFunc func(cfg *RuntimeConfig) error

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Reloader re-reads the runtime config file on a cron schedule and hands
// changed contents to the registered ApplyFunc. An invalid file leaves the
// running configuration untouched.
type Reloader struct {
	path     string
	schedule string
	apply    ApplyFunc
	cron     *cron.Cron
	log      *logrus.Entry

	mu      sync.Mutex
	last    [sha256.Size]byte
	loaded  bool
	current *RuntimeConfig
}

// NewReloader validates schedule and returns a stopped reloader
func NewReloader(path, schedule string, apply ApplyFunc) (*Reloader, error) {
	if apply == nil {
		return nil, fmt.Errorf("reloader requires an apply function")
	}
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid reload schedule '%s': %w", schedule, err)
	}
	return &Reloader{
		path:     path,
		schedule: schedule,
		apply:    apply,
		cron:     cron.New(cron.WithParser(scheduleParser)),
		log:      logger.WithComponent("config-reloader"),
	}, nil
}

// Reload reads the file and applies it when its contents changed since the
// last successful apply. It reports whether anything was applied.
func (r *Reloader) Reload() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading config: %w", err)
	}
	sum := sha256.Sum256(data)
	if r.loaded && sum == r.last {
		return false, nil
	}

	cfg, err := ParseRuntime(data)
	if err != nil {
		return false, err
	}
	if err := r.apply(cfg); err != nil {
		return false, fmt.Errorf("applying config: %w", err)
	}
	r.last = sum
	r.loaded = true
	r.current = cfg
	return true, nil
}

// Current returns the last applied config, or nil before the first Reload
func (r *Reloader) Current() *RuntimeConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Start schedules periodic reloads
func (r *Reloader) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		changed, err := r.Reload()
		if err != nil {
			r.log.WithError(err).WithField("path", r.path).Warn("Config reload rejected, keeping previous configuration")
			return
		}
		if changed {
			r.log.WithField("path", r.path).Info("Runtime configuration reloaded")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling config reload: %w", err)
	}
	r.cron.Start()
	r.log.WithFields(logrus.Fields{
		"path":     r.path,
		"schedule": r.schedule,
	}).Info("Config reload scheduled")
	return nil
}

// Stop halts the schedule and waits for a running reload to finish
func (r *Reloader) Stop() {
	<-r.cron.Stop().Done()
}
