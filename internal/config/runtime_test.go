package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-image-moderation/internal/analyzer"
	"go-image-moderation/internal/scheduler"
)

const sampleYAML = `
scheduler:
  max_workers: 4
  queue_soft_limit: 10
  queue_hard_limit: 40
  backoff: 500ms
  pressure_heuristic_only: false
terms:
  minor_terms: [child, loli]
thresholds:
  adult: 12
  minor: 2
  beast: 3
nsfw_threshold: 0.7
analyzer:
  skin_ratio: 0.5
  hash_distance: 4
  blocked_hashes: ["ffffffffffffffff"]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moderation.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadRuntime_MissingFile(t *testing.T) {
	cfg, err := LoadRuntime(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.SchedulerConfig() != scheduler.DefaultConfig() {
		t.Errorf("Expected scheduler defaults, got %+v", cfg.SchedulerConfig())
	}
	if cfg.Analyzer.Thresholds != analyzer.DefaultThresholds() {
		t.Errorf("Expected analyzer defaults, got %+v", cfg.Analyzer.Thresholds)
	}
}

func TestLoadRuntime_File(t *testing.T) {
	cfg, err := LoadRuntime(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sc := cfg.SchedulerConfig()
	if sc.MaxWorkers != 4 || sc.QueueSoftLimit != 10 || sc.QueueHardLimit != 40 {
		t.Errorf("Unexpected scheduler limits: %+v", sc)
	}
	if sc.Backoff != 500*time.Millisecond {
		t.Errorf("Expected 500ms backoff, got %s", sc.Backoff)
	}
	if sc.PressureHeuristicOnly {
		t.Error("Expected pressure_heuristic_only to be false")
	}
	// Unset keys keep their defaults
	if sc.MaxBatchSize != scheduler.DefaultConfig().MaxBatchSize {
		t.Errorf("Expected default batch size, got %d", sc.MaxBatchSize)
	}

	mc := cfg.ModerationConfig()
	if len(mc.Terms.Minor) != 2 {
		t.Errorf("Expected minor terms to be replaced, got %v", mc.Terms.Minor)
	}
	if len(mc.Terms.Adult) == 0 {
		t.Error("Expected default adult terms to survive")
	}
	if mc.Thresholds.Adult != 12 || mc.Thresholds.Minor != 2 {
		t.Errorf("Unexpected thresholds: %+v", mc.Thresholds)
	}
	if mc.NSFWThreshold != 0.7 {
		t.Errorf("Expected nsfw threshold 0.7, got %v", mc.NSFWThreshold)
	}

	as := cfg.AnalyzerSettings()
	if as.Thresholds.SkinRatio != 0.5 || as.Thresholds.HashDistance != 4 {
		t.Errorf("Unexpected analyzer thresholds: %+v", as.Thresholds)
	}
	if as.Thresholds.NSFW != analyzer.DefaultThresholds().NSFW {
		t.Errorf("Expected default analyzer nsfw threshold, got %v", as.Thresholds.NSFW)
	}
	if len(as.BlockedHashes) != 1 {
		t.Errorf("Expected 1 blocked hash, got %d", len(as.BlockedHashes))
	}
}

func TestParseRuntime_EnvOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_WORKERS", "6")
	t.Setenv("SCHEDULER_BACKOFF", "1s")
	t.Setenv("SCHEDULER_PRESSURE_HEURISTIC_ONLY", "true")

	cfg, err := ParseRuntime([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Scheduler.MaxWorkers != 6 {
		t.Errorf("Expected env to win with 6 workers, got %d", cfg.Scheduler.MaxWorkers)
	}
	if cfg.Scheduler.Backoff != time.Second {
		t.Errorf("Expected 1s backoff, got %s", cfg.Scheduler.Backoff)
	}
	if !cfg.Scheduler.PressureHeuristicOnly {
		t.Error("Expected env to enable pressure_heuristic_only")
	}
}

func TestParseRuntime_BadEnv(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_RETRIES", "many")
	if _, err := ParseRuntime(nil); err == nil {
		t.Error("Expected error for non-numeric SCHEDULER_MAX_RETRIES")
	}
}

func TestParseRuntime_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "scheduler: [unterminated"},
		{"zero workers", "scheduler:\n  max_workers: 0\n"},
		{"hard below soft", "scheduler:\n  queue_soft_limit: 10\n  queue_hard_limit: 5\n"},
		{"negative backoff", "scheduler:\n  backoff: -1s\n"},
		{"negative threshold", "thresholds:\n  minor: -1\n"},
		{"nsfw out of range", "nsfw_threshold: 1.5\n"},
		{"skin ratio out of range", "analyzer:\n  skin_ratio: 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRuntime([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected error for %q", tt.yaml)
			}
		})
	}
}
