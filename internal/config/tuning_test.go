package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := &TuningConfig{}

	if got := cfg.GetLearningRate(); got != 0.1 {
		t.Errorf("GetLearningRate() = %v, want 0.1", got)
	}
	if got := cfg.GetEscalationBoostMax(); got != 0.5 {
		t.Errorf("GetEscalationBoostMax() = %v, want 0.5", got)
	}
	if got := cfg.GetThresholdFloor(); got != 40 {
		t.Errorf("GetThresholdFloor() = %v, want 40", got)
	}
	if got := cfg.GetThresholdCeiling(); got != 95 {
		t.Errorf("GetThresholdCeiling() = %v, want 95", got)
	}
	if got := cfg.GetEscalationWindow(); got != 60*time.Second {
		t.Errorf("GetEscalationWindow() = %v, want 60s", got)
	}
	if got := cfg.GetConvergenceWindow(); got != 5 {
		t.Errorf("GetConvergenceWindow() = %v, want 5", got)
	}
	if !cfg.GetPrefilterEnabled() {
		t.Error("GetPrefilterEnabled() = false, want true")
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{"learning_rate": 0.2, "queue_capacity": 32, "cache_l3_ttl": "90s"}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig() error: %v", err)
	}
	if got := cfg.GetLearningRate(); got != 0.2 {
		t.Errorf("GetLearningRate() = %v, want 0.2", got)
	}
	if got := cfg.GetQueueCapacity(); got != 32 {
		t.Errorf("GetQueueCapacity() = %v, want 32", got)
	}
	if got := cfg.GetCacheL3TTL(); got != 90*time.Second {
		t.Errorf("GetCacheL3TTL() = %v, want 90s", got)
	}
	// Untouched fields keep defaults.
	if got := cfg.GetWorkerCap(); got != 8 {
		t.Errorf("GetWorkerCap() = %v, want default 8", got)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("LoadTuningConfig accepted a .yaml file")
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"learning rate above 1", `{"learning_rate": 1.5}`},
		{"learning rate zero", `{"learning_rate": 0}`},
		{"boost above 1", `{"escalation_boost_max": 1.2}`},
		{"floor above ceiling", `{"threshold_floor": 90, "threshold_ceiling": 50}`},
		{"zero workers", `{"worker_cap": 0}`},
		{"negative queue", `{"queue_capacity": -1}`},
		{"hamming out of range", `{"similarity_threshold": 99}`},
		{"bad duration", `{"sweep_interval": "fast"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("LoadTuningConfig accepted invalid config %s", tt.content)
			}
		})
	}
}
