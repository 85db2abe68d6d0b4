// Package config holds the runtime tuning parameters for the detection
// engine. All fields are optional pointers: a partial JSON file overrides
// only what it names, and the Get* accessors supply defaults for the rest.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for engine tuning
// parameters. The same JSON schema serves startup configuration and
// runtime updates, so partial configs are safe.
type TuningConfig struct {
	// Learner params
	LearningRate       *float64 `json:"learning_rate,omitempty"`       // damping on raw feedback deltas
	ThresholdFloor     *float64 `json:"threshold_floor,omitempty"`     // clamp lower bound
	ThresholdCeiling   *float64 `json:"threshold_ceiling,omitempty"`   // clamp upper bound
	DefaultThreshold   *float64 `json:"default_threshold,omitempty"`   // initial per-category threshold
	ConvergenceWindow  *int     `json:"convergence_window,omitempty"`  // trailing deltas examined
	ConvergenceEpsilon *float64 `json:"convergence_epsilon,omitempty"` // |delta| below this counts as stable

	// Escalation params
	EscalationBoostMax  *float64 `json:"escalation_boost_max,omitempty"`  // max boost fraction of base confidence
	EscalationWindow    *string  `json:"escalation_window,omitempty"`     // duration string like "60s"
	SevereRateThreshold *float64 `json:"severe_rate_threshold,omitempty"` // points/second

	// Scheduler params
	WorkerCap     *int `json:"worker_cap,omitempty"`     // max concurrent executors
	QueueCapacity *int `json:"queue_capacity,omitempty"` // hard submission bound

	// Cache params
	CacheL1Capacity     *int     `json:"cache_l1_capacity,omitempty"`
	CacheL2Capacity     *int     `json:"cache_l2_capacity,omitempty"`
	CacheL3Capacity     *int     `json:"cache_l3_capacity,omitempty"`
	CacheL1TTL          *string  `json:"cache_l1_ttl,omitempty"` // duration string like "30s"
	CacheL2TTL          *string  `json:"cache_l2_ttl,omitempty"`
	CacheL3TTL          *string  `json:"cache_l3_ttl,omitempty"`
	CacheMemoryBudgetMB *float64 `json:"cache_memory_budget_mb,omitempty"` // per level
	SimilarityThreshold *int     `json:"similarity_threshold,omitempty"`   // max Hamming distance for dedup
	SweepInterval       *string  `json:"sweep_interval,omitempty"`         // TTL purge cadence

	// Pre-filter params
	PrefilterEnabled *bool `json:"prefilter_enabled,omitempty"`
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are in range.
func (c *TuningConfig) Validate() error {
	if c.LearningRate != nil {
		if *c.LearningRate <= 0 || *c.LearningRate > 1 {
			return fmt.Errorf("learning_rate must be in (0, 1], got %f", *c.LearningRate)
		}
	}
	if c.EscalationBoostMax != nil {
		if *c.EscalationBoostMax < 0 || *c.EscalationBoostMax > 1 {
			return fmt.Errorf("escalation_boost_max must be in [0, 1], got %f", *c.EscalationBoostMax)
		}
	}
	if c.ThresholdFloor != nil && c.ThresholdCeiling != nil {
		if *c.ThresholdFloor >= *c.ThresholdCeiling {
			return fmt.Errorf("threshold_floor %f must be below threshold_ceiling %f",
				*c.ThresholdFloor, *c.ThresholdCeiling)
		}
	}
	if c.WorkerCap != nil && *c.WorkerCap < 1 {
		return fmt.Errorf("worker_cap must be positive, got %d", *c.WorkerCap)
	}
	if c.QueueCapacity != nil && *c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be positive, got %d", *c.QueueCapacity)
	}
	if c.SimilarityThreshold != nil && (*c.SimilarityThreshold < 0 || *c.SimilarityThreshold > 64) {
		return fmt.Errorf("similarity_threshold must be in [0, 64], got %d", *c.SimilarityThreshold)
	}
	for name, v := range map[string]*string{
		"escalation_window": c.EscalationWindow,
		"cache_l1_ttl":      c.CacheL1TTL,
		"cache_l2_ttl":      c.CacheL2TTL,
		"cache_l3_ttl":      c.CacheL3TTL,
		"sweep_interval":    c.SweepInterval,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetLearningRate returns the learning_rate value or the default.
// The 0.1 default is an empirically chosen product-tuning value.
func (c *TuningConfig) GetLearningRate() float64 {
	if c.LearningRate == nil {
		return 0.1
	}
	return *c.LearningRate
}

// GetThresholdFloor returns the threshold_floor value or the default.
func (c *TuningConfig) GetThresholdFloor() float64 {
	if c.ThresholdFloor == nil {
		return 40
	}
	return *c.ThresholdFloor
}

// GetThresholdCeiling returns the threshold_ceiling value or the default.
func (c *TuningConfig) GetThresholdCeiling() float64 {
	if c.ThresholdCeiling == nil {
		return 95
	}
	return *c.ThresholdCeiling
}

// GetDefaultThreshold returns the default_threshold value or the default.
func (c *TuningConfig) GetDefaultThreshold() float64 {
	if c.DefaultThreshold == nil {
		return 70
	}
	return *c.DefaultThreshold
}

// GetConvergenceWindow returns the convergence_window value or the default.
func (c *TuningConfig) GetConvergenceWindow() int {
	if c.ConvergenceWindow == nil {
		return 5
	}
	return *c.ConvergenceWindow
}

// GetConvergenceEpsilon returns the convergence_epsilon value or the default.
func (c *TuningConfig) GetConvergenceEpsilon() float64 {
	if c.ConvergenceEpsilon == nil {
		return 2
	}
	return *c.ConvergenceEpsilon
}

// GetEscalationBoostMax returns the escalation_boost_max value or the
// default. The 0.5 default is an empirically chosen product-tuning value.
func (c *TuningConfig) GetEscalationBoostMax() float64 {
	if c.EscalationBoostMax == nil {
		return 0.5
	}
	return *c.EscalationBoostMax
}

// GetEscalationWindow returns the trailing detection-history window.
func (c *TuningConfig) GetEscalationWindow() time.Duration {
	return durationOr(c.EscalationWindow, 60*time.Second)
}

// GetSevereRateThreshold returns the severe_rate_threshold value or the default.
func (c *TuningConfig) GetSevereRateThreshold() float64 {
	if c.SevereRateThreshold == nil {
		return 2 // points/second
	}
	return *c.SevereRateThreshold
}

// GetWorkerCap returns the worker_cap value or the default.
func (c *TuningConfig) GetWorkerCap() int {
	if c.WorkerCap == nil {
		return 8
	}
	return *c.WorkerCap
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *TuningConfig) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return 256
	}
	return *c.QueueCapacity
}

// GetCacheL1Capacity returns the cache_l1_capacity value or the default.
func (c *TuningConfig) GetCacheL1Capacity() int {
	if c.CacheL1Capacity == nil {
		return 512
	}
	return *c.CacheL1Capacity
}

// GetCacheL2Capacity returns the cache_l2_capacity value or the default.
func (c *TuningConfig) GetCacheL2Capacity() int {
	if c.CacheL2Capacity == nil {
		return 256
	}
	return *c.CacheL2Capacity
}

// GetCacheL3Capacity returns the cache_l3_capacity value or the default.
func (c *TuningConfig) GetCacheL3Capacity() int {
	if c.CacheL3Capacity == nil {
		return 128
	}
	return *c.CacheL3Capacity
}

// GetCacheL1TTL returns the L1 time-to-live.
func (c *TuningConfig) GetCacheL1TTL() time.Duration {
	return durationOr(c.CacheL1TTL, 30*time.Second)
}

// GetCacheL2TTL returns the L2 time-to-live.
func (c *TuningConfig) GetCacheL2TTL() time.Duration {
	return durationOr(c.CacheL2TTL, 2*time.Minute)
}

// GetCacheL3TTL returns the L3 time-to-live.
func (c *TuningConfig) GetCacheL3TTL() time.Duration {
	return durationOr(c.CacheL3TTL, 5*time.Minute)
}

// GetCacheMemoryBudgetMB returns the per-level memory budget in MB.
func (c *TuningConfig) GetCacheMemoryBudgetMB() float64 {
	if c.CacheMemoryBudgetMB == nil {
		return 16
	}
	return *c.CacheMemoryBudgetMB
}

// GetSimilarityThreshold returns the max Hamming distance treated as a
// duplicate by cache deduplication.
func (c *TuningConfig) GetSimilarityThreshold() int {
	if c.SimilarityThreshold == nil {
		return 6
	}
	return *c.SimilarityThreshold
}

// GetSweepInterval returns the TTL purge cadence.
func (c *TuningConfig) GetSweepInterval() time.Duration {
	return durationOr(c.SweepInterval, 15*time.Second)
}

// GetPrefilterEnabled returns the prefilter_enabled value or the default.
func (c *TuningConfig) GetPrefilterEnabled() bool {
	if c.PrefilterEnabled == nil {
		return true
	}
	return *c.PrefilterEnabled
}
