// Package learner implements the online per-category threshold learner.
// User feedback nudges each category's warn threshold up or down through a
// damped delta rule; a category converges once its recent adjustments are
// consistently small. The learner holds no I/O: thresholds import/export as
// a flat map and persistence belongs to the host.
package learner

import (
	"sync"
	"time"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/monitoring"
	"github.com/haven-media/sentinel/internal/signal"
)

// CategoryThreshold is the mutable per-category learning state.
type CategoryThreshold struct {
	Current       float64   `json:"current"`
	Default       float64   `json:"default"`
	LearningCount int       `json:"learning_count"`
	LastUpdated   time.Time `json:"last_updated"`
	Converged     bool      `json:"converged"`

	// recentDeltas holds the trailing applied deltas examined by the
	// convergence check.
	recentDeltas []float64
}

// ThresholdAdjustment reports one applied feedback adjustment.
type ThresholdAdjustment struct {
	Category     category.Category `json:"category"`
	RawDelta     float64           `json:"raw_delta"`
	AppliedDelta float64           `json:"applied_delta"`
	NewThreshold float64           `json:"new_threshold"`
	Converged    bool              `json:"converged"`
}

// Learner owns the threshold state for one logical session (one user).
// Safe for concurrent use; feedback events are read-modify-write under the
// learner lock.
type Learner struct {
	mu         sync.Mutex
	thresholds map[category.Category]*CategoryThreshold

	learningRate float64
	floor        float64
	ceiling      float64
	window       int
	epsilon      float64
}

// New creates a learner with every category at the default threshold.
func New(cfg *config.TuningConfig) *Learner {
	if cfg == nil {
		cfg = &config.TuningConfig{}
	}
	l := &Learner{
		thresholds:   make(map[category.Category]*CategoryThreshold, category.Count),
		learningRate: cfg.GetLearningRate(),
		floor:        cfg.GetThresholdFloor(),
		ceiling:      cfg.GetThresholdCeiling(),
		window:       cfg.GetConvergenceWindow(),
		epsilon:      cfg.GetConvergenceEpsilon(),
	}
	def := cfg.GetDefaultThreshold()
	for _, c := range category.All() {
		l.thresholds[c] = &CategoryThreshold{Current: def, Default: def}
	}
	return l
}

// rawDelta maps a feedback kind to its undamped threshold delta.
func (l *Learner) rawDelta(fb signal.UserFeedback, current float64) float64 {
	switch fb.Kind {
	case signal.FeedbackDismissed:
		// Raise the threshold toward the confidence that produced the
		// unwanted warning, at least +5.
		d := fb.DetectionConfidence - current
		if d < 5 {
			d = 5
		}
		return d
	case signal.FeedbackReportedMissed:
		return -10
	case signal.FeedbackSensitivityIncreased:
		return -10
	case signal.FeedbackSensitivityDecreased:
		return 10
	case signal.FeedbackWatchedThrough:
		return 2
	case signal.FeedbackConfirmedCorrect:
		return 0
	}
	return 0
}

// ProcessFeedback applies one feedback event and returns the adjustment,
// or nil when the event was ignored (unknown category). Zero-delta kinds
// still count toward convergence: consistent confirmation is evidence of
// stability.
func (l *Learner) ProcessFeedback(fb signal.UserFeedback) *ThresholdAdjustment {
	l.mu.Lock()
	defer l.mu.Unlock()

	th, ok := l.thresholds[fb.Category]
	if !ok {
		monitoring.Opsf("learner: feedback for unknown category %q ignored", fb.Category)
		return nil
	}

	raw := l.rawDelta(fb, th.Current)
	applied := raw * l.learningRate

	th.Current += applied
	if th.Current < l.floor {
		th.Current = l.floor
	}
	if th.Current > l.ceiling {
		th.Current = l.ceiling
	}
	th.LearningCount++
	th.LastUpdated = fb.Timestamp

	th.recentDeltas = append(th.recentDeltas, applied)
	if len(th.recentDeltas) > l.window {
		th.recentDeltas = th.recentDeltas[len(th.recentDeltas)-l.window:]
	}
	th.Converged = l.convergedLocked(th)

	return &ThresholdAdjustment{
		Category:     fb.Category,
		RawDelta:     raw,
		AppliedDelta: applied,
		NewThreshold: th.Current,
		Converged:    th.Converged,
	}
}

// convergedLocked: converged once the trailing window is full and every
// applied delta in it is below epsilon in magnitude. Monotone until the
// next large adjustment resets it.
func (l *Learner) convergedLocked(th *CategoryThreshold) bool {
	if len(th.recentDeltas) < l.window {
		return false
	}
	for _, d := range th.recentDeltas {
		if d > l.epsilon || d < -l.epsilon {
			return false
		}
	}
	return true
}

// ShouldWarn reports whether a detection at the given confidence crosses
// the category's current threshold.
func (l *Learner) ShouldWarn(cat category.Category, confidence float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	th, ok := l.thresholds[cat]
	if !ok {
		return false
	}
	return confidence >= th.Current
}

// Threshold returns a copy of the category's learning state.
func (l *Learner) Threshold(cat category.Category) (CategoryThreshold, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	th, ok := l.thresholds[cat]
	if !ok {
		return CategoryThreshold{}, false
	}
	cp := *th
	cp.recentDeltas = nil
	return cp, true
}

// Export returns the flat category->threshold map for host persistence.
func (l *Learner) Export() map[category.Category]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[category.Category]float64, len(l.thresholds))
	for c, th := range l.thresholds {
		out[c] = th.Current
	}
	return out
}

// Import overwrites current thresholds from a persisted flat map. Unknown
// categories are logged and skipped; out-of-range values are clamped.
// Learning history (counts, convergence) is reset for imported entries.
func (l *Learner) Import(m map[category.Category]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c, v := range m {
		th, ok := l.thresholds[c]
		if !ok {
			monitoring.Opsf("learner: imported threshold for unknown category %q ignored", c)
			continue
		}
		if v < l.floor {
			v = l.floor
		}
		if v > l.ceiling {
			v = l.ceiling
		}
		th.Current = v
		th.recentDeltas = nil
		th.Converged = false
	}
}
