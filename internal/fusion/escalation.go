package fusion

import (
	"sync"
	"time"

	"github.com/haven-media/sentinel/internal/category"
)

// EscalationLevel describes how intense a category's recent evidence is.
type EscalationLevel string

const (
	LevelMild     EscalationLevel = "mild"
	LevelModerate EscalationLevel = "moderate"
	LevelSevere   EscalationLevel = "severe"
	LevelExtreme  EscalationLevel = "extreme"
)

// Level score boundaries and warn cuts.
const (
	moderateScoreMin = 40.0
	severeScoreMin   = 60.0
	extremeScoreMin  = 80.0

	// moderateWarnScore is the level-score bar at Moderate: brief one-off
	// mentions stay below it, a genuinely building scene crosses it.
	moderateWarnScore = 50.0

	// peakDropMargin marks the curve as past its peak once the level
	// score has fallen this far below its maximum.
	peakDropMargin = 10.0
)

func levelFor(score float64) EscalationLevel {
	switch {
	case score >= extremeScoreMin:
		return LevelExtreme
	case score >= severeScoreMin:
		return LevelSevere
	case score >= moderateScoreMin:
		return LevelModerate
	}
	return LevelMild
}

// CurveSnapshot is an immutable view of one category's escalation state at
// the moment of an observation.
type CurveSnapshot struct {
	StartTime      time.Time
	Level          EscalationLevel
	LevelScore     float64 // 0..100
	EscalationRate float64 // confidence points per second
	PeakReached    bool
	Observations   int
}

// CheckEscalationThreshold is the temporal route's replacement for the
// validation policy: always warn at Extreme; at Severe only when intensity
// is still climbing faster than severeRate points/second; at Moderate only
// once the level score has reached the warn bar. Mild never warns.
func CheckEscalationThreshold(snap CurveSnapshot, severeRate float64) bool {
	switch snap.Level {
	case LevelExtreme:
		return true
	case LevelSevere:
		return snap.EscalationRate > severeRate
	case LevelModerate:
		return snap.LevelScore >= moderateWarnScore
	}
	return false
}

type observation struct {
	ts         time.Time
	confidence float64
}

// escalationCurve is the per-category mutable state. Updates are
// read-modify-write, so each curve carries its own lock; concurrent workers
// observing different categories never contend.
type escalationCurve struct {
	mu       sync.Mutex
	start    time.Time
	history  []observation
	maxScore float64
}

// EscalationTracker maintains a rolling escalation curve per category.
// Curves are created lazily on first observation, reset explicitly on
// scene change or when content is judged safe, and never expire on their
// own — the trailing history window bounds their memory instead.
type EscalationTracker struct {
	mu     sync.RWMutex
	window time.Duration
	curves map[category.Category]*escalationCurve
}

// NewEscalationTracker creates a tracker with the given trailing
// detection-history window.
func NewEscalationTracker(window time.Duration) *EscalationTracker {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &EscalationTracker{
		window: window,
		curves: make(map[category.Category]*escalationCurve),
	}
}

func (t *EscalationTracker) curve(cat category.Category) *escalationCurve {
	t.mu.RLock()
	c := t.curves[cat]
	t.mu.RUnlock()
	if c != nil {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c = t.curves[cat]; c == nil {
		c = &escalationCurve{}
		t.curves[cat] = c
	}
	return c
}

// Observe folds one detection confidence into the category's curve and
// returns the updated snapshot. History older than the trailing window is
// pruned on every update.
func (t *EscalationTracker) Observe(cat category.Category, confidence float64, ts time.Time) CurveSnapshot {
	c := t.curve(cat)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		c.start = ts
	}
	c.history = append(c.history, observation{ts: ts, confidence: confidence})

	// Prune the trailing window.
	cutoff := ts.Add(-t.window)
	keep := 0
	for keep < len(c.history) && c.history[keep].ts.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		c.history = append(c.history[:0], c.history[keep:]...)
	}

	return c.snapshotLocked()
}

// snapshotLocked computes the derived curve state. Caller holds c.mu.
func (c *escalationCurve) snapshotLocked() CurveSnapshot {
	snap := CurveSnapshot{
		StartTime:    c.start,
		Observations: len(c.history),
	}
	if len(c.history) == 0 {
		snap.Level = LevelMild
		return snap
	}

	latest := c.history[len(c.history)-1]
	var sum float64
	for _, o := range c.history {
		sum += o.confidence
	}
	mean := sum / float64(len(c.history))

	// Weight recent evidence over the window average so the score reacts
	// quickly to an intensifying scene without single-sample jitter.
	snap.LevelScore = clampConfidence(0.7*latest.confidence+0.3*mean, 0, 100)

	oldest := c.history[0]
	if dt := latest.ts.Sub(oldest.ts).Seconds(); dt > 0 {
		snap.EscalationRate = (latest.confidence - oldest.confidence) / dt
	}

	if snap.LevelScore > c.maxScore {
		c.maxScore = snap.LevelScore
	}
	snap.PeakReached = c.maxScore-snap.LevelScore > peakDropMargin
	snap.Level = levelFor(snap.LevelScore)
	return snap
}

// Snapshot returns the current curve state without recording an
// observation. ok is false when the category has no curve yet.
func (t *EscalationTracker) Snapshot(cat category.Category) (CurveSnapshot, bool) {
	t.mu.RLock()
	c := t.curves[cat]
	t.mu.RUnlock()
	if c == nil {
		return CurveSnapshot{Level: LevelMild}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(), true
}

// Reset discards the category's curve, e.g. on a scene change.
func (t *EscalationTracker) Reset(cat category.Category) {
	t.mu.Lock()
	delete(t.curves, cat)
	t.mu.Unlock()
}

// ResetAll discards every curve.
func (t *EscalationTracker) ResetAll() {
	t.mu.Lock()
	t.curves = make(map[category.Category]*escalationCurve)
	t.mu.Unlock()
}
