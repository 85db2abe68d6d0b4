package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// TemporalPipeline scores categories whose intensity builds over a scene.
// It owns the escalation tracker: every processed sample updates the
// category's curve, the curve's level score boosts the fused confidence,
// and the escalation threshold replaces the normal validation policy so a
// brief one-off mention does not warn while a genuinely intensifying scene
// reacts quickly.
type TemporalPipeline struct {
	tracker    *EscalationTracker
	boostMax   float64 // max boost as a fraction of base confidence
	severeRate float64 // points/second warn cut at Severe
}

// NewTemporalPipeline creates the temporal-pattern pipeline around a
// tracker. boostMax and severeRate are tuning values (defaults 0.5 and 2).
func NewTemporalPipeline(tracker *EscalationTracker, boostMax, severeRate float64) *TemporalPipeline {
	return &TemporalPipeline{
		tracker:    tracker,
		boostMax:   boostMax,
		severeRate: severeRate,
	}
}

// Tracker exposes the escalation tracker for scene-change resets.
func (p *TemporalPipeline) Tracker() *EscalationTracker { return p.tracker }

// Process fuses the sample, folds it into the category's escalation curve,
// applies the escalation boost, and gates on the escalation threshold.
func (p *TemporalPipeline) Process(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) signal.Detection {
	res := fuseAllPrimary(cat, in, cfg)

	det := signal.Detection{
		Category:      cat,
		Timestamp:     in.Timestamp,
		Route:         cfg.Route,
		Contributions: res.contributions,
	}

	// An empty sample is not evidence either way; leave the curve alone
	// so absent modalities cannot drag a building scene back down.
	if res.present == 0 {
		det.Confidence = 0
		return det
	}

	snap := p.tracker.Observe(cat, res.weighted, in.Timestamp)

	boost := p.boostMax * snap.LevelScore / 100
	det.Confidence = clampConfidence(res.weighted*(1+boost), 0, 100)
	det.ValidationPassed = CheckEscalationThreshold(snap, p.severeRate)
	det.Temporal = signal.TemporalContext{
		Level:          string(snap.Level),
		LevelScore:     snap.LevelScore,
		EscalationRate: snap.EscalationRate,
		Boost:          boost,
	}
	return det
}
