package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/signal"
)

// Set bundles the five pipelines keyed by route. One Set per engine
// instance; the temporal pipeline's tracker state lives inside it.
type Set struct {
	byRoute  map[category.Route]Pipeline
	temporal *TemporalPipeline
}

// NewSet constructs all five pipelines with the given tuning.
func NewSet(cfg *config.TuningConfig) *Set {
	if cfg == nil {
		cfg = &config.TuningConfig{}
	}
	tracker := NewEscalationTracker(cfg.GetEscalationWindow())
	temporal := NewTemporalPipeline(tracker, cfg.GetEscalationBoostMax(), cfg.GetSevereRateThreshold())

	return &Set{
		temporal: temporal,
		byRoute: map[category.Route]Pipeline{
			category.RouteVisualPrimary: NewVisualPipeline(),
			category.RouteAudioPrimary:  NewAudioPipeline(),
			category.RouteTextPrimary:   NewTextPipeline(),
			category.RouteBalanced:      NewBalancedPipeline(),
			category.RouteTemporal:      temporal,
		},
	}
}

// ForRoute returns the pipeline for a route, or nil for an unknown route.
func (s *Set) ForRoute(r category.Route) Pipeline { return s.byRoute[r] }

// Process routes one category through its configured pipeline.
func (s *Set) Process(cat category.Category, in *signal.MultiModalInput) signal.Detection {
	cfg := category.RouteFor(cat)
	return s.byRoute[cfg.Route].Process(cat, in, cfg)
}

// Tracker exposes the temporal pipeline's escalation tracker so the engine
// can reset curves on scene changes.
func (s *Set) Tracker() *EscalationTracker { return s.temporal.Tracker() }
