package category

import (
	"fmt"
	"sort"
)

// Route selects which fusion pipeline scores a category.
type Route string

const (
	RouteVisualPrimary Route = "visual-primary"
	RouteAudioPrimary  Route = "audio-primary"
	RouteTextPrimary   Route = "text-primary"
	RouteTemporal      Route = "temporal-pattern"
	RouteBalanced      Route = "multi-modal-balanced"
)

// ValidationLevel is the multi-modal corroboration bar a detection must
// clear before it counts as warnable.
type ValidationLevel string

const (
	// SingleModalitySufficient passes on one strong modality alone (>=70).
	SingleModalitySufficient ValidationLevel = "single-modality-sufficient"
	// Standard passes at >=70 alone, or >=60 with two modalities above 50.
	Standard ValidationLevel = "standard"
	// HighSensitivity requires multi-modal agreement; used only by the
	// multi-modal-balanced route.
	HighSensitivity ValidationLevel = "high-sensitivity"
)

// TemporalPattern describes how evidence for a category typically arrives
// over time. The temporal-pattern pipeline keys its escalation model on it.
type TemporalPattern string

const (
	PatternInstant      TemporalPattern = "instant"
	PatternGradualOnset TemporalPattern = "gradual-onset"
	PatternEscalation   TemporalPattern = "escalation"
	PatternSustained    TemporalPattern = "sustained"
)

// ModalityWeights are the fusion weights for a category. They sum to
// approximately 1.0; VerifyCompleteness checks the sum.
type ModalityWeights struct {
	Visual float64
	Audio  float64
	Text   float64
}

// Sum returns the weight total.
func (w ModalityWeights) Sum() float64 { return w.Visual + w.Audio + w.Text }

// RouteConfig is the immutable per-category routing record. One entry per
// category, loaded at process start.
type RouteConfig struct {
	Route      Route
	Weights    ModalityWeights
	Validation ValidationLevel
	Pattern    TemporalPattern
}

// routeTable maps every category to its routing record. Equal coverage of
// all 28 categories is a product correctness requirement, not cosmetic;
// VerifyCompleteness enforces it at startup.
var routeTable = map[Category]RouteConfig{
	// Visual-primary: strongly visual phenomena.
	Blood:          {RouteVisualPrimary, ModalityWeights{0.70, 0.15, 0.15}, Standard, PatternInstant},
	Gore:           {RouteVisualPrimary, ModalityWeights{0.75, 0.15, 0.10}, Standard, PatternSustained},
	Vomit:          {RouteVisualPrimary, ModalityWeights{0.65, 0.25, 0.10}, Standard, PatternInstant},
	Needles:        {RouteVisualPrimary, ModalityWeights{0.80, 0.05, 0.15}, Standard, PatternInstant},
	Spiders:        {RouteVisualPrimary, ModalityWeights{0.85, 0.05, 0.10}, SingleModalitySufficient, PatternInstant},
	Snakes:         {RouteVisualPrimary, ModalityWeights{0.85, 0.05, 0.10}, SingleModalitySufficient, PatternInstant},
	Insects:        {RouteVisualPrimary, ModalityWeights{0.85, 0.05, 0.10}, SingleModalitySufficient, PatternInstant},
	Clowns:         {RouteVisualPrimary, ModalityWeights{0.85, 0.05, 0.10}, SingleModalitySufficient, PatternInstant},
	Nudity:         {RouteVisualPrimary, ModalityWeights{0.80, 0.05, 0.15}, Standard, PatternInstant},
	FlashingLights: {RouteVisualPrimary, ModalityWeights{0.90, 0.05, 0.05}, SingleModalitySufficient, PatternInstant},

	// Audio-primary: impulse or sustained acoustic signatures.
	Guns:       {RouteAudioPrimary, ModalityWeights{0.25, 0.60, 0.15}, SingleModalitySufficient, PatternInstant},
	Explosions: {RouteAudioPrimary, ModalityWeights{0.30, 0.60, 0.10}, SingleModalitySufficient, PatternInstant},
	Screaming:  {RouteAudioPrimary, ModalityWeights{0.15, 0.70, 0.15}, SingleModalitySufficient, PatternInstant},
	JumpScares: {RouteAudioPrimary, ModalityWeights{0.35, 0.55, 0.10}, Standard, PatternInstant},

	// Text-primary: categories carried mostly by dialogue/subtitles.
	Slurs:           {RouteTextPrimary, ModalityWeights{0.05, 0.25, 0.70}, SingleModalitySufficient, PatternInstant},
	EatingDisorders: {RouteTextPrimary, ModalityWeights{0.20, 0.15, 0.65}, Standard, PatternGradualOnset},
	Drugs:           {RouteTextPrimary, ModalityWeights{0.25, 0.10, 0.65}, Standard, PatternSustained},
	Alcohol:         {RouteTextPrimary, ModalityWeights{0.30, 0.10, 0.60}, Standard, PatternSustained},

	// Temporal-pattern: intensity builds over a scene.
	Violence:   {RouteTemporal, ModalityWeights{0.45, 0.35, 0.20}, Standard, PatternEscalation},
	SelfHarm:   {RouteTemporal, ModalityWeights{0.40, 0.20, 0.40}, Standard, PatternEscalation},
	Drowning:   {RouteTemporal, ModalityWeights{0.50, 0.35, 0.15}, Standard, PatternGradualOnset},
	Choking:    {RouteTemporal, ModalityWeights{0.45, 0.40, 0.15}, Standard, PatternEscalation},
	CarCrashes: {RouteTemporal, ModalityWeights{0.45, 0.45, 0.10}, Standard, PatternInstant},

	// Multi-modal-balanced: high-stakes categories needing corroboration.
	SexualAssault: {RouteBalanced, ModalityWeights{0.35, 0.30, 0.35}, HighSensitivity, PatternEscalation},
	AnimalCruelty: {RouteBalanced, ModalityWeights{0.40, 0.30, 0.30}, HighSensitivity, PatternSustained},
	ChildAbuse:    {RouteBalanced, ModalityWeights{0.35, 0.30, 0.35}, HighSensitivity, PatternEscalation},
	Death:         {RouteBalanced, ModalityWeights{0.40, 0.25, 0.35}, HighSensitivity, PatternGradualOnset},
	Medical:       {RouteBalanced, ModalityWeights{0.45, 0.20, 0.35}, HighSensitivity, PatternGradualOnset},
}

// RouteFor returns the routing record for a category. It is total over
// registered categories; an unregistered category is a startup invariant
// violation (VerifyCompleteness runs before any processing), so RouteFor
// panics rather than returning an error.
func RouteFor(c Category) RouteConfig {
	cfg, ok := routeTable[c]
	if !ok {
		panic(fmt.Sprintf("category: no route registered for %q", c))
	}
	return cfg
}

// OnRoute returns every category assigned to the given route, in
// declaration order.
func OnRoute(r Route) []Category {
	var out []Category
	for _, c := range all {
		if routeTable[c].Route == r {
			out = append(out, c)
		}
	}
	return out
}

// VerifyCompleteness checks that every registered category has exactly one
// routing record with sane weights. It must run at startup; a failure is
// fatal (reject process start).
func VerifyCompleteness() error {
	var missing []string
	for _, c := range all {
		cfg, ok := routeTable[c]
		if !ok {
			missing = append(missing, string(c))
			continue
		}
		if s := cfg.Weights.Sum(); s < 0.99 || s > 1.01 {
			return fmt.Errorf("category %s: modality weights sum %.3f, want ~1.0", c, s)
		}
		if cfg.Validation == HighSensitivity && cfg.Route != RouteBalanced {
			return fmt.Errorf("category %s: high-sensitivity validation requires the balanced route", c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("category: %d categories missing route entries: %v", len(missing), missing)
	}
	if len(routeTable) != len(all) {
		return fmt.Errorf("category: route table has %d entries, want %d", len(routeTable), len(all))
	}
	return nil
}
