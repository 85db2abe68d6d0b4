// Package fusion implements the five per-route fusion pipelines that turn a
// multi-modal sample into a category detection, plus the escalation tracker
// owned by the temporal-pattern pipeline.
//
// Pipelines are pure functions over already-extracted feature bundles: they
// never fail and always produce a confidence in [0,100], defaulting to 0 on
// missing modalities. Per-category behaviour lives in data-driven scoring
// tables (scoring.go), not conditional chains.
package fusion

import (
	"gonum.org/v1/gonum/stat"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// Pipeline scores one category against one multi-modal sample using the
// category's routing record.
type Pipeline interface {
	Process(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) signal.Detection
}

// Confidence bars shared across validation levels.
const (
	// soloPassBar passes a detection on fused confidence alone.
	soloPassBar = 70.0
	// corroboratedPassBar passes at Standard validation when two
	// modalities independently exceed strongModalityBar.
	corroboratedPassBar = 60.0
	// strongModalityBar is the per-modality strength cut used by the
	// corroboration counts.
	strongModalityBar = 50.0
	// negatedPassBar is the tightened bar when text negation is detected:
	// negated content needs stronger corroboration to still warrant a
	// warning.
	negatedPassBar = 80.0
	// agreementBar is the minimum cross-modal agreement score for
	// high-sensitivity validation.
	agreementBar = 60.0

	// featureAdjustMax bounds how far named features can move a modality's
	// raw confidence in either direction. The pre-filter's stage-1 safe
	// exit relies on this bound: all raw confidences below its gate imply
	// a fused confidence below every stateless validation bar.
	featureAdjustMax = 15.0

	// secondaryDampDefault scales a secondary modality's raw confidence.
	// Secondary modalities are validation evidence, not primary evidence;
	// a corroborating feature in the bundle lifts the factor to 1.0.
	secondaryDampDefault = 0.85

	// negationFactor is the confidence cut applied when negation is
	// detected in the text modality ("no blood" must not score like
	// "blood").
	negationFactor = 0.3
)

func clampConfidence(v, min, max float64) float64 {
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

// adjustFromFeatures converts a bundle's named feature activations into a
// bounded confidence adjustment. Features above 0.5 push confidence up,
// below 0.5 pull it down; absent features contribute nothing, so a bundle
// with no named scores leaves the raw confidence untouched.
func adjustFromFeatures(b signal.FeatureBundle, coeffs []featureCoeff) float64 {
	var num, den float64
	for _, c := range coeffs {
		if !b.Has(c.name) {
			continue
		}
		num += (b.Score(c.name) - 0.5) * c.weight
		den += c.weight
	}
	if den == 0 {
		return 0
	}
	// num/den is in [-0.5, 0.5]; scale to the adjustment bound.
	return clampConfidence(num/den*2*featureAdjustMax, -featureAdjustMax, featureAdjustMax)
}

// secondaryConfidence damps a non-primary modality's raw confidence. A
// corroborating feature (one that directly backs the primary evidence)
// removes the damping so strong secondary evidence fuses at full weight.
func secondaryConfidence(m signal.Modality, s *signal.ModalitySample) float64 {
	damp := secondaryDampDefault
	if hasCorroboration(m, s.Features) {
		damp = 1.0
	}
	return clampConfidence(s.Confidence*damp, 0, 100)
}

// hasCorroboration reports whether a secondary bundle carries a feature
// that independently backs the detection, rather than just a raw score.
func hasCorroboration(m signal.Modality, b signal.FeatureBundle) bool {
	for _, name := range corroborationFeatures[m] {
		if b.Score(name) >= 0.5 {
			return true
		}
	}
	return false
}

// fuseResult is the shared output of weighted fusion across modalities.
type fuseResult struct {
	weighted      float64
	contributions []signal.ModalityContribution
	strong        int // modalities with confidence above strongModalityBar
	present       int
}

// fuse computes the weighted confidence Σ(modality confidence × route
// weight). The primary modality's confidence is supplied by the caller
// (already heuristic-adjusted); secondaries are damped raw confidences.
// Missing modalities contribute zero.
func fuse(in *signal.MultiModalInput, cfg category.RouteConfig, primary signal.Modality, primaryConf float64) fuseResult {
	weights := map[signal.Modality]float64{
		signal.ModalityVisual: cfg.Weights.Visual,
		signal.ModalityAudio:  cfg.Weights.Audio,
		signal.ModalityText:   cfg.Weights.Text,
	}

	var res fuseResult
	for _, m := range signal.Modalities {
		s := in.Sample(m)
		if s == nil {
			continue
		}
		res.present++

		conf := primaryConf
		if m != primary {
			conf = secondaryConfidence(m, s)
		}
		if conf > strongModalityBar {
			res.strong++
		}
		res.weighted += conf * weights[m]
		res.contributions = append(res.contributions, signal.ModalityContribution{
			Modality:   m,
			Confidence: conf,
			Weight:     weights[m],
		})
	}
	res.weighted = clampConfidence(res.weighted, 0, 100)
	return res
}

// agreementScore measures cross-modal consensus as 100 minus a spread
// penalty over the contributing confidences. Identical confidences score
// 100; widely disagreeing modalities score near zero.
func agreementScore(contributions []signal.ModalityContribution) float64 {
	if len(contributions) < 2 {
		return 0
	}
	confs := make([]float64, len(contributions))
	for i, c := range contributions {
		confs[i] = c.Confidence
	}
	return clampConfidence(100-2.5*stat.StdDev(confs, nil), 0, 100)
}

// validate applies the route's validation policy to a fused result.
// negated tightens the bar regardless of level.
func validate(cat category.Category, cfg category.RouteConfig, res fuseResult, negated bool) bool {
	if res.present == 0 || res.weighted <= 0 {
		return false
	}
	if negated {
		return res.weighted >= negatedPassBar
	}
	switch cfg.Validation {
	case category.SingleModalitySufficient:
		return res.weighted >= soloPassBar
	case category.Standard:
		if res.weighted >= soloPassBar {
			return true
		}
		return res.weighted >= corroboratedPassBar && res.strong >= 2
	case category.HighSensitivity:
		if res.strong < 2 {
			return false
		}
		if agreementScore(res.contributions) <= agreementBar {
			return false
		}
		return res.weighted >= highSensitivityBar(cat)
	}
	return false
}
