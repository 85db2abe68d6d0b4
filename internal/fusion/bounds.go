package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// MinWarnableConfidence is the lowest fused confidence the stateless
// validation policies can turn into a warning. The pre-filter uses it as
// its safe-exit floor. The bound says nothing about the temporal route,
// whose warn bar applies to a level score blending the sample with the
// scene's history; temporal categories are classified on every sample and
// never rely on this floor.
const MinWarnableConfidence = moderateWarnScore

// MaxFeatureAdjust is the upper bound on the per-modality feature
// adjustment. The pre-filter's coarse stage adds it to raw confidences
// when it cannot afford to evaluate the scoring rows.
const MaxFeatureAdjust = featureAdjustMax

// AdjustUpperBound returns the largest feature adjustment any pipeline
// could apply to modality m for cat, given bundle b. Negative adjustments
// are floored at zero since the caller wants an upper bound.
func AdjustUpperBound(cat category.Category, m signal.Modality, b signal.FeatureBundle) float64 {
	if m == signal.ModalityText {
		b = withKeywordScan(cat, b)
	}
	adj := adjustFromFeatures(b, coeffsForModality(m, cat))
	if adj < 0 {
		return 0
	}
	return adj
}
