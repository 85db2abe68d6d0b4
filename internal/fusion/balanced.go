package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// BalancedPipeline scores high-stakes categories where no single modality
// is trusted alone. Every present modality is scored with its own feature
// row at full weight, and validation demands cross-modal agreement on top
// of the per-category confidence bar.
type BalancedPipeline struct{}

// NewBalancedPipeline creates the multi-modal-balanced pipeline.
func NewBalancedPipeline() *BalancedPipeline { return &BalancedPipeline{} }

func coeffsForModality(m signal.Modality, cat category.Category) []featureCoeff {
	switch m {
	case signal.ModalityVisual:
		return visualCoeffsFor(cat)
	case signal.ModalityAudio:
		return audioCoeffsFor(cat)
	case signal.ModalityText:
		return textCoeffsFor(cat)
	}
	return nil
}

// fuseAllPrimary fuses every present modality at full weight, each scored
// against its own feature row. No secondary damping: the balanced and
// temporal routes treat all modalities as primary evidence.
func fuseAllPrimary(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) fuseResult {
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

		conf := clampConfidence(s.Confidence+adjustFromFeatures(s.Features, coeffsForModality(m, cat)), 0, 100)
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

// Process computes the balanced detection for one category.
func (p *BalancedPipeline) Process(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) signal.Detection {
	res := fuseAllPrimary(cat, in, cfg)
	return signal.Detection{
		Category:         cat,
		Timestamp:        in.Timestamp,
		Confidence:       res.weighted,
		Route:            cfg.Route,
		Contributions:    res.contributions,
		ValidationPassed: validate(cat, cfg, res, false),
	}
}
