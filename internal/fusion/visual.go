package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// VisualPipeline scores visually-led categories: the visual bundle is the
// primary evidence, audio and text act as damped validation.
type VisualPipeline struct{}

// NewVisualPipeline creates the visual-primary pipeline.
func NewVisualPipeline() *VisualPipeline { return &VisualPipeline{} }

func visualCoeffsFor(cat category.Category) []featureCoeff {
	if row, ok := visualCoeffs[cat]; ok {
		return row
	}
	return visualDefault
}

// Process computes the visual-primary detection for one category.
func (p *VisualPipeline) Process(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) signal.Detection {
	var primary float64
	if v := in.Visual; v != nil {
		primary = clampConfidence(v.Confidence+adjustFromFeatures(v.Features, visualCoeffsFor(cat)), 0, 100)
	}

	res := fuse(in, cfg, signal.ModalityVisual, primary)
	return signal.Detection{
		Category:         cat,
		Timestamp:        in.Timestamp,
		Confidence:       res.weighted,
		Route:            cfg.Route,
		Contributions:    res.contributions,
		ValidationPassed: validate(cat, cfg, res, false),
	}
}
