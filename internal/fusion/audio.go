package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// AudioPipeline scores acoustically-led categories. The scoring rows
// separate impulse signatures (gunshot-like transients) from sustained
// low-frequency energy (explosion-like rumbles).
type AudioPipeline struct{}

// NewAudioPipeline creates the audio-primary pipeline.
func NewAudioPipeline() *AudioPipeline { return &AudioPipeline{} }

func audioCoeffsFor(cat category.Category) []featureCoeff {
	if row, ok := audioCoeffs[cat]; ok {
		return row
	}
	return audioDefault
}

// Process computes the audio-primary detection for one category.
func (p *AudioPipeline) Process(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) signal.Detection {
	var primary float64
	if a := in.Audio; a != nil {
		primary = clampConfidence(a.Confidence+adjustFromFeatures(a.Features, audioCoeffsFor(cat)), 0, 100)
	}

	res := fuse(in, cfg, signal.ModalityAudio, primary)
	return signal.Detection{
		Category:         cat,
		Timestamp:        in.Timestamp,
		Confidence:       res.weighted,
		Route:            cfg.Route,
		Contributions:    res.contributions,
		ValidationPassed: validate(cat, cfg, res, false),
	}
}
