// Package signal defines the data model shared across the detection engine:
// multi-modal input samples, per-modality feature bundles, pipeline
// detections, and the decisions handed back to the host.
//
// Feature extraction itself is out of scope — an external collaborator
// computes the bundles; this package just carries them.
package signal

import "time"

// Modality identifies one independent evidence channel of a sample.
type Modality string

const (
	ModalityVisual Modality = "visual"
	ModalityAudio  Modality = "audio"
	ModalityText   Modality = "text"
)

// Modalities lists all modalities in canonical order.
var Modalities = []Modality{ModalityVisual, ModalityAudio, ModalityText}

// FeatureBundle is the opaque output of an external feature extractor for
// one modality. Scores are named feature activations in [0,1]; absent names
// read as zero. Text bundles may additionally carry the raw subtitle text
// for keyword and negation scanning. Digest, when present, is a stable
// content fingerprint used for cache keying.
type FeatureBundle struct {
	Scores map[string]float64 `json:"scores,omitempty"`
	Text   string             `json:"text,omitempty"`
	Digest []byte             `json:"digest,omitempty"`

	// NegationDetected is set by text extractors that run their own
	// negation pass. The text pipeline also scans Text directly, so
	// either signal suppresses confidence.
	NegationDetected bool `json:"negation_detected,omitempty"`
}

// Score returns the named feature activation, or 0 when absent.
func (b FeatureBundle) Score(name string) float64 {
	if b.Scores == nil {
		return 0
	}
	return b.Scores[name]
}

// Has reports whether the named feature is present in the bundle.
func (b FeatureBundle) Has(name string) bool {
	_, ok := b.Scores[name]
	return ok
}

// ModalitySample is one modality's evidence for a single analysis tick:
// the extractor's raw confidence (0..100) plus its feature bundle.
type ModalitySample struct {
	Confidence float64       `json:"confidence"`
	Features   FeatureBundle `json:"features"`
}

// MultiModalInput is one analysis tick's worth of evidence. Each modality
// is optional; a given instant may carry 0-3 of them. The input is
// immutable for the duration of one engine call.
type MultiModalInput struct {
	Timestamp time.Time       `json:"timestamp"`
	Visual    *ModalitySample `json:"visual,omitempty"`
	Audio     *ModalitySample `json:"audio,omitempty"`
	Text      *ModalitySample `json:"text,omitempty"`
}

// Sample returns the sample for a modality, or nil when absent.
func (in *MultiModalInput) Sample(m Modality) *ModalitySample {
	switch m {
	case ModalityVisual:
		return in.Visual
	case ModalityAudio:
		return in.Audio
	case ModalityText:
		return in.Text
	}
	return nil
}

// ModalityCount returns how many modalities are present (0-3).
func (in *MultiModalInput) ModalityCount() int {
	n := 0
	for _, m := range Modalities {
		if in.Sample(m) != nil {
			n++
		}
	}
	return n
}
