package fusion

import (
	"strings"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// TextPipeline scores dialogue/subtitle-led categories. Beyond the
// extractor's keyword features it runs its own corroboration scan over the
// raw subtitle text, and a negation pass that suppresses confidence when a
// keyword is negated ("no blood" must not warn like "blood").
type TextPipeline struct{}

// NewTextPipeline creates the text-primary pipeline.
func NewTextPipeline() *TextPipeline { return &TextPipeline{} }

func textCoeffsFor(cat category.Category) []featureCoeff {
	if row, ok := textCoeffs[cat]; ok {
		return row
	}
	return textDefault
}

// Process computes the text-primary detection for one category. Detected
// negation cuts the text confidence to 30% and tightens the validation bar
// to the negated threshold.
func (p *TextPipeline) Process(cat category.Category, in *signal.MultiModalInput, cfg category.RouteConfig) signal.Detection {
	var primary float64
	negated := false
	if t := in.Text; t != nil {
		b := withKeywordScan(cat, t.Features)
		primary = clampConfidence(t.Confidence+adjustFromFeatures(b, textCoeffsFor(cat)), 0, 100)

		negated = t.Features.NegationDetected || scanNegation(cat, t.Features.Text)
		if negated {
			primary *= negationFactor
		}
	}

	res := fuse(in, cfg, signal.ModalityText, primary)
	return signal.Detection{
		Category:         cat,
		Timestamp:        in.Timestamp,
		Confidence:       res.weighted,
		Route:            cfg.Route,
		Contributions:    res.contributions,
		ValidationPassed: validate(cat, cfg, res, negated),
	}
}

// withKeywordScan synthesizes a keyword score from the raw subtitle text
// when the extractor did not supply one. The bundle is copied, never
// mutated; inputs stay immutable for the duration of a process call.
func withKeywordScan(cat category.Category, b signal.FeatureBundle) signal.FeatureBundle {
	if b.Has(FeatKeywordScore) || b.Text == "" {
		return b
	}
	score, matched := scanKeywords(cat, b.Text)
	if !matched {
		return b
	}
	scores := make(map[string]float64, len(b.Scores)+1)
	for k, v := range b.Scores {
		scores[k] = v
	}
	scores[FeatKeywordScore] = score
	b.Scores = scores
	return b
}

// scanKeywords reports whether the category's keyword list matches the raw
// text, and a score reflecting match density.
func scanKeywords(cat category.Category, text string) (float64, bool) {
	keywords := keywordTable[cat]
	if len(keywords) == 0 || text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	if matches == 0 {
		return 0, false
	}
	if matches == 1 {
		return 0.8, true
	}
	return 0.9, true
}

// scanNegation reports whether any matched keyword is negated by a marker
// within the three preceding words.
func scanNegation(cat category.Category, text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywordTable[cat] {
		idx := strings.Index(lower, kw)
		if idx < 0 {
			continue
		}
		words := strings.Fields(lower[:idx])
		start := len(words) - 3
		if start < 0 {
			start = 0
		}
		for _, w := range words[start:] {
			w = strings.Trim(w, ".,!?;:\"'")
			if strings.HasSuffix(w, "n't") {
				return true
			}
			for _, m := range negationMarkers {
				if w == m {
					return true
				}
			}
		}
	}
	return false
}
