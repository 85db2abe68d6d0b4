package prefilter

import (
	"math/rand"
	"testing"
	"time"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/fusion"
	"github.com/haven-media/sentinel/internal/signal"
)

func TestFamilyTablesCoverAllCategories(t *testing.T) {
	seen := map[category.Category]int{}
	for _, f := range allFamilies {
		groups, ok := familyGroups[f]
		if !ok || len(groups) == 0 {
			t.Errorf("family %s has no groups", f)
		}
		for _, g := range groups {
			for _, c := range groupCategories[g] {
				seen[c]++
			}
		}
	}
	for _, c := range category.All() {
		if seen[c] != 1 {
			t.Errorf("category %s appears in %d groups, want exactly 1", c, seen[c])
		}
	}
	if len(allFamilies) != 10 {
		t.Errorf("%d families, want 10", len(allFamilies))
	}
	if len(groupCategories) != 12 {
		t.Errorf("%d groups, want 12", len(groupCategories))
	}
}

func TestQuietSampleExitsAtStageOne(t *testing.T) {
	p := New()
	in := &signal.MultiModalInput{
		Timestamp: time.Unix(1, 0),
		Visual:    &signal.ModalitySample{Confidence: 10},
		Audio:     &signal.ModalitySample{Confidence: 5},
	}
	res := p.Run(in)
	if !res.Safe || res.ExitStage != 1 {
		t.Errorf("quiet sample: Safe=%v ExitStage=%d, want safe stage-1 exit", res.Safe, res.ExitStage)
	}
}

func TestEmptySampleIsSafe(t *testing.T) {
	p := New()
	res := p.Run(&signal.MultiModalInput{Timestamp: time.Unix(1, 0)})
	if !res.Safe {
		t.Error("empty sample not marked safe")
	}
}

func TestStrongSampleReachesStageThree(t *testing.T) {
	p := New()
	in := &signal.MultiModalInput{
		Timestamp: time.Unix(1, 0),
		Visual:    &signal.ModalitySample{Confidence: 90},
	}
	res := p.Run(in)
	if res.Safe {
		t.Fatal("strong visual sample marked safe")
	}
	if len(res.Categories) == 0 {
		t.Fatal("strong visual sample produced no suspects")
	}
	// A strongly visual sample must at least suspect the visual-led
	// categories with high visual weight.
	found := false
	for _, c := range res.Categories {
		if c == category.Blood {
			found = true
		}
	}
	if !found {
		t.Errorf("blood not in suspect set %v for a 90-confidence visual sample", res.Categories)
	}
}

func TestTextRegexAddsSuspicion(t *testing.T) {
	p := New()
	in := &signal.MultiModalInput{
		Timestamp: time.Unix(1, 0),
		Text: &signal.ModalitySample{
			Confidence: 20,
			Features:   signal.FeatureBundle{Text: "he pulled a gun"},
		},
	}
	res := p.Run(in)
	// Low confidence alone would exit, but the weapons regex keeps the
	// family alive into stage 2.
	if res.ExitStage == 1 && res.Safe {
		t.Error("regex match did not survive stage 1")
	}
}

func randomSample(r *rand.Rand) *signal.ModalitySample {
	scores := map[string]float64{}
	names := []string{
		fusion.FeatColorConcentration, fusion.FeatLiquidChunkiness,
		fusion.FeatImpulseEnergy, fusion.FeatAmplitudeSpike,
		fusion.FeatKeywordScore, fusion.FeatContextScore,
		fusion.FeatFlashFrequency, fusion.FeatShapeSalience,
	}
	for _, n := range names {
		if r.Float64() < 0.3 {
			scores[n] = r.Float64()
		}
	}
	return &signal.ModalitySample{
		Confidence: r.Float64() * 100,
		Features:   signal.FeatureBundle{Scores: scores},
	}
}

// TestSoundness fuzzes random samples against one shared pipeline set, so
// the temporal pipelines accumulate escalation state across the corpus
// exactly as they do in production. Every category the filter excludes
// must fail full-path validation on that sample; temporal-route categories
// are exempt because the engine classifies them on every sample regardless
// of the verdict here, keeping their curves fed. The shortcut may only
// ever skip work, never change an answer.
func TestSoundness(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	p := New()
	set := fusion.NewSet(&config.TuningConfig{})

	temporal := map[category.Category]bool{}
	for _, c := range category.OnRoute(category.RouteTemporal) {
		temporal[c] = true
	}

	texts := []string{"", "a quiet afternoon", "there was blood everywhere", "no blood at all", "he pulled a gun"}

	safeSeen := 0
	for i := 0; i < 3000; i++ {
		in := &signal.MultiModalInput{Timestamp: time.Unix(int64(i), 0)}
		if r.Float64() < 0.8 {
			in.Visual = randomSample(r)
		}
		if r.Float64() < 0.8 {
			in.Audio = randomSample(r)
		}
		if r.Float64() < 0.8 {
			in.Text = randomSample(r)
			in.Text.Features.Text = texts[r.Intn(len(texts))]
		}
		if in.ModalityCount() == 0 {
			continue
		}

		res := p.Run(in)
		if res.Safe {
			safeSeen++
		}
		suspected := map[category.Category]bool{}
		for _, c := range res.Categories {
			suspected[c] = true
		}

		for _, cat := range category.All() {
			det := set.Process(cat, in)
			if suspected[cat] || temporal[cat] {
				continue
			}
			if det.ValidationPassed {
				t.Fatalf("sample %d: %s excluded at stage %d but passed validation at %.1f",
					i, cat, res.ExitStage, det.Confidence)
			}
		}
	}
	if safeSeen == 0 {
		t.Error("fuzz corpus produced no safe exits; test exercised nothing")
	}
}

func TestStats(t *testing.T) {
	p := New()
	quiet := &signal.MultiModalInput{Timestamp: time.Unix(1, 0), Visual: &signal.ModalitySample{Confidence: 5}}
	loud := &signal.MultiModalInput{Timestamp: time.Unix(1, 0), Visual: &signal.ModalitySample{Confidence: 95}}

	for i := 0; i < 8; i++ {
		p.Run(quiet)
	}
	p.Run(loud)
	p.Run(loud)

	s := p.Stats()
	if s.Samples != 10 {
		t.Errorf("Samples = %d, want 10", s.Samples)
	}
	if s.Stage1Exits != 8 {
		t.Errorf("Stage1Exits = %d, want 8", s.Stage1Exits)
	}
	if s.EarlyExitRate < 0.79 || s.EarlyExitRate > 0.81 {
		t.Errorf("EarlyExitRate = %v, want 0.8", s.EarlyExitRate)
	}
	if s.EstTimeSavedMs != 8*fullAnalysisCostMs {
		t.Errorf("EstTimeSavedMs = %v, want %v", s.EstTimeSavedMs, 8*fullAnalysisCostMs)
	}
}
