package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-media/sentinel/internal/cache"
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/fusion"
	"github.com/haven-media/sentinel/internal/sched"
	"github.com/haven-media/sentinel/internal/signal"
)

func newTestEngine(t *testing.T, cfg *config.TuningConfig) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func findDecision(decisions []signal.Decision, cat category.Category) *signal.Decision {
	for i := range decisions {
		if decisions[i].Category == cat {
			return &decisions[i]
		}
	}
	return nil
}

// bloodVisual is the canonical red-frame sample: raw visual confidence 85,
// no named feature scores so the heuristic adjustment stays zero.
func bloodVisual(digestSeed byte) *signal.ModalitySample {
	return &signal.ModalitySample{
		Confidence: 85,
		Features: signal.FeatureBundle{
			Digest: bytes.Repeat([]byte{digestSeed, digestSeed + 7, digestSeed + 13, 200}, 32),
		},
	}
}

func corroboratingText(line string) *signal.ModalitySample {
	return &signal.ModalitySample{
		Confidence: 80,
		Features: signal.FeatureBundle{
			Text:   line,
			Scores: map[string]float64{fusion.FeatKeywordScore: 0.8},
		},
	}
}

func TestNewVerifiesRouteTable(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.NotNil(t, e)
}

func TestEmptyInputYieldsNothing(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	decisions, err := e.Process(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, decisions)

	decisions, err = e.Process(ctx, &signal.MultiModalInput{})
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestBloodScenario(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	ts := time.Unix(10, 0)

	// Visual alone: 85 x 0.70 = 59.5, below both Standard bars, so the
	// blood category never reaches a decision.
	visualOnly := &signal.MultiModalInput{Timestamp: ts, Visual: bloodVisual(10)}
	decisions, err := e.Process(ctx, visualOnly)
	require.NoError(t, err)
	assert.Nil(t, findDecision(decisions, category.Blood))

	// Corroborating text lifts the fused confidence to 59.5 + 80 x 0.15
	// = 71.5, past validation and the default threshold of 70.
	both := &signal.MultiModalInput{
		Timestamp: ts,
		Visual:    bloodVisual(10),
		Text:      corroboratingText("there is blood dripping everywhere"),
	}
	decisions, err = e.Process(ctx, both)
	require.NoError(t, err)
	d := findDecision(decisions, category.Blood)
	require.NotNil(t, d, "blood must reach a decision with text corroboration")
	assert.InDelta(t, 71.5, d.Confidence, 1e-9)
	assert.True(t, d.ShouldWarn)
	assert.Equal(t, category.RouteVisualPrimary, d.Route)
	assert.NotEmpty(t, d.ID)
	assert.NotEmpty(t, d.Reasoning)
}

func TestPredictionCacheShortCircuits(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	in := &signal.MultiModalInput{
		Timestamp: time.Unix(10, 0),
		Visual:    bloodVisual(50),
		Text:      corroboratingText("so much blood on the walls tonight"),
	}
	first, err := e.Process(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	submittedBefore := e.Stats().Scheduler.Submitted
	second, err := e.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first[0].Confidence, second[0].Confidence)
	assert.Equal(t, submittedBefore, e.Stats().Scheduler.Submitted,
		"cached sample must not reach the scheduler")
	assert.Greater(t, e.Stats().Cache[2].Hits, int64(0))

	// Callers get copies; mutating a returned slice must not poison the
	// cached decisions.
	second[0].Confidence = -1
	third, err := e.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first[0].Confidence, third[0].Confidence)
}

func TestQuietSampleSkipsFullFanOut(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	quiet := &signal.MultiModalInput{
		Timestamp: time.Unix(1, 0),
		Visual: &signal.ModalitySample{
			Confidence: 5,
			Features:   signal.FeatureBundle{Digest: bytes.Repeat([]byte{3, 9}, 64)},
		},
	}
	decisions, err := e.Process(ctx, quiet)
	require.NoError(t, err)
	assert.Empty(t, decisions)

	// Temporal-pattern categories are scored on every sample to keep their
	// escalation curves fed; everything else is skipped on a safe exit.
	s := e.Stats()
	temporal := int64(len(category.OnRoute(category.RouteTemporal)))
	assert.Equal(t, temporal, s.Scheduler.Submitted)
	assert.Equal(t, uint64(1), s.PreFilter.Stage1Exits)
}

func TestDismissalsRaiseThresholdPastWarning(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	in := &signal.MultiModalInput{
		Timestamp: time.Unix(10, 0),
		Visual:    bloodVisual(10),
		Text:      corroboratingText("there is blood dripping everywhere"),
	}
	decisions, err := e.Process(ctx, in)
	require.NoError(t, err)
	d := findDecision(decisions, category.Blood)
	require.NotNil(t, d)
	require.True(t, d.ShouldWarn)

	// Four dismissals at +0.5 apiece move the threshold from 70 to 72,
	// above the 71.5 this scene fuses to.
	for i := 0; i < 4; i++ {
		adj := e.ProcessFeedback(signal.UserFeedback{
			Category:            category.Blood,
			Kind:                signal.FeedbackDismissed,
			DetectionConfidence: d.Confidence,
			Timestamp:           time.Now(),
		})
		require.NotNil(t, adj)
	}
	th, ok := e.Threshold(category.Blood)
	require.True(t, ok)
	assert.InDelta(t, 72.0, th.Current, 1e-9)

	// A visually distinct take on the same scene: same confidences, new
	// cache key, so the new threshold applies.
	retake := &signal.MultiModalInput{
		Timestamp: time.Unix(20, 0),
		Visual:    bloodVisual(200),
		Text:      corroboratingText("the floor is covered in crimson stains again"),
	}
	decisions, err = e.Process(ctx, retake)
	require.NoError(t, err)
	d = findDecision(decisions, category.Blood)
	require.NotNil(t, d, "validation is threshold-independent")
	assert.False(t, d.ShouldWarn, "raised threshold must suppress the warning")
}

func TestThresholdExportImport(t *testing.T) {
	e := newTestEngine(t, nil)
	e.ProcessFeedback(signal.UserFeedback{
		Category:            category.Spiders,
		Kind:                signal.FeedbackSensitivityIncreased,
		DetectionConfidence: 0,
		Timestamp:           time.Now(),
	})
	exported := e.ExportThresholds()
	assert.Len(t, exported, category.Count)
	assert.InDelta(t, 69.0, exported[category.Spiders], 1e-9)

	fresh := newTestEngine(t, nil)
	fresh.ImportThresholds(exported)
	th, ok := fresh.Threshold(category.Spiders)
	require.True(t, ok)
	assert.InDelta(t, 69.0, th.Current, 1e-9)
}

func TestQueueFullSurfaces(t *testing.T) {
	two := 2
	e := newTestEngine(t, &config.TuningConfig{QueueCapacity: &two})
	ctx := context.Background()

	hot := &signal.MultiModalInput{
		Timestamp: time.Unix(10, 0),
		Visual:    bloodVisual(10),
		Text:      corroboratingText("blood and gore and screaming everywhere"),
	}
	_, err := e.Process(ctx, hot)
	assert.ErrorIs(t, err, sched.ErrQueueFull)
}

// patternDigest expands a 64-bit pattern into a digest whose average hash
// is exactly the pattern, giving the test full control over cache keys.
func patternDigest(pattern uint64) []byte {
	d := make([]byte, 64)
	for i := 0; i < 64; i++ {
		if pattern>>uint(i)&1 == 1 {
			d[i] = 0xFF
		}
	}
	return d
}

// TestEscalatedSceneMatchesUnfilteredPath feeds an intense scene followed
// by a weak closing sample through two engines, one with the pre-filter
// enabled and one without, and requires identical decisions throughout.
// The closing sample's confidences sit below every static bar, but the
// violence curve built by the strong samples keeps it validating; the
// early exit must not mask that.
func TestEscalatedSceneMatchesUnfilteredPath(t *testing.T) {
	filtered := newTestEngine(t, nil)
	off := false
	unfiltered := newTestEngine(t, &config.TuningConfig{PrefilterEnabled: &off})
	ctx := context.Background()

	patterns := []uint64{
		0xAAAAAAAAAAAAAAAA, 0x5555555555555555,
		0x00FF00FF00FF00FF, 0xFF00FF00FF00FF00,
		0x0F0F0F0F0F0F0F0F, 0xF0F0F0F0F0F0F0F0,
	}
	confs := []float64{90, 90, 90, 90, 90, 39}

	var got, want []signal.Decision
	for i := range confs {
		sample := func() *signal.MultiModalInput {
			return &signal.MultiModalInput{
				Timestamp: time.Unix(int64(100+i), 0),
				Visual: &signal.ModalitySample{
					Confidence: confs[i],
					Features:   signal.FeatureBundle{Digest: patternDigest(patterns[i])},
				},
				Audio: &signal.ModalitySample{Confidence: confs[i]},
				Text:  &signal.ModalitySample{Confidence: confs[i]},
			}
		}
		var err error
		got, err = filtered.Process(ctx, sample())
		require.NoError(t, err)
		want, err = unfiltered.Process(ctx, sample())
		require.NoError(t, err)
		if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(signal.Decision{}, "ID")); diff != "" {
			t.Fatalf("sample %d: decisions diverge with the pre-filter enabled (-unfiltered +filtered):\n%s", i, diff)
		}
	}

	// Weak closer: fused 39, level score 0.7x39 + 0.3x(450+39)/6 = 51.75,
	// boost 0.259, confidence 49.09. Validated but below the threshold.
	d := findDecision(got, category.Violence)
	require.NotNil(t, d, "weak closer inside an intense scene must still be scored")
	assert.InDelta(t, 49.091, d.Confidence, 0.01)
	assert.False(t, d.ShouldWarn)
}

func TestExpiredPredictionsRecomputeFromDetections(t *testing.T) {
	tiny := "1ns"
	e := newTestEngine(t, &config.TuningConfig{CacheL3TTL: &tiny})
	ctx := context.Background()

	in := &signal.MultiModalInput{
		Timestamp: time.Unix(10, 0),
		Visual:    bloodVisual(10),
		Text:      corroboratingText("there is blood dripping everywhere"),
	}
	first, err := e.Process(ctx, in)
	require.NoError(t, err)
	d := findDecision(first, category.Blood)
	require.NotNil(t, d)
	require.True(t, d.ShouldWarn)

	for i := 0; i < 4; i++ {
		require.NotNil(t, e.ProcessFeedback(signal.UserFeedback{
			Category:            category.Blood,
			Kind:                signal.FeedbackDismissed,
			DetectionConfidence: d.Confidence,
			Timestamp:           time.Now(),
		}))
	}

	// The prediction entry has expired, but the fused detections survive in
	// the detection tier: the engine re-decides against the raised
	// threshold without re-running the pipelines.
	submittedBefore := e.Stats().Scheduler.Submitted
	second, err := e.Process(ctx, in)
	require.NoError(t, err)
	d = findDecision(second, category.Blood)
	require.NotNil(t, d)
	assert.InDelta(t, 71.5, d.Confidence, 1e-9)
	assert.False(t, d.ShouldWarn, "re-decided against the raised threshold")
	assert.Equal(t, submittedBefore, e.Stats().Scheduler.Submitted,
		"detection cache hit must not reach the scheduler")
	assert.Greater(t, e.Stats().Cache[1].Hits, int64(0))
}

func TestFeatureCacheHydratesRepeatedFrames(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	scored := &signal.ModalitySample{
		Confidence: 85,
		Features: signal.FeatureBundle{
			Digest: bytes.Repeat([]byte{10, 17, 23, 200}, 32),
			Scores: map[string]float64{fusion.FeatColorConcentration: 0.9},
		},
	}
	_, err := e.Process(ctx, &signal.MultiModalInput{Timestamp: time.Unix(10, 0), Visual: scored})
	require.NoError(t, err)

	key := cache.KeyFor(signal.ModalityVisual, scored)
	b, ok := e.CachedFeatures(key)
	require.True(t, ok)
	assert.Equal(t, 0.9, b.Scores[fusion.FeatColorConcentration])

	// The same frame arrives without extractor output: the cached scores
	// are adopted, lifting blood's visual heuristic from 85 to 97 and the
	// fused confidence to 97x0.70 + 80x0.15 = 79.9.
	repeat := &signal.MultiModalInput{
		Timestamp: time.Unix(11, 0),
		Visual: &signal.ModalitySample{
			Confidence: 85,
			Features:   signal.FeatureBundle{Digest: bytes.Repeat([]byte{10, 17, 23, 200}, 32)},
		},
		Text: corroboratingText("there is blood dripping everywhere"),
	}
	decisions, err := e.Process(ctx, repeat)
	require.NoError(t, err)
	d := findDecision(decisions, category.Blood)
	require.NotNil(t, d)
	assert.InDelta(t, 79.9, d.Confidence, 1e-9)
	assert.True(t, d.ShouldWarn)
}

func TestResetTemporal(t *testing.T) {
	e := newTestEngine(t, nil)
	// Scene-change reset must be callable at any time, curves or not.
	e.ResetTemporal()
	e.ResetTemporalCategory(category.Violence)
}
