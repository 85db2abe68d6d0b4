package learner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/signal"
)

func fb(cat category.Category, kind signal.FeedbackKind, conf float64) signal.UserFeedback {
	return signal.UserFeedback{
		Category:            cat,
		Kind:                kind,
		DetectionConfidence: conf,
		Timestamp:           time.Now(),
	}
}

func TestDefaults(t *testing.T) {
	l := New(nil)
	for _, c := range category.All() {
		th, ok := l.Threshold(c)
		require.True(t, ok, "missing threshold for %s", c)
		assert.Equal(t, 70.0, th.Current)
		assert.False(t, th.Converged)
	}
}

func TestDismissedRaisesThreshold(t *testing.T) {
	l := New(nil)

	// Warning at confidence 90 against a threshold of 70: raw delta 20,
	// applied delta 2 at the default learning rate.
	adj := l.ProcessFeedback(fb(category.Blood, signal.FeedbackDismissed, 90))
	require.NotNil(t, adj)
	assert.InDelta(t, 20.0, adj.RawDelta, 1e-9)
	assert.InDelta(t, 2.0, adj.AppliedDelta, 1e-9)
	assert.InDelta(t, 72.0, adj.NewThreshold, 1e-9)

	// A dismissal barely above (or below) the threshold still nudges it
	// up by the +5 minimum.
	adj = l.ProcessFeedback(fb(category.Blood, signal.FeedbackDismissed, 72.5))
	require.NotNil(t, adj)
	assert.InDelta(t, 5.0, adj.RawDelta, 1e-9)
	assert.InDelta(t, 72.5, adj.NewThreshold, 1e-9)
}

func TestFeedbackDeltas(t *testing.T) {
	cases := []struct {
		name string
		kind signal.FeedbackKind
		raw  float64
	}{
		{"reported missed", signal.FeedbackReportedMissed, -10},
		{"sensitivity increased", signal.FeedbackSensitivityIncreased, -10},
		{"sensitivity decreased", signal.FeedbackSensitivityDecreased, 10},
		{"watched through", signal.FeedbackWatchedThrough, 2},
		{"confirmed correct", signal.FeedbackConfirmedCorrect, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(nil)
			adj := l.ProcessFeedback(fb(category.Drugs, tc.kind, 80))
			require.NotNil(t, adj)
			assert.InDelta(t, tc.raw, adj.RawDelta, 1e-9)
			assert.InDelta(t, tc.raw*0.1, adj.AppliedDelta, 1e-9)
			assert.InDelta(t, 70+tc.raw*0.1, adj.NewThreshold, 1e-9)
		})
	}
}

func TestThresholdClamping(t *testing.T) {
	l := New(nil)

	// Drive the threshold down; it must never drop below the floor.
	for i := 0; i < 100; i++ {
		l.ProcessFeedback(fb(category.Guns, signal.FeedbackReportedMissed, 0))
	}
	th, _ := l.Threshold(category.Guns)
	assert.InDelta(t, 40.0, th.Current, 1e-9)

	// And back up; it must never exceed the ceiling.
	for i := 0; i < 200; i++ {
		l.ProcessFeedback(fb(category.Guns, signal.FeedbackSensitivityDecreased, 0))
	}
	th, _ = l.Threshold(category.Guns)
	assert.InDelta(t, 95.0, th.Current, 1e-9)
	assert.Equal(t, 300, th.LearningCount)
}

func TestConvergenceOnConfirmations(t *testing.T) {
	l := New(nil)

	// A disruptive adjustment first, then a run of confirmations: the
	// category converges once the trailing window holds only small deltas.
	l.ProcessFeedback(fb(category.Spiders, signal.FeedbackReportedMissed, 0))
	var adj *ThresholdAdjustment
	for i := 0; i < 6; i++ {
		adj = l.ProcessFeedback(fb(category.Spiders, signal.FeedbackConfirmedCorrect, 0))
		require.NotNil(t, adj)
	}
	assert.True(t, adj.Converged)

	// A large correction breaks convergence again.
	adj = l.ProcessFeedback(fb(category.Spiders, signal.FeedbackSensitivityDecreased, 0))
	assert.False(t, adj.Converged)
}

func TestConvergenceNeedsFullWindow(t *testing.T) {
	l := New(nil)
	var adj *ThresholdAdjustment
	for i := 0; i < 4; i++ {
		adj = l.ProcessFeedback(fb(category.Needles, signal.FeedbackConfirmedCorrect, 0))
	}
	assert.False(t, adj.Converged, "window of 4 must not converge")
	adj = l.ProcessFeedback(fb(category.Needles, signal.FeedbackConfirmedCorrect, 0))
	assert.True(t, adj.Converged)
}

func TestShouldWarn(t *testing.T) {
	l := New(nil)
	assert.True(t, l.ShouldWarn(category.Blood, 70))
	assert.True(t, l.ShouldWarn(category.Blood, 95))
	assert.False(t, l.ShouldWarn(category.Blood, 69.9))
	assert.False(t, l.ShouldWarn(category.Category("bogus"), 100))
}

func TestUnknownCategoryIgnored(t *testing.T) {
	l := New(nil)
	adj := l.ProcessFeedback(fb(category.Category("bogus"), signal.FeedbackDismissed, 90))
	assert.Nil(t, adj)
}

func TestExportImportRoundTrip(t *testing.T) {
	l := New(nil)
	l.ProcessFeedback(fb(category.Blood, signal.FeedbackDismissed, 90))
	exported := l.Export()
	assert.Len(t, exported, category.Count)
	assert.InDelta(t, 72.0, exported[category.Blood], 1e-9)

	fresh := New(nil)
	fresh.Import(exported)
	th, _ := fresh.Threshold(category.Blood)
	assert.InDelta(t, 72.0, th.Current, 1e-9)
}

func TestImportClampsAndSkipsUnknown(t *testing.T) {
	l := New(nil)
	l.Import(map[category.Category]float64{
		category.Blood:            10,
		category.Guns:             200,
		category.Category("junk"): 55,
	})
	th, _ := l.Threshold(category.Blood)
	assert.InDelta(t, 40.0, th.Current, 1e-9)
	th, _ = l.Threshold(category.Guns)
	assert.InDelta(t, 95.0, th.Current, 1e-9)
	_, ok := l.Threshold(category.Category("junk"))
	assert.False(t, ok)
}

func TestCustomConfig(t *testing.T) {
	rate := 0.5
	def := 50.0
	cfg := &config.TuningConfig{LearningRate: &rate, DefaultThreshold: &def}
	l := New(cfg)
	adj := l.ProcessFeedback(fb(category.Alcohol, signal.FeedbackSensitivityDecreased, 0))
	require.NotNil(t, adj)
	assert.InDelta(t, 55.0, adj.NewThreshold, 1e-9)
}
