// Package engine composes the pre-filter, fusion pipelines, threshold
// learner, smart cache, and scheduler behind one Process call. The engine
// owns all mutable state; callers hold no locks and share nothing.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/haven-media/sentinel/internal/cache"
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/fusion"
	"github.com/haven-media/sentinel/internal/learner"
	"github.com/haven-media/sentinel/internal/monitoring"
	"github.com/haven-media/sentinel/internal/prefilter"
	"github.com/haven-media/sentinel/internal/sched"
	"github.com/haven-media/sentinel/internal/signal"
)

// Engine is the orchestrator. Construct with New, release with Close.
type Engine struct {
	cfg       *config.TuningConfig
	pipelines *fusion.Set
	prefilter *prefilter.PreFilter
	learner   *learner.Learner
	cache     *cache.Cache
	pool      *sched.Pool

	prefilterOn bool
	temporal    []category.Category
}

// Stats aggregates the operational snapshots of every component.
type Stats struct {
	PreFilter prefilter.Stats `json:"prefilter"`
	Cache     cache.Stats     `json:"cache"`
	Scheduler sched.Stats     `json:"scheduler"`
}

// New builds an engine from the tuning config. Route-table completeness is
// verified first; an incomplete table rejects construction.
func New(cfg *config.TuningConfig) (*Engine, error) {
	if cfg == nil {
		cfg = &config.TuningConfig{}
	}
	if err := category.VerifyCompleteness(); err != nil {
		return nil, fmt.Errorf("engine: route table: %w", err)
	}
	e := &Engine{
		cfg:         cfg,
		pipelines:   fusion.NewSet(cfg),
		prefilter:   prefilter.New(),
		learner:     learner.New(cfg),
		cache:       cache.New(cfg),
		prefilterOn: cfg.GetPrefilterEnabled(),
		temporal:    category.OnRoute(category.RouteTemporal),
	}
	e.pool = sched.NewPool(cfg, e.pipelines.Process)
	monitoring.Opsf("engine: started, %d categories, prefilter=%v", category.Count, e.prefilterOn)
	return e, nil
}

// Close stops the scheduler and the cache sweeper.
func (e *Engine) Close() {
	e.pool.Close()
	e.cache.Close()
}

// Process classifies one multi-modal sample and returns a decision per
// category that passed validation. A sample with no modalities yields no
// decisions and no error. A full scheduler queue surfaces as an error.
// Process may enrich the input's feature bundles from the feature cache.
func (e *Engine) Process(ctx context.Context, in *signal.MultiModalInput) ([]signal.Decision, error) {
	if in == nil || in.ModalityCount() == 0 {
		return nil, nil
	}

	key := cache.InputKey(in)
	if cached, ok := e.cache.Get(cache.LevelPredictions, key); ok {
		if decisions, ok := cached.([]signal.Decision); ok {
			monitoring.Tracef("engine: prediction cache hit for key %#x", key)
			return append([]signal.Decision(nil), decisions...), nil
		}
	}
	e.hydrateFeatures(in)
	e.cacheFeatures(in)

	detections, ok := e.cachedDetections(key)
	if !ok {
		suspects := category.All()
		if e.prefilterOn {
			suspects = e.suspects(e.prefilter.Run(in))
		}
		var err error
		detections, err = e.classify(ctx, in, suspects)
		if err != nil {
			return nil, err
		}
		e.cache.Set(cache.LevelEmbeddings, key, "", detections, detectionSize(detections))
	}

	decisions := e.decide(detections)
	e.cache.Set(cache.LevelPredictions, key, "", decisions, predictionSize(decisions))
	return append([]signal.Decision(nil), decisions...), nil
}

// suspects merges the pre-filter verdict with the temporal-route
// categories. The filter's confidence bounds are sound only for the
// stateless validation policies; temporal-pattern categories validate
// against escalation state accumulated across samples, so they are
// classified on every sample regardless of the verdict. That keeps their
// curves fed with the same observation stream the pipelines would see with
// the filter disabled, and lets a quiet frame inside an intense scene
// still warn.
func (e *Engine) suspects(res prefilter.Result) []category.Category {
	out := append([]category.Category(nil), e.temporal...)
	if res.Safe {
		return out
	}
	for _, c := range res.Categories {
		if category.RouteFor(c).Route != category.RouteTemporal {
			out = append(out, c)
		}
	}
	return out
}

// cachedDetections consults the detection tier when the prediction entry
// has expired but the fused detections survive: decisions are then
// recomputed against the current thresholds without re-running the
// pipelines.
func (e *Engine) cachedDetections(key uint64) ([]signal.Detection, bool) {
	v, ok := e.cache.Get(cache.LevelEmbeddings, key)
	if !ok {
		return nil, false
	}
	dets, ok := v.([]signal.Detection)
	if ok {
		monitoring.Tracef("engine: detection cache hit for key %#x", key)
	}
	return dets, ok
}

// classify fans the suspect set out across the worker pool and gathers the
// per-category detections.
func (e *Engine) classify(ctx context.Context, in *signal.MultiModalInput, suspects []category.Category) ([]signal.Detection, error) {
	if len(suspects) == 0 {
		return nil, nil
	}
	futures, err := e.pool.SubmitCategories(in, priorityFor(in), suspects)
	if err != nil {
		return nil, fmt.Errorf("engine: classify: %w", err)
	}
	detections := make([]signal.Detection, 0, len(futures))
	for _, fut := range futures {
		det, err := fut.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: classify: %w", err)
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// decide filters validated detections through the learned thresholds and
// attaches reasoning. Ordered by confidence, strongest first.
func (e *Engine) decide(detections []signal.Detection) []signal.Decision {
	decisions := make([]signal.Decision, 0, len(detections))
	for _, det := range detections {
		if !det.ValidationPassed {
			continue
		}
		warn := e.learner.ShouldWarn(det.Category, det.Confidence)
		decisions = append(decisions, signal.Decision{
			ID:         uuid.NewString(),
			Category:   det.Category,
			Confidence: det.Confidence,
			ShouldWarn: warn,
			Route:      det.Route,
			Reasoning:  reasoning(det, warn),
		})
	}
	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].Confidence != decisions[j].Confidence {
			return decisions[i].Confidence > decisions[j].Confidence
		}
		return decisions[i].Category < decisions[j].Category
	})
	return decisions
}

func reasoning(det signal.Detection, warn bool) []string {
	rs := make([]string, 0, len(det.Contributions)+2)
	for _, c := range det.Contributions {
		rs = append(rs, fmt.Sprintf("%s confidence %.1f at weight %.2f", c.Modality, c.Confidence, c.Weight))
	}
	if det.Temporal.Level != "" {
		rs = append(rs, fmt.Sprintf("escalation %s, level score %.1f, rate %.2f/s",
			det.Temporal.Level, det.Temporal.LevelScore, det.Temporal.EscalationRate))
	}
	if warn {
		rs = append(rs, fmt.Sprintf("fused %.1f crossed the learned threshold", det.Confidence))
	} else {
		rs = append(rs, fmt.Sprintf("fused %.1f validated but below the learned threshold", det.Confidence))
	}
	return rs
}

// priorityFor raises scheduling priority for samples that already look hot
// on any single modality.
func priorityFor(in *signal.MultiModalInput) sched.Priority {
	for _, m := range signal.Modalities {
		if s := in.Sample(m); s != nil && s.Confidence >= 80 {
			return sched.PriorityHigh
		}
	}
	return sched.PriorityNormal
}

// CachedFeatures looks up a previously extracted feature bundle by its
// perceptual key, so a host-side extractor can skip re-extraction for
// repeated content. Keys come from cache.KeyFor.
func (e *Engine) CachedFeatures(key uint64) (signal.FeatureBundle, bool) {
	v, ok := e.cache.Get(cache.LevelFeatures, key)
	if !ok {
		return signal.FeatureBundle{}, false
	}
	b, ok := v.(signal.FeatureBundle)
	return b, ok
}

// hydrateFeatures fills score-less bundles from the feature cache, so a
// repeated frame reuses extractor output cached for a near-identical
// predecessor. Only named scores are adopted; digest and raw text stay as
// supplied so the perceptual keys remain stable.
func (e *Engine) hydrateFeatures(in *signal.MultiModalInput) {
	for _, m := range signal.Modalities {
		s := in.Sample(m)
		if s == nil || len(s.Features.Scores) > 0 {
			continue
		}
		k := cache.KeyFor(m, s)
		if k == 0 {
			continue
		}
		if b, ok := e.CachedFeatures(k); ok && len(b.Scores) > 0 {
			monitoring.Tracef("engine: feature cache hit for %s key %#x", m, k)
			s.Features.Scores = b.Scores
		}
	}
}

// cacheFeatures stores each modality's feature bundle at L1 under its own
// perceptual key, so repeated frames skip extraction upstream.
func (e *Engine) cacheFeatures(in *signal.MultiModalInput) {
	for _, m := range signal.Modalities {
		s := in.Sample(m)
		if s == nil {
			continue
		}
		if k := cache.KeyFor(m, s); k != 0 {
			e.cache.Set(cache.LevelFeatures, k, "", s.Features, bundleSize(s.Features))
		}
	}
}

func bundleSize(b signal.FeatureBundle) int64 {
	return int64(len(b.Digest) + len(b.Text) + 16*len(b.Scores))
}

func detectionSize(dets []signal.Detection) int64 {
	return int64(96 * (len(dets) + 1))
}

func predictionSize(decs []signal.Decision) int64 {
	return int64(80*(len(decs)+1) + 16)
}

// ProcessFeedback forwards one user feedback event to the learner.
// Returns nil when the event was ignored.
func (e *Engine) ProcessFeedback(fb signal.UserFeedback) *learner.ThresholdAdjustment {
	return e.learner.ProcessFeedback(fb)
}

// ResetTemporal clears all escalation curves, for scene changes.
func (e *Engine) ResetTemporal() {
	e.pipelines.Tracker().ResetAll()
}

// ResetTemporalCategory clears one category's escalation curve.
func (e *Engine) ResetTemporalCategory(cat category.Category) {
	e.pipelines.Tracker().Reset(cat)
}

// ImportThresholds loads persisted per-category thresholds.
func (e *Engine) ImportThresholds(m map[category.Category]float64) {
	e.learner.Import(m)
}

// ExportThresholds snapshots the current per-category thresholds for
// persistence by the host.
func (e *Engine) ExportThresholds() map[category.Category]float64 {
	return e.learner.Export()
}

// Threshold exposes one category's learning state.
func (e *Engine) Threshold(cat category.Category) (learner.CategoryThreshold, bool) {
	return e.learner.Threshold(cat)
}

// Stats snapshots every component.
func (e *Engine) Stats() Stats {
	return Stats{
		PreFilter: e.prefilter.Stats(),
		Cache:     e.cache.Stats(),
		Scheduler: e.pool.Stats(),
	}
}
