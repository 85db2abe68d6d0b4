package prefilter

import (
	"sync"
	"time"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/fusion"
	"github.com/haven-media/sentinel/internal/monitoring"
	"github.com/haven-media/sentinel/internal/signal"
)

// warnFloor is the safe-exit bound: a sample whose best achievable fused
// confidence stays below it cannot warn under any stateless validation
// policy. Tied to the fusion package so the two cannot drift apart.
const warnFloor = fusion.MinWarnableConfidence

// fullAnalysisCostMs is the assumed cost of a skipped full analysis, used
// only for the informational time-saved estimate.
const fullAnalysisCostMs = 20.0

// Result is the outcome of one pre-filter pass.
type Result struct {
	// Safe is true when the sample was proven uninteresting before
	// stage 3; no category list is produced.
	Safe bool
	// ExitStage is 1 or 2 when Safe, 3 otherwise.
	ExitStage int
	// Categories is the stage-3 suspect set handed to the pipelines.
	Categories []category.Category
	// StageTimes records per-stage processing time (index 0 = stage 1).
	StageTimes [3]time.Duration
}

// Stats is an informational snapshot of pre-filter throughput. Never used
// for correctness decisions, only capacity planning.
type Stats struct {
	Samples        uint64  `json:"samples"`
	Stage1Exits    uint64  `json:"stage1_exits"`
	Stage2Exits    uint64  `json:"stage2_exits"`
	FullAnalyses   uint64  `json:"full_analyses"`
	EarlyExitRate  float64 `json:"early_exit_rate"` // 0..1
	AvgStage1Ms    float64 `json:"avg_stage1_ms"`
	AvgStage2Ms    float64 `json:"avg_stage2_ms"`
	AvgStage3Ms    float64 `json:"avg_stage3_ms"`
	EstTimeSavedMs float64 `json:"est_time_saved_ms"`
}

// PreFilter is the three-stage hierarchical classifier. Safe for
// concurrent use; all mutable state is the stats block.
type PreFilter struct {
	// familyWeights[f][m] is the max route weight of modality m across
	// the family's member categories: multiplying upper-bounded modality
	// confidences by it upper-bounds every member's fused confidence.
	familyWeights map[Family]map[signal.Modality]float64
	groupWeights  map[Group]map[signal.Modality]float64

	mu      sync.Mutex
	samples uint64
	exits1  uint64
	exits2  uint64
	full    uint64
	timeSum [3]time.Duration
	runs    [3]uint64
}

// New builds a pre-filter, precomputing the per-family and per-group
// weight bounds from the route table.
func New() *PreFilter {
	p := &PreFilter{
		familyWeights: make(map[Family]map[signal.Modality]float64, len(allFamilies)),
		groupWeights:  make(map[Group]map[signal.Modality]float64, len(groupCategories)),
	}
	for g, cats := range groupCategories {
		p.groupWeights[g] = maxWeights(cats)
	}
	for _, f := range allFamilies {
		var cats []category.Category
		for _, g := range familyGroups[f] {
			cats = append(cats, groupCategories[g]...)
		}
		p.familyWeights[f] = maxWeights(cats)
	}
	return p
}

func maxWeights(cats []category.Category) map[signal.Modality]float64 {
	w := map[signal.Modality]float64{}
	for _, c := range cats {
		cfg := category.RouteFor(c)
		if cfg.Weights.Visual > w[signal.ModalityVisual] {
			w[signal.ModalityVisual] = cfg.Weights.Visual
		}
		if cfg.Weights.Audio > w[signal.ModalityAudio] {
			w[signal.ModalityAudio] = cfg.Weights.Audio
		}
		if cfg.Weights.Text > w[signal.ModalityText] {
			w[signal.ModalityText] = cfg.Weights.Text
		}
	}
	return w
}

// Run classifies one sample through the three stages.
func (p *PreFilter) Run(in *signal.MultiModalInput) Result {
	var res Result

	// Stage 1: coarse family screen on raw confidences plus the cheap
	// text regexes. Upper-bounds every modality by the max feature
	// adjustment rather than touching the scoring rows.
	start := time.Now()
	families := p.stage1(in)
	res.StageTimes[0] = time.Since(start)

	if len(families) == 0 {
		res.Safe = true
		res.ExitStage = 1
		p.record(res)
		return res
	}

	// Stage 2: narrow suspected families to groups using the tighter
	// per-group weight bounds and the real per-category adjustment caps.
	start = time.Now()
	groups := p.stage2(in, families)
	res.StageTimes[1] = time.Since(start)

	if len(groups) == 0 {
		res.Safe = true
		res.ExitStage = 2
		p.record(res)
		return res
	}

	// Stage 3: expand groups to concrete categories with exact per
	// category weight/adjustment bounds. Only this stage hands work to
	// the fusion pipelines.
	start = time.Now()
	res.Categories = p.stage3(in, groups)
	res.StageTimes[2] = time.Since(start)
	res.ExitStage = 3
	res.Safe = len(res.Categories) == 0

	p.record(res)
	return res
}

// confUB returns the stage-1 per-modality confidence upper bound.
func confUB(s *signal.ModalitySample) float64 {
	if s == nil {
		return 0
	}
	ub := s.Confidence + fusion.MaxFeatureAdjust
	if ub > 100 {
		ub = 100
	}
	return ub
}

func (p *PreFilter) stage1(in *signal.MultiModalInput) []Family {
	v := confUB(in.Visual)
	a := confUB(in.Audio)
	txt := confUB(in.Text)

	var rawText string
	if in.Text != nil {
		rawText = in.Text.Features.Text
	}

	var suspected []Family
	for _, f := range allFamilies {
		w := p.familyWeights[f]
		bound := v*w[signal.ModalityVisual] + a*w[signal.ModalityAudio] + txt*w[signal.ModalityText]
		if bound >= warnFloor {
			suspected = append(suspected, f)
			continue
		}
		if rawText != "" && familyRegexes[f].MatchString(rawText) {
			suspected = append(suspected, f)
		}
	}
	return suspected
}

// modalityUB returns conf + the exact per-category adjustment cap for one
// modality, or 0 when the modality is absent.
func modalityUB(in *signal.MultiModalInput, m signal.Modality, cat category.Category) float64 {
	s := in.Sample(m)
	if s == nil {
		return 0
	}
	ub := s.Confidence + fusion.AdjustUpperBound(cat, m, s.Features)
	if ub > 100 {
		ub = 100
	}
	return ub
}

func (p *PreFilter) stage2(in *signal.MultiModalInput, families []Family) []Group {
	var suspected []Group
	for _, f := range families {
		for _, g := range familyGroups[f] {
			w := p.groupWeights[g]
			var maxV, maxA, maxT float64
			for _, cat := range groupCategories[g] {
				if ub := modalityUB(in, signal.ModalityVisual, cat); ub > maxV {
					maxV = ub
				}
				if ub := modalityUB(in, signal.ModalityAudio, cat); ub > maxA {
					maxA = ub
				}
				if ub := modalityUB(in, signal.ModalityText, cat); ub > maxT {
					maxT = ub
				}
			}
			bound := maxV*w[signal.ModalityVisual] + maxA*w[signal.ModalityAudio] + maxT*w[signal.ModalityText]
			if bound >= warnFloor {
				suspected = append(suspected, g)
			}
		}
	}
	return suspected
}

func (p *PreFilter) stage3(in *signal.MultiModalInput, groups []Group) []category.Category {
	var suspects []category.Category
	for _, g := range groups {
		for _, cat := range groupCategories[g] {
			cfg := category.RouteFor(cat)
			bound := modalityUB(in, signal.ModalityVisual, cat)*cfg.Weights.Visual +
				modalityUB(in, signal.ModalityAudio, cat)*cfg.Weights.Audio +
				modalityUB(in, signal.ModalityText, cat)*cfg.Weights.Text
			if bound >= warnFloor {
				suspects = append(suspects, cat)
			}
		}
	}
	return suspects
}

func (p *PreFilter) record(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples++
	for i := 0; i < res.ExitStage; i++ {
		p.timeSum[i] += res.StageTimes[i]
		p.runs[i]++
	}
	switch {
	case res.Safe && res.ExitStage == 1:
		p.exits1++
	case res.Safe && res.ExitStage == 2:
		p.exits2++
	default:
		p.full++
	}

	if p.samples%1000 == 0 {
		monitoring.Diagf("prefilter: %d samples, %.1f%% early exits",
			p.samples, 100*float64(p.exits1+p.exits2)/float64(p.samples))
	}
}

// Stats returns an informational throughput snapshot.
func (p *PreFilter) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Samples:      p.samples,
		Stage1Exits:  p.exits1,
		Stage2Exits:  p.exits2,
		FullAnalyses: p.full,
	}
	if p.samples > 0 {
		s.EarlyExitRate = float64(p.exits1+p.exits2) / float64(p.samples)
	}
	for i, avg := range []*float64{&s.AvgStage1Ms, &s.AvgStage2Ms, &s.AvgStage3Ms} {
		if p.runs[i] > 0 {
			*avg = float64(p.timeSum[i].Microseconds()) / 1000 / float64(p.runs[i])
		}
	}
	s.EstTimeSavedMs = float64(p.exits1+p.exits2) * fullAnalysisCostMs
	return s
}
