package fusion

import (
	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

// Canonical feature names produced by the external extractors. Pipelines
// read these; unknown names in a bundle are ignored.
const (
	// Visual features
	FeatColorConcentration  = "color_concentration"
	FeatTextureIrregularity = "texture_irregularity"
	FeatLiquidChunkiness    = "liquid_chunkiness"
	FeatMotionIntensity     = "motion_intensity"
	FeatFlashFrequency      = "flash_frequency"
	FeatShapeSalience       = "shape_salience"
	FeatSkinExposure        = "skin_exposure"

	// Audio features
	FeatImpulseEnergy  = "impulse_energy"
	FeatLowFreqEnergy  = "low_freq_energy"
	FeatSpectralFlux   = "spectral_flux"
	FeatAmplitudeSpike = "amplitude_spike"
	FeatScreechEnergy  = "screech_energy"
	FeatDistressVocal  = "distress_vocal"

	// Text features
	FeatKeywordScore    = "keyword_score"
	FeatContextScore    = "context_score"
	FeatIntensityMarker = "intensity_marker"
)

// featureCoeff weights one named feature inside a category's primary
// scoring heuristic.
type featureCoeff struct {
	name   string
	weight float64
}

// visualCoeffs holds the per-category scoring rows for the visual-primary
// pipeline. Categories without a row fall back to visualDefault. New
// categories register a row here, not a branch in the pipeline.
var visualCoeffs = map[category.Category][]featureCoeff{
	category.Blood: {
		{FeatColorConcentration, 0.5},
		{FeatLiquidChunkiness, 0.3},
		{FeatTextureIrregularity, 0.2},
	},
	category.Gore: {
		{FeatTextureIrregularity, 0.45},
		{FeatColorConcentration, 0.35},
		{FeatLiquidChunkiness, 0.2},
	},
	category.Vomit: {
		{FeatLiquidChunkiness, 0.55},
		{FeatColorConcentration, 0.25},
		{FeatTextureIrregularity, 0.2},
	},
	category.FlashingLights: {
		{FeatFlashFrequency, 0.8},
		{FeatMotionIntensity, 0.2},
	},
	category.Needles: {
		{FeatShapeSalience, 0.7},
		{FeatSkinExposure, 0.3},
	},
	category.Nudity: {
		{FeatSkinExposure, 0.8},
		{FeatShapeSalience, 0.2},
	},
	category.Spiders: {{FeatShapeSalience, 0.7}, {FeatMotionIntensity, 0.3}},
	category.Snakes:  {{FeatShapeSalience, 0.7}, {FeatMotionIntensity, 0.3}},
	category.Insects: {{FeatShapeSalience, 0.6}, {FeatMotionIntensity, 0.4}},
	category.Clowns:  {{FeatShapeSalience, 0.8}, {FeatColorConcentration, 0.2}},
}

var visualDefault = []featureCoeff{
	{FeatColorConcentration, 0.4},
	{FeatTextureIrregularity, 0.3},
	{FeatMotionIntensity, 0.3},
}

// audioCoeffs holds the per-category scoring rows for the audio-primary
// pipeline: transient/impulse energy dominates gunshot-like events,
// low-frequency sustained energy dominates explosion-like events.
var audioCoeffs = map[category.Category][]featureCoeff{
	category.Guns: {
		{FeatImpulseEnergy, 0.6},
		{FeatAmplitudeSpike, 0.3},
		{FeatSpectralFlux, 0.1},
	},
	category.Explosions: {
		{FeatLowFreqEnergy, 0.55},
		{FeatAmplitudeSpike, 0.3},
		{FeatImpulseEnergy, 0.15},
	},
	category.Screaming: {
		{FeatScreechEnergy, 0.55},
		{FeatDistressVocal, 0.35},
		{FeatAmplitudeSpike, 0.1},
	},
	category.JumpScares: {
		{FeatAmplitudeSpike, 0.5},
		{FeatSpectralFlux, 0.3},
		{FeatImpulseEnergy, 0.2},
	},
}

var audioDefault = []featureCoeff{
	{FeatAmplitudeSpike, 0.4},
	{FeatImpulseEnergy, 0.3},
	{FeatLowFreqEnergy, 0.3},
}

// textCoeffs holds the per-category scoring rows for the text-primary
// pipeline. The raw keyword scan (keywordTable) feeds FeatKeywordScore
// when the extractor did not provide one.
var textCoeffs = map[category.Category][]featureCoeff{
	category.Slurs: {
		{FeatKeywordScore, 0.7},
		{FeatIntensityMarker, 0.3},
	},
	category.EatingDisorders: {
		{FeatKeywordScore, 0.5},
		{FeatContextScore, 0.5},
	},
	category.Drugs: {
		{FeatKeywordScore, 0.6},
		{FeatContextScore, 0.4},
	},
	category.Alcohol: {
		{FeatKeywordScore, 0.6},
		{FeatContextScore, 0.4},
	},
}

var textDefault = []featureCoeff{
	{FeatKeywordScore, 0.6},
	{FeatContextScore, 0.4},
}

// corroborationFeatures lists, per modality, the features whose presence
// (>=0.5) marks a secondary bundle as independently corroborating, which
// lifts the secondary damping to 1.0.
var corroborationFeatures = map[signal.Modality][]string{
	signal.ModalityVisual: {FeatColorConcentration, FeatMotionIntensity, FeatShapeSalience},
	signal.ModalityAudio:  {FeatImpulseEnergy, FeatAmplitudeSpike, FeatDistressVocal},
	signal.ModalityText:   {FeatKeywordScore, FeatContextScore},
}

// highSensitivityBars overrides the fused-confidence bar for specific
// high-sensitivity categories. Everything else uses the 75 default.
var highSensitivityBars = map[category.Category]float64{
	category.ChildAbuse:    80,
	category.SexualAssault: 80,
}

func highSensitivityBar(cat category.Category) float64 {
	if bar, ok := highSensitivityBars[cat]; ok {
		return bar
	}
	return 75
}

// keywordTable backs the raw subtitle scan in the text pipeline. Matches
// contribute a keyword score when the extractor supplied none. Lists are
// intentionally short: the heavy lexical work happens in the external NLP
// extractor, this is only a corroboration net.
var keywordTable = map[category.Category][]string{
	category.Blood:           {"blood", "bleeding", "bled"},
	category.Gore:            {"guts", "entrails", "dismember"},
	category.Vomit:           {"vomit", "puke", "throw up"},
	category.Violence:        {"fight", "beat", "attack", "stab"},
	category.SelfHarm:        {"cut myself", "hurt myself", "self-harm"},
	category.EatingDisorders: {"calories", "purge", "starve", "binge"},
	category.Slurs:           {}, // slur lexicon stays in the external extractor
	category.Death:           {"died", "dead", "funeral", "kill"},
	category.Drugs:           {"overdose", "heroin", "cocaine", "high"},
	category.Alcohol:         {"drunk", "whiskey", "vodka", "hungover"},
	category.Needles:         {"needle", "syringe", "injection"},
	category.Medical:         {"surgery", "hospital", "operation"},
	category.Drowning:        {"drown", "underwater", "can't breathe"},
	category.Choking:         {"choke", "strangle", "can't breathe"},
	category.Guns:            {"gun", "shoot", "shot", "pistol"},
	category.Explosions:      {"explosion", "bomb", "blast"},
	category.CarCrashes:      {"crash", "collision", "wreck"},
	category.Screaming:       {"scream", "shriek"},
}

// negationMarkers are the word cues the raw-text negation scan looks for
// within a few words ahead of a matched keyword ("no blood", "never shot").
// Contracted forms ("didn't", "wasn't") are matched by their n't suffix.
var negationMarkers = []string{
	"no", "not", "never", "without", "none", "nobody", "nothing",
}
