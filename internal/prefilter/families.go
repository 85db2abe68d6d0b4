// Package prefilter implements the three-stage coarse-to-fine classifier
// that sits in front of the fusion pipelines. It is purely a throughput
// optimization: every exclusion it makes is justified by an upper bound on
// the fused confidence the pipelines could produce, so under the stateless
// validation policies a safe exit can never hide a detection the full path
// would have warned on. Heuristics only ever ADD suspicion.
//
// The bounds are per-sample and see no cross-sample state. Temporal-pattern
// categories validate against their escalation curve, which accumulates
// across samples; the engine classifies those categories on every sample
// and ignores this filter's verdict for them.
package prefilter

import (
	"regexp"

	"github.com/haven-media/sentinel/internal/category"
)

// Family is a coarse bucket of related categories used by stage 1.
type Family string

const (
	FamilyGore       Family = "gore"
	FamilyWeapons    Family = "weapons"
	FamilyViolence   Family = "violence"
	FamilySelfHarm   Family = "self-harm"
	FamilyCreatures  Family = "creatures"
	FamilySensory    Family = "sensory"
	FamilySubstances Family = "substances"
	FamilyDistress   Family = "distress"
	FamilyLanguage   Family = "language"
	FamilyProtection Family = "protection"
)

// Group is a finer bucket used by stage 2 to narrow a family before the
// per-category stage-3 expansion.
type Group string

const (
	GroupFluids      Group = "fluids"
	GroupViscera     Group = "viscera"
	GroupFirearms    Group = "firearms"
	GroupImpact      Group = "impact"
	GroupSelfInjury  Group = "self-injury"
	GroupPhobiaFauna Group = "phobia-fauna"
	GroupPhotic      Group = "photic"
	GroupAcoustic    Group = "acoustic"
	GroupClinical    Group = "clinical"
	GroupAsphyxia    Group = "asphyxia"
	GroupSlurSpeech  Group = "slur-speech"
	GroupAbuse       Group = "abuse"
)

// familyGroups narrows each family to its stage-2 groups.
var familyGroups = map[Family][]Group{
	FamilyGore:       {GroupFluids, GroupViscera},
	FamilyWeapons:    {GroupFirearms},
	FamilyViolence:   {GroupImpact},
	FamilySelfHarm:   {GroupSelfInjury},
	FamilyCreatures:  {GroupPhobiaFauna},
	FamilySensory:    {GroupPhotic, GroupAcoustic},
	FamilySubstances: {GroupClinical},
	FamilyDistress:   {GroupAsphyxia},
	FamilyLanguage:   {GroupSlurSpeech},
	FamilyProtection: {GroupAbuse},
}

// groupCategories expands each group to its concrete categories. Every
// category appears in exactly one group; TestFamilyTablesCoverAllCategories
// guards the partition.
var groupCategories = map[Group][]category.Category{
	GroupFluids:      {category.Blood, category.Vomit},
	GroupViscera:     {category.Gore},
	GroupFirearms:    {category.Guns, category.Explosions},
	GroupImpact:      {category.Violence, category.CarCrashes, category.Death},
	GroupSelfInjury:  {category.SelfHarm, category.EatingDisorders},
	GroupPhobiaFauna: {category.Spiders, category.Snakes, category.Insects, category.Clowns},
	GroupPhotic:      {category.FlashingLights},
	GroupAcoustic:    {category.JumpScares, category.Screaming},
	GroupClinical:    {category.Needles, category.Medical, category.Drugs, category.Alcohol},
	GroupAsphyxia:    {category.Drowning, category.Choking},
	GroupSlurSpeech:  {category.Slurs},
	GroupAbuse:       {category.SexualAssault, category.ChildAbuse, category.AnimalCruelty, category.Nudity},
}

// allFamilies lists the stage-1 families in a stable order.
var allFamilies = []Family{
	FamilyGore, FamilyWeapons, FamilyViolence, FamilySelfHarm,
	FamilyCreatures, FamilySensory, FamilySubstances, FamilyDistress,
	FamilyLanguage, FamilyProtection,
}

// familyRegexes are the cheap stage-1 text screens. A match adds suspicion
// for the family; no match never removes it.
var familyRegexes = map[Family]*regexp.Regexp{
	FamilyGore:       regexp.MustCompile(`(?i)\b(blood|bleed|gore|guts|vomit|puke)`),
	FamilyWeapons:    regexp.MustCompile(`(?i)\b(gun|shoot|shot|bomb|explo|pistol|rifle)`),
	FamilyViolence:   regexp.MustCompile(`(?i)\b(fight|attack|stab|beat|crash|kill|die|dead)`),
	FamilySelfHarm:   regexp.MustCompile(`(?i)\b(self.?harm|cut (myself|herself|himself)|starv|purge|binge)`),
	FamilyCreatures:  regexp.MustCompile(`(?i)\b(spider|snake|insect|bug|clown)`),
	FamilySensory:    regexp.MustCompile(`(?i)\b(flash|strobe|scream|shriek)`),
	FamilySubstances: regexp.MustCompile(`(?i)\b(needle|syringe|drug|heroin|cocaine|drunk|vodka|whiskey|surgery)`),
	FamilyDistress:   regexp.MustCompile(`(?i)\b(drown|choke|strangl|can.?t breathe)`),
	FamilyLanguage:   regexp.MustCompile(`(?i)\b(slur)`),
	FamilyProtection: regexp.MustCompile(`(?i)\b(assault|abuse|molest|naked|nude)`),
}
