// Package category defines the fixed set of content-sensitivity categories
// and the static routing table that assigns each category a fusion strategy.
//
// This package is leaf data: everything else in the engine reads it, it
// imports nothing from the rest of the module. Adding a category means
// adding an enum value, a routing row, and a scoring row in fusion — the
// completeness check catches a missing routing row at startup.
package category

// Category identifies one content-sensitivity tag the engine classifies
// against. The set is fixed at compile time; new categories require a code
// change, not runtime data.
type Category string

const (
	Blood           Category = "blood"
	Gore            Category = "gore"
	Vomit           Category = "vomit"
	Violence        Category = "violence"
	SelfHarm        Category = "self-harm"
	EatingDisorders Category = "eating-disorders"
	FlashingLights  Category = "flashing-lights"
	Slurs           Category = "slurs"
	SexualAssault   Category = "sexual-assault"
	AnimalCruelty   Category = "animal-cruelty"
	ChildAbuse      Category = "child-abuse"
	Death           Category = "death"
	Drugs           Category = "drugs"
	Alcohol         Category = "alcohol"
	Needles         Category = "needles"
	Medical         Category = "medical"
	Spiders         Category = "spiders"
	Snakes          Category = "snakes"
	Insects         Category = "insects"
	Clowns          Category = "clowns"
	Drowning        Category = "drowning"
	Choking         Category = "choking"
	Guns            Category = "guns"
	Explosions      Category = "explosions"
	CarCrashes      Category = "car-crashes"
	JumpScares      Category = "jump-scares"
	Screaming       Category = "screaming"
	Nudity          Category = "nudity"
)

// all lists every category exactly once, in declaration order. Keep in sync
// with the constants above; TestAllCategoriesCount guards the count.
var all = []Category{
	Blood, Gore, Vomit, Violence, SelfHarm, EatingDisorders,
	FlashingLights, Slurs, SexualAssault, AnimalCruelty, ChildAbuse,
	Death, Drugs, Alcohol, Needles, Medical, Spiders, Snakes, Insects,
	Clowns, Drowning, Choking, Guns, Explosions, CarCrashes, JumpScares,
	Screaming, Nudity,
}

// Count is the number of registered categories.
const Count = 28

// All returns every registered category in a stable order. The returned
// slice is a copy; callers may reorder it freely.
func All() []Category {
	out := make([]Category, len(all))
	copy(out, all)
	return out
}

// IsValid reports whether c names a registered category.
func IsValid(c Category) bool {
	_, ok := routeTable[c]
	return ok
}
