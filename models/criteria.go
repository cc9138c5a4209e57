package models

import "time"

// AreaMatchMode selects how the area criterion is evaluated.
type AreaMatchMode string

const (
	// AreaMatchExact passes when the listing's displayed area matches one
	// of the configured area names.
	AreaMatchExact AreaMatchMode = "exact"
	// AreaMatchRadius passes when the listing's coordinates fall within
	// ProximityKm of any configured area center.
	AreaMatchRadius AreaMatchMode = "radius"
)

// Coord is a lat/lng pair for a configured area center.
type Coord struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// Criteria are the hard pass/fail constraints. Empty slices and zero
// values mean "no constraint". Immutable for the lifetime of a run.
type Criteria struct {
	City            string
	Areas           []string
	AreaMode        AreaMatchMode
	AreaCoords      map[string]Coord
	ProximityKm     float64
	BudgetMin       int
	BudgetMax       int
	BHKIn           []int
	FurnishingIn    []string
	PropertyTypesIn []string
	MaxAge          time.Duration
	ExcludeKeywords []string
}

// Preferences drive the soft score over listings that already passed the
// hard constraints.
type Preferences struct {
	RequiredAmenitiesAny []string
	CarpetMinSqft        int
	FloorsAllowedIn      []string
	PetsAllowed          *bool
	MoveInBy             *time.Time
	Weights              ScoreWeights
}

// ScoreWeights apportion the 0-100 score across the five soft components.
// Zero-valued weights fall back to an even 20-point split; non-default
// weights are normalized so the total is always 100.
type ScoreWeights struct {
	Amenities int `yaml:"amenities"`
	Carpet    int `yaml:"carpet"`
	Floor     int `yaml:"floor"`
	Pets      int `yaml:"pets"`
	MoveIn    int `yaml:"move_in"`
}

// DefaultScoreWeights is the even split used when no weights are configured.
var DefaultScoreWeights = ScoreWeights{Amenities: 20, Carpet: 20, Floor: 20, Pets: 20, MoveIn: 20}

func (w ScoreWeights) Total() int {
	return w.Amenities + w.Carpet + w.Floor + w.Pets + w.MoveIn
}

// Normalized scales the weights so they sum to 100. A zero total yields
// the default even split.
func (w ScoreWeights) Normalized() ScoreWeights {
	total := w.Total()
	if total <= 0 {
		return DefaultScoreWeights
	}
	if total == 100 {
		return w
	}
	out := ScoreWeights{
		Amenities: w.Amenities * 100 / total,
		Carpet:    w.Carpet * 100 / total,
		Floor:     w.Floor * 100 / total,
		Pets:      w.Pets * 100 / total,
	}
	// Remainder lands on the last component so the total stays exactly 100.
	out.MoveIn = 100 - out.Amenities - out.Carpet - out.Floor - out.Pets
	return out
}
