package models

// Score component names, used as keys in ScoreBreakdown.Components.
const (
	ComponentAmenities = "amenities"
	ComponentCarpet    = "carpet"
	ComponentFloor     = "floor"
	ComponentPets      = "pets"
	ComponentMoveIn    = "move_in"
)

// ScoreBreakdown is the soft score for one listing. Overall is the sum of
// the component values and always lands in [0,100]. Breakdowns are
// recomputed every cycle and never persisted.
type ScoreBreakdown struct {
	Overall          int            `json:"overall"`
	Components       map[string]int `json:"components"`
	AmenitiesMatched []string       `json:"amenities_matched"`
	ProximityKm      *float64       `json:"proximity_km"`
}
