package matcher

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"nobroker_watchdog/models"
)

// moveInWindow is the gap between available-from and the desired move-in
// date at which the move-in component decays to zero.
const moveInWindow = 60 * 24 * time.Hour

var digitsRe = regexp.MustCompile(`\d+`)

// Score computes the soft 0-100 breakdown for a listing that already
// passed the hard constraints. Deterministic and total: components that
// cannot be determined score 0 (or a fixed neutral value where the
// preference says so) instead of failing.
func Score(l *models.Listing, p *models.Preferences) models.ScoreBreakdown {
	w := p.Weights.Normalized()

	breakdown := models.ScoreBreakdown{
		Components: make(map[string]int, 5),
	}
	if l == nil {
		return breakdown
	}

	breakdown.AmenitiesMatched = matchAmenities(l.Amenities, p.RequiredAmenitiesAny)
	breakdown.Components[models.ComponentAmenities] = amenityScore(breakdown.AmenitiesMatched, p.RequiredAmenitiesAny, w.Amenities)
	breakdown.Components[models.ComponentCarpet] = carpetScore(l.CarpetSqft, p.CarpetMinSqft, w.Carpet)
	breakdown.Components[models.ComponentFloor] = floorScore(l.FloorInfo, p.FloorsAllowedIn, w.Floor)
	breakdown.Components[models.ComponentPets] = petsScore(l, p.PetsAllowed, w.Pets)
	breakdown.Components[models.ComponentMoveIn] = moveInScore(l, p.MoveInBy, w.MoveIn)

	for _, v := range breakdown.Components {
		breakdown.Overall += v
	}
	if breakdown.Overall > 100 {
		breakdown.Overall = 100
	}
	if breakdown.Overall < 0 {
		breakdown.Overall = 0
	}
	return breakdown
}

func amenityScore(matched, required []string, weight int) int {
	if len(required) == 0 {
		return weight
	}
	uniqueRequired := make(map[string]struct{}, len(required))
	for _, r := range required {
		uniqueRequired[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	return weight * len(matched) / len(uniqueRequired)
}

// matchAmenities returns the required amenities present in the listing,
// matching by substring in either direction ("lift" vs "lift available").
func matchAmenities(amenities, requiredAny []string) []string {
	if len(requiredAny) == 0 {
		return nil
	}
	have := make([]string, 0, len(amenities))
	for _, a := range amenities {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			have = append(have, a)
		}
	}

	seen := make(map[string]struct{})
	var matched []string
	for _, req := range requiredAny {
		r := strings.ToLower(strings.TrimSpace(req))
		if r == "" {
			continue
		}
		for _, a := range have {
			if strings.Contains(a, r) || strings.Contains(r, a) {
				// Dedupe on the normalized form, same as the score's
				// denominator, so case variants cannot double-count.
				if _, dup := seen[r]; !dup {
					seen[r] = struct{}{}
					matched = append(matched, req)
				}
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

func carpetScore(carpet *int, minSqft, weight int) int {
	if carpet == nil {
		return 0
	}
	if minSqft <= 0 || *carpet >= minSqft {
		return weight
	}
	return 0
}

// floorScore gives full weight when the floor matches an allowed entry.
// Entries like "3+" mean "floor 3 or above"; plain entries match by
// substring against the listing's floor text.
func floorScore(floorInfo string, allowed []string, weight int) int {
	if len(allowed) == 0 || floorInfo == "" {
		return weight
	}
	norm := strings.ToLower(floorInfo)
	for _, f := range allowed {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if strings.HasSuffix(f, "+") {
			minFloor, ok1 := firstInt(f)
			num, ok2 := firstInt(norm)
			if ok1 && ok2 && num >= minFloor {
				return weight
			}
		}
		if strings.Contains(norm, f) {
			return weight
		}
	}
	return 0
}

func petsScore(l *models.Listing, want *bool, weight int) int {
	if want == nil {
		return weight
	}
	got := l.PetsAllowed
	if got == nil {
		got = inferPets(l.Description)
	}
	// Unknown policy stays neutral rather than penalizing.
	if got == nil || *got == *want {
		return weight
	}
	return 0
}

func inferPets(description string) *bool {
	if description == "" {
		return nil
	}
	s := strings.ToLower(description)
	if strings.Contains(s, "no pets") || strings.Contains(s, "pets not allowed") {
		return boolPtr(false)
	}
	if strings.Contains(s, "pets allowed") || strings.Contains(s, "pet friendly") {
		return boolPtr(true)
	}
	return nil
}

// moveInScore grades proximity between the listing's available-from date
// and the desired move-in date: full weight at zero gap, decaying
// linearly to zero at moveInWindow. A listing with no available-from date
// scores a fixed neutral half-weight; posted-at stands in for
// availability when present (a fresh post implies availability soon).
func moveInScore(l *models.Listing, moveInBy *time.Time, weight int) int {
	if moveInBy == nil {
		return weight
	}
	available := l.AvailableFrom
	if available == nil {
		available = l.PostedAt
	}
	if available == nil {
		return weight / 2
	}

	gap := moveInBy.Sub(*available)
	if gap < 0 {
		gap = -gap
	}
	if gap >= moveInWindow {
		return 0
	}
	return int(float64(weight) * (1 - float64(gap)/float64(moveInWindow)))
}

func firstInt(s string) (int, bool) {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func boolPtr(b bool) *bool { return &b }
