package matcher

import (
	"math"
	"strings"
	"time"

	"nobroker_watchdog/models"
)

// Passes evaluates every active hard constraint against the listing.
// Total: it never fails and never panics, whatever the listing looks
// like. Absent criteria are satisfied; an unknown listing attribute
// cannot disqualify (a missing BHK or posted-at passes its predicate).
func Passes(l *models.Listing, c *models.Criteria) bool {
	result, _ := Evaluate(l, c, time.Now())
	return result
}

// Evaluate is Passes with an injectable clock for the age check. The
// second return is the distance to the nearest configured area center in
// km, when the radius mode computed one.
func Evaluate(l *models.Listing, c *models.Criteria, now time.Time) (bool, *float64) {
	if l == nil || c == nil {
		return l != nil, nil
	}

	areaOK, proximity := areaPasses(l, c)

	budgetOK := true
	if c.BudgetMin > 0 || c.BudgetMax > 0 {
		budgetOK = l.PriceMonthly >= c.BudgetMin && (c.BudgetMax == 0 || l.PriceMonthly <= c.BudgetMax)
	}

	bhkOK := true
	if len(c.BHKIn) > 0 && l.BHK != nil {
		bhkOK = false
		for _, b := range c.BHKIn {
			if b == *l.BHK {
				bhkOK = true
				break
			}
		}
	}

	furnishingOK := containsFold(c.FurnishingIn, l.Furnishing)
	typeOK := containsFold(c.PropertyTypesIn, l.PropertyType)

	ageOK := true
	if c.MaxAge > 0 {
		if age, known := l.AgeAt(now); known {
			ageOK = age <= c.MaxAge
		}
	}

	keywordsOK := !containsExcluded(l, c.ExcludeKeywords)

	return areaOK && budgetOK && bhkOK && furnishingOK && typeOK && ageOK && keywordsOK, proximity
}

func areaPasses(l *models.Listing, c *models.Criteria) (bool, *float64) {
	if len(c.Areas) == 0 {
		return true, nil
	}

	areaTxt := strings.ToLower(l.AreaDisplay)
	if areaTxt != "" {
		for _, a := range c.Areas {
			al := strings.ToLower(strings.TrimSpace(a))
			if al == "" {
				continue
			}
			// Substring match both directions: "Koramangala" should hit
			// "Koramangala 5th Block" and vice versa.
			if strings.Contains(areaTxt, al) || strings.Contains(al, areaTxt) {
				return true, nil
			}
		}
	}

	if c.AreaMode != models.AreaMatchRadius || c.ProximityKm <= 0 {
		return false, nil
	}
	if l.Latitude == nil || l.Longitude == nil || len(c.AreaCoords) == 0 {
		return false, nil
	}

	nearest := math.MaxFloat64
	for _, center := range c.AreaCoords {
		d := HaversineKm(*l.Latitude, *l.Longitude, center.Lat, center.Lng)
		if d < nearest {
			nearest = d
		}
	}
	if nearest == math.MaxFloat64 {
		return false, nil
	}
	return nearest <= c.ProximityKm, &nearest
}

func containsExcluded(l *models.Listing, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	body := strings.ToLower(l.Title + " " + l.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// containsFold treats an empty allow-list or an empty value as a pass.
func containsFold(allowed []string, val string) bool {
	if len(allowed) == 0 || strings.TrimSpace(val) == "" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(val)) {
			return true
		}
	}
	return false
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlng := (lng2 - lng1) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
