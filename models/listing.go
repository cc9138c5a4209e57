package models

import "time"

// Listing is one normalized rental candidate pulled from a search page or
// the public API. The ID is the source's canonical property id and is
// stable across polling cycles.
type Listing struct {
	ID            string     `json:"listing_id"`
	ScrapedAt     time.Time  `json:"scraped_at"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	PostedAt      *time.Time `json:"posted_at"`
	AreaDisplay   string     `json:"area_display"`
	City          string     `json:"city"`
	Latitude      *float64   `json:"latitude"`
	Longitude     *float64   `json:"longitude"`
	PriceMonthly  int        `json:"price_monthly"`
	Deposit       *int       `json:"deposit"`
	BHK           *int       `json:"bhk"`
	Furnishing    string     `json:"furnishing"`
	PropertyType  string     `json:"property_type"`
	CarpetSqft    *int       `json:"carpet_sqft"`
	FloorInfo     string     `json:"floor_info"`
	Amenities     []string   `json:"amenities"`
	PetsAllowed   *bool      `json:"pets_allowed"`
	ImagesCount   *int       `json:"images_count"`
	Description   string     `json:"description"`
	AvailableFrom *time.Time `json:"available_from"`
}

// AgeAt returns how long the listing has been posted as of now.
// Returns false when the posted time is unknown.
func (l *Listing) AgeAt(now time.Time) (time.Duration, bool) {
	if l.PostedAt == nil {
		return 0, false
	}
	return now.Sub(*l.PostedAt), true
}
